package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vidmark/vidmark-agent/internal/config"
	"github.com/vidmark/vidmark-agent/internal/db"
	"github.com/vidmark/vidmark-agent/internal/logging"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the agent's dependencies are in place",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor()
	},
}

func runDoctor() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("vidmark doctor")
	fmt.Println()

	healthy := true
	healthy = checkBinary("ffmpeg", cfg.FFmpegPath()) && healthy
	healthy = checkBinary("ffprobe", cfg.FFprobePath()) && healthy
	healthy = checkDataDir(cfg.DataDir()) && healthy
	healthy = checkDatabase(cfg) && healthy

	fmt.Println()
	if !healthy {
		fmt.Println("Some checks failed. Fix the issues above and re-run 'vidmark doctor'.")
		os.Exit(1)
	}
	fmt.Println("All checks passed.")
	return nil
}

// checkBinary resolves name either from the configured path or from PATH.
func checkBinary(name, configured string) bool {
	path := configured
	if path == "" {
		resolved, err := exec.LookPath(name)
		if err != nil {
			fmt.Printf("  ✗ %s: not found in PATH\n", name)
			return false
		}
		path = resolved
	} else if _, err := os.Stat(path); err != nil {
		fmt.Printf("  ✗ %s: configured path %s does not exist\n", name, path)
		return false
	}
	fmt.Printf("  ✓ %s: %s\n", name, path)
	return true
}

func checkDataDir(dir string) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("  ✗ data dir: cannot create %s: %v\n", dir, err)
		return false
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		fmt.Printf("  ✗ data dir: %s is not writable: %v\n", dir, err)
		return false
	}
	os.Remove(probe)
	fmt.Printf("  ✓ data dir: %s\n", logging.SanitizePath(dir))
	return true
}

func checkDatabase(cfg config.Config) bool {
	database, err := db.New(cfg.DBPath(), logging.NewLogger("error", "text"))
	if err != nil {
		fmt.Printf("  ✗ database: %v\n", err)
		return false
	}
	database.Close()
	fmt.Printf("  ✓ database: %s\n", logging.SanitizePath(cfg.DBPath()))
	return true
}
