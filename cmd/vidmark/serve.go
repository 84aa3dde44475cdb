package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vidmark/vidmark-agent/internal/annotate"
	"github.com/vidmark/vidmark-agent/internal/api"
	"github.com/vidmark/vidmark-agent/internal/config"
	"github.com/vidmark/vidmark-agent/internal/dataset"
	"github.com/vidmark/vidmark-agent/internal/db"
	"github.com/vidmark/vidmark-agent/internal/export"
	"github.com/vidmark/vidmark-agent/internal/jobs"
	"github.com/vidmark/vidmark-agent/internal/library"
	"github.com/vidmark/vidmark-agent/internal/logging"
	"github.com/vidmark/vidmark-agent/internal/media"
	"github.com/vidmark/vidmark-agent/internal/preview"
	"github.com/vidmark/vidmark-agent/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent with its HTTP API and system tray",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.VideosDir(), cfg.ClipsDir(), cfg.FramesDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel(), cfg.LogFormat())
	logger.Info("starting vidmark agent",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	authToken, err := ensureAuthToken(database)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                   VIDMARK AGENT v%-8s                 ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Videos Dir: %-45s ║\n", logging.SanitizePath(cfg.VideosDir()))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	ffmpeg, err := media.NewExecFFmpeg(cfg.FFmpegPath(), cfg.FFprobePath(),
		logging.WithComponent(logger, "media"))
	if err != nil {
		return fmt.Errorf("%w (run 'vidmark doctor' to diagnose)", err)
	}

	videoRepo := library.NewRepository(database)
	segmentRepo := annotate.NewRepository(database)
	jobRepo := jobs.NewRepository(database)

	scanner := library.NewScanner(cfg.VideosDir(), videoRepo, ffmpeg,
		logging.WithComponent(logger, "library"))
	store := annotate.NewStore(segmentRepo, logging.WithComponent(logger, "annotate"))
	exporter := export.NewExporter(ffmpeg, cfg, logging.WithComponent(logger, "export"))
	merger := dataset.NewMerger(cfg.FramesDir(), cfg.DatasetDir(),
		logging.WithComponent(logger, "dataset"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := scanner.Scan(ctx); err != nil {
		logger.Warn("initial library scan failed", "error", err)
	}

	runner := jobs.NewRunner(jobRepo, videoRepo, segmentRepo, exporter, merger,
		cfg.ExportTimeout(), logging.WithComponent(logger, "jobs"))
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		DatasetDir: cfg.DatasetDir(),
		DB:         database,
		Videos:     videoRepo,
		Scanner:    scanner,
		Store:      store,
		Jobs:       jobRepo,
		Runner:     runner,
		Preview:    preview.NewServer(cfg.ClipsDir(), cfg.VideoContainer(), logging.WithComponent(logger, "preview")),
		Logger:     logging.WithComponent(logger, "api"),
		StartTime:  startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	var tray *ui.Tray
	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			Runner: runner,
			Logger: logging.WithComponent(logger, "ui"),
			OnScan: func() error {
				_, err := scanner.Scan(ctx)
				return err
			},
			OnQuit: func() {
				close(quitCh)
			},
			VideosCount: func() int {
				videos, err := videoRepo.List(ctx)
				if err != nil {
					return 0
				}
				return len(videos)
			},
		})
		go tray.Run()
	}

	<-quitCh

	if tray != nil {
		tray.UpdateStatus("Shutting down")
		tray.Quit()
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(database *db.DB) (string, error) {
	ctx := context.Background()

	existing, err := database.GetSetting(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := database.SetSetting(ctx, "auth_token", token); err != nil {
		return "", err
	}
	return token, nil
}
