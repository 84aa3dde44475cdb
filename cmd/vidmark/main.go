package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vidmark/vidmark-agent/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "vidmark",
	Short: "Segment annotation and dataset export agent",
	Long: `vidmark marks time-ranged segments inside videos and turns them into
standalone clips, numbered frame sequences, and a unified image dataset
suitable for ML training pipelines.

Run "vidmark serve" to start the agent with its HTTP API and system tray,
or use the one-shot subcommands (export, dataset) for scripted workflows.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vidmark version %s (built %s, commit %s)\n",
			config.Version, config.BuildTime, config.GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
