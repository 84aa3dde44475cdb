package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vidmark/vidmark-agent/internal/annotate"
	"github.com/vidmark/vidmark-agent/internal/dataset"
	"github.com/vidmark/vidmark-agent/pkg/timeutil"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Build and inspect the unified dataset",
}

var datasetBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Merge all exported frame sets into the unified dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		spinner := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("merging frame sets"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSpinnerType(14),
		)
		defer spinner.Finish()

		merger := dataset.NewMerger(env.cfg.FramesDir(), env.cfg.DatasetDir(), env.logger)
		result, err := merger.Build(cmd.Context())
		if err != nil {
			if errors.Is(err, dataset.ErrNoFrameSets) {
				return fmt.Errorf("no exported frame sets found (run 'vidmark export' first)")
			}
			return err
		}
		spinner.Finish()

		s := result.Summary
		fmt.Printf("Unified dataset built at %s\n", env.cfg.DatasetDir())
		fmt.Printf("  Videos:   %d\n", s.TotalVideos)
		fmt.Printf("  Segments: %d\n", s.TotalSegments)
		fmt.Printf("  Frames:   %d\n", s.TotalFrames)
		for _, skip := range result.Skipped {
			fmt.Printf("  Skipped %s: %s\n", skip.Dir, skip.Reason)
		}
		return nil
	},
}

var datasetStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the current dataset summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := dataset.LoadSummary(env.cfg.DatasetDir())
		if err != nil {
			return err
		}
		if summary == nil {
			return fmt.Errorf("no dataset built yet (run 'vidmark dataset build')")
		}

		fmt.Printf("Dataset summary (created %s)\n", summary.CreationTimestamp)
		fmt.Printf("  Videos:   %d\n", summary.TotalVideos)
		fmt.Printf("  Segments: %d\n", summary.TotalSegments)
		fmt.Printf("  Frames:   %d\n", summary.TotalFrames)
		fmt.Println()
		for _, seg := range summary.Segments {
			fmt.Printf("  %-40s %6d frames\n", seg.SegmentName, seg.FrameCount)
		}
		return nil
	},
}

var segmentsCmd = &cobra.Command{
	Use:   "segments [video-id]",
	Short: "List committed segments, for one video or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 1 {
			segments, err := env.segments.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(segments) == 0 {
				fmt.Printf("No segments committed for %s\n", args[0])
				return nil
			}
			printSegments(segments)
			return nil
		}

		byVideo, err := env.segments.ListAll(cmd.Context())
		if err != nil {
			return err
		}
		if len(byVideo) == 0 {
			fmt.Println("No segments committed")
			return nil
		}

		ids := make([]string, 0, len(byVideo))
		for id := range byVideo {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Println(id)
			printSegments(byVideo[id])
		}
		return nil
	},
}

func printSegments(segments []annotate.Segment) {
	for _, s := range segments {
		fmt.Printf("  %3d  %s - %s  (%.2fs)\n",
			s.Index,
			timeutil.FormatTime(s.StartTime),
			timeutil.FormatTime(s.EndTime),
			s.Duration(),
		)
	}
}

func init() {
	datasetCmd.AddCommand(datasetBuildCmd)
	datasetCmd.AddCommand(datasetStatsCmd)
	rootCmd.AddCommand(segmentsCmd)
}
