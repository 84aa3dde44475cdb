package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vidmark/vidmark-agent/internal/annotate"
	"github.com/vidmark/vidmark-agent/internal/config"
	"github.com/vidmark/vidmark-agent/internal/db"
	"github.com/vidmark/vidmark-agent/internal/export"
	"github.com/vidmark/vidmark-agent/internal/library"
	"github.com/vidmark/vidmark-agent/internal/logging"
	"github.com/vidmark/vidmark-agent/internal/media"
	"github.com/vidmark/vidmark-agent/pkg/timeutil"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the videos directory and update the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.scanner.Scan(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Scan complete: %d added, %d updated, %d unchanged, %d failed, %d removed\n",
			result.Added, result.Updated, result.Unchanged, result.Failed, result.Removed)
		return nil
	},
}

var exportSegmentFlags []string

var exportCmd = &cobra.Command{
	Use:   "export <video-id>",
	Short: "Export a video's segments into clips and frame sets",
	Long: `Export renders every committed segment of the video into a standalone
clip and a numbered frame sequence with metadata.

Additional segments can be committed on the fly with --segment, using
START-END bounds in seconds or H:MM:SS form:

  vidmark export training_day1 --segment 2.0-5.0 --segment 1:30-1:45`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd.Context(), args[0])
	},
}

func init() {
	exportCmd.Flags().StringArrayVar(&exportSegmentFlags, "segment", nil,
		"commit an extra START-END segment before exporting (repeatable)")
}

func runExport(ctx context.Context, videoID string) error {
	env, err := newCLIEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	video, err := env.videos.Get(ctx, videoID)
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("video %q not found (run 'vidmark scan' first)", videoID)
	}

	committed, err := commitSegmentSpecs(ctx, env.store, video.ID, video.Duration, exportSegmentFlags)
	if err != nil {
		return err
	}
	for _, seg := range committed {
		fmt.Printf("Committed segment %d: %s - %s\n",
			seg.Index, timeutil.FormatTime(seg.StartTime), timeutil.FormatTime(seg.EndTime))
	}

	segments, err := env.segments.List(ctx, videoID)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("video %q has no committed segments", videoID)
	}

	bar := progressbar.NewOptions(len(segments),
		progressbar.OptionSetDescription("exporting segments"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	exporter := export.NewExporter(env.ffmpeg, env.cfg, env.logger)
	report := exporter.ExportSegments(ctx, video, segments, func(done, total int) {
		bar.Set(done)
	})

	fmt.Printf("\nExport finished: %d completed, %d incomplete, %d failed\n",
		report.Completed(), report.Incomplete(), report.Failed())
	for _, r := range report.Results {
		if r.Outcome != export.OutcomeCompleted {
			fmt.Printf("  %s segment %d: %s (%s)\n", r.VideoID, r.SegmentIndex, r.Outcome, r.Error)
		}
	}
	if report.Completed() == 0 && report.Incomplete() == 0 {
		return fmt.Errorf("no segments exported")
	}
	return nil
}

// commitSegmentSpecs parses each START-END spec and commits it through the
// marking store, so the bounds get the same validation as API commits:
// non-negative start, end after start, end within the video duration.
func commitSegmentSpecs(ctx context.Context, store *annotate.Store, videoID string, duration float64, specs []string) ([]*annotate.Segment, error) {
	var committed []*annotate.Segment
	for _, spec := range specs {
		start, end, err := parseSegmentSpec(spec)
		if err != nil {
			return nil, err
		}
		if _, err := store.MarkStart(videoID, start); err != nil {
			return nil, fmt.Errorf("segment %q: %w", spec, err)
		}
		if _, err := store.MarkEnd(videoID, end); err != nil {
			return nil, fmt.Errorf("segment %q: %w", spec, err)
		}
		seg, err := store.Commit(ctx, videoID, duration)
		if err != nil {
			store.Discard(videoID)
			return nil, fmt.Errorf("segment %q: %w", spec, err)
		}
		committed = append(committed, seg)
	}
	return committed, nil
}

// parseSegmentSpec splits "START-END" where each bound is seconds or a
// colon-delimited timestamp.
func parseSegmentSpec(spec string) (float64, float64, error) {
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid segment %q: expected START-END", spec)
	}
	start, err := timeutil.ParseTimeToSeconds(strings.TrimSpace(startStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid segment start: %w", err)
	}
	end, err := timeutil.ParseTimeToSeconds(strings.TrimSpace(endStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid segment end: %w", err)
	}
	return start, end, nil
}

// cliEnv is the shared wiring for one-shot subcommands.
type cliEnv struct {
	cfg      config.Config
	logger   *slog.Logger
	database *db.DB
	ffmpeg   media.FFmpeg
	videos   *library.Repository
	segments *annotate.Repository
	store    *annotate.Store
	scanner  *library.Scanner
}

func newCLIEnv() (*cliEnv, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.VideosDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	// One-shot commands log human-readable text at warn level so command
	// output stays readable; VIDMARK_LOG_LEVEL=debug overrides as usual.
	level := cfg.LogLevel()
	if os.Getenv(config.EnvLogLevel) == "" {
		level = "warn"
	}
	logger := logging.NewLogger(level, "text")

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ffmpeg, err := media.NewExecFFmpeg(cfg.FFmpegPath(), cfg.FFprobePath(), logger)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("%w (run 'vidmark doctor' to diagnose)", err)
	}

	videos := library.NewRepository(database)
	segments := annotate.NewRepository(database)
	return &cliEnv{
		cfg:      cfg,
		logger:   logger,
		database: database,
		ffmpeg:   ffmpeg,
		videos:   videos,
		segments: segments,
		store:    annotate.NewStore(segments, logger),
		scanner:  library.NewScanner(cfg.VideosDir(), videos, ffmpeg, logger),
	}, nil
}

func (e *cliEnv) Close() {
	e.database.Close()
}
