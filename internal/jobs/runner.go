package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vidmark/vidmark-agent/internal/annotate"
	"github.com/vidmark/vidmark-agent/internal/dataset"
	"github.com/vidmark/vidmark-agent/internal/export"
	"github.com/vidmark/vidmark-agent/internal/library"
	"github.com/vidmark/vidmark-agent/internal/logging"
)

// Runner polls for pending jobs and executes them one at a time. Export and
// merge work both touch the segments tree, so serializing through a single
// runner is what keeps merges from racing in-flight exports.
type Runner struct {
	repo          *Repository
	videos        *library.Repository
	segments      *annotate.Repository
	exporter      *export.Exporter
	merger        *dataset.Merger
	exportTimeout time.Duration
	logger        *slog.Logger
	pollInterval  time.Duration
	running       atomic.Bool
	paused        atomic.Bool
}

func NewRunner(repo *Repository, videos *library.Repository, segments *annotate.Repository, exporter *export.Exporter, merger *dataset.Merger, exportTimeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		repo:          repo,
		videos:        videos,
		segments:      segments,
		exporter:      exporter,
		merger:        merger,
		exportTimeout: exportTimeout,
		logger:        logger,
		pollInterval:  2 * time.Second,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) processNextJob(ctx context.Context) {
	pending, err := r.repo.ListPending(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	job := pending[0]
	log := logging.WithJobID(r.logger, job.ID)
	log.Info("processing job", "type", job.Type)

	if err := r.repo.UpdateStatus(ctx, job.ID, JobStatusRunning, ""); err != nil {
		log.Error("failed to mark job running", "error", err)
		return
	}

	switch job.Type {
	case JobTypeExport:
		r.processExportJob(ctx, job, log)
	case JobTypeMerge:
		r.processMergeJob(ctx, job, log)
	default:
		log.Warn("unknown job type", "type", job.Type)
		r.repo.UpdateStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
	}
}

func (r *Runner) processExportJob(ctx context.Context, job *Job, log *slog.Logger) {
	video, err := r.videos.Get(ctx, job.VideoID)
	if err != nil || video == nil {
		r.repo.UpdateStatus(ctx, job.ID, JobStatusFailed, "video not found")
		return
	}

	segments, err := r.segments.List(ctx, job.VideoID)
	if err != nil {
		r.repo.UpdateStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("list segments: %v", err))
		return
	}
	if len(segments) == 0 {
		r.repo.UpdateProgress(ctx, job.ID, 100)
		r.repo.UpdateStatus(ctx, job.ID, JobStatusCompleted, "")
		return
	}

	// The timeout bounds only the ffmpeg work; status writes keep the
	// parent context so a timed-out job can still be marked failed.
	exportCtx := ctx
	if r.exportTimeout > 0 {
		var cancel context.CancelFunc
		exportCtx, cancel = context.WithTimeout(ctx, r.exportTimeout)
		defer cancel()
	}

	report := r.exporter.ExportSegments(exportCtx, video, segments, func(done, total int) {
		r.repo.UpdateProgress(ctx, job.ID, done*100/total)
	})

	switch {
	case report.Completed() == 0 && report.Incomplete() == 0:
		r.repo.UpdateStatus(ctx, job.ID, JobStatusFailed,
			fmt.Sprintf("all %d segments failed", report.Failed()))
	case report.Failed() > 0 || report.Incomplete() > 0:
		// Partial success still completes the job; the degraded segments
		// are named in the error text and in the export report.
		r.repo.UpdateStatus(ctx, job.ID, JobStatusCompleted,
			fmt.Sprintf("%d completed, %d incomplete, %d failed",
				report.Completed(), report.Incomplete(), report.Failed()))
	default:
		r.repo.UpdateStatus(ctx, job.ID, JobStatusCompleted, "")
	}

	log.Info("export job finished",
		"video_id", job.VideoID,
		"completed", report.Completed(),
		"incomplete", report.Incomplete(),
		"failed", report.Failed(),
	)
}

func (r *Runner) processMergeJob(ctx context.Context, job *Job, log *slog.Logger) {
	result, err := r.merger.Build(ctx)
	if err != nil {
		if errors.Is(err, dataset.ErrNoFrameSets) {
			r.repo.UpdateStatus(ctx, job.ID, JobStatusFailed, "no exported frame sets to merge")
			return
		}
		r.repo.UpdateStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return
	}

	r.repo.UpdateProgress(ctx, job.ID, 100)
	if len(result.Skipped) > 0 {
		r.repo.UpdateStatus(ctx, job.ID, JobStatusCompleted,
			fmt.Sprintf("%d segments skipped", len(result.Skipped)))
	} else {
		r.repo.UpdateStatus(ctx, job.ID, JobStatusCompleted, "")
	}

	log.Info("merge job finished",
		"videos", result.Summary.TotalVideos,
		"segments", result.Summary.TotalSegments,
		"frames", result.Summary.TotalFrames,
	)
}
