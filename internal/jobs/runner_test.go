package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vidmark/vidmark-agent/internal/annotate"
	"github.com/vidmark/vidmark-agent/internal/config"
	"github.com/vidmark/vidmark-agent/internal/dataset"
	"github.com/vidmark/vidmark-agent/internal/db"
	"github.com/vidmark/vidmark-agent/internal/export"
	"github.com/vidmark/vidmark-agent/internal/library"
	"github.com/vidmark/vidmark-agent/internal/media"
)

type testHarness struct {
	runner   *Runner
	repo     *Repository
	videos   *library.Repository
	segments *annotate.Repository
	stub     *media.StubFFmpeg
	db       *db.DB
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	t.Setenv(config.EnvDataDir, t.TempDir())

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config.New() error = %v", err)
	}

	database, err := db.New(cfg.DBPath(), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stub := media.NewStubFFmpeg()

	h := &testHarness{
		repo:     NewRepository(database),
		videos:   library.NewRepository(database),
		segments: annotate.NewRepository(database),
		stub:     stub,
		db:       database,
	}
	h.runner = NewRunner(
		h.repo,
		h.videos,
		h.segments,
		export.NewExporter(stub, cfg, logger),
		dataset.NewMerger(cfg.FramesDir(), cfg.DatasetDir(), logger),
		cfg.ExportTimeout(),
		logger,
	)
	return h
}

func (h *testHarness) addVideoWithSegment(t *testing.T, id string, start, end float64) {
	t.Helper()
	ctx := context.Background()
	err := h.videos.Upsert(ctx, &library.Video{
		ID:       id,
		Path:     "/videos/" + id + ".mp4",
		Filename: id + ".mp4",
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := h.segments.Commit(ctx, id, start, end); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestRunner_ExportJob(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.addVideoWithSegment(t, "v1", 2.0, 5.0)

	job, err := h.repo.Enqueue(ctx, JobTypeExport, "v1")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	h.runner.processNextJob(ctx)

	got, err := h.repo.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != JobStatusCompleted {
		t.Errorf("job status = %s (%s), want completed", got.Status, got.Error)
	}
	if got.Progress != 100 {
		t.Errorf("job progress = %d, want 100", got.Progress)
	}
}

func TestRunner_ExportJobUnknownVideo(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	job, err := h.repo.Enqueue(ctx, JobTypeExport, "missing")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	h.runner.processNextJob(ctx)

	got, _ := h.repo.Get(ctx, job.ID)
	if got.Status != JobStatusFailed {
		t.Errorf("job status = %s, want failed", got.Status)
	}
	if got.Error != "video not found" {
		t.Errorf("job error = %q, want 'video not found'", got.Error)
	}
}

func TestRunner_ExportThenMerge(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.addVideoWithSegment(t, "v1", 2.0, 5.0)

	if _, err := h.repo.Enqueue(ctx, JobTypeExport, "v1"); err != nil {
		t.Fatalf("Enqueue(export) error = %v", err)
	}
	h.runner.processNextJob(ctx)

	mergeJob, err := h.repo.Enqueue(ctx, JobTypeMerge, "")
	if err != nil {
		t.Fatalf("Enqueue(merge) error = %v", err)
	}
	h.runner.processNextJob(ctx)

	got, _ := h.repo.Get(ctx, mergeJob.ID)
	if got.Status != JobStatusCompleted {
		t.Errorf("merge job status = %s (%s), want completed", got.Status, got.Error)
	}
}

func TestRunner_MergeWithNothingExported(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	job, err := h.repo.Enqueue(ctx, JobTypeMerge, "")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	h.runner.processNextJob(ctx)

	got, _ := h.repo.Get(ctx, job.ID)
	if got.Status != JobStatusFailed {
		t.Errorf("job status = %s, want failed", got.Status)
	}
}

func TestRunner_ExportJobTimesOut(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.addVideoWithSegment(t, "v1", 2.0, 5.0)

	// An already-expired deadline makes every segment fail, which must
	// surface as a failed job rather than hanging or completing.
	h.runner.exportTimeout = time.Nanosecond

	job, err := h.repo.Enqueue(ctx, JobTypeExport, "v1")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	h.runner.processNextJob(ctx)

	got, _ := h.repo.Get(ctx, job.ID)
	if got.Status != JobStatusFailed {
		t.Errorf("job status = %s (%s), want failed", got.Status, got.Error)
	}
}

func TestRunner_PauseResume(t *testing.T) {
	h := newTestHarness(t)

	if h.runner.IsPaused() {
		t.Error("runner should start unpaused")
	}
	h.runner.Pause()
	if !h.runner.IsPaused() {
		t.Error("runner should be paused after Pause()")
	}
	h.runner.Resume()
	if h.runner.IsPaused() {
		t.Error("runner should be unpaused after Resume()")
	}
}

func TestRunner_JobsProcessedInOrder(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.addVideoWithSegment(t, "v1", 0.0, 1.0)
	h.addVideoWithSegment(t, "v2", 0.0, 2.0)

	first, _ := h.repo.Enqueue(ctx, JobTypeExport, "v1")
	second, _ := h.repo.Enqueue(ctx, JobTypeExport, "v2")

	h.runner.processNextJob(ctx)

	got1, _ := h.repo.Get(ctx, first.ID)
	got2, _ := h.repo.Get(ctx, second.ID)
	if got1.Status != JobStatusCompleted {
		t.Errorf("first job status = %s, want completed", got1.Status)
	}
	if got2.Status != JobStatusPending {
		t.Errorf("second job status = %s, want still pending", got2.Status)
	}
}
