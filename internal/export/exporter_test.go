package export

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vidmark/vidmark-agent/internal/annotate"
	"github.com/vidmark/vidmark-agent/internal/config"
	"github.com/vidmark/vidmark-agent/internal/library"
	"github.com/vidmark/vidmark-agent/internal/media"
)

func newTestExporter(t *testing.T) (*Exporter, *media.StubFFmpeg, config.Config) {
	t.Helper()
	t.Setenv(config.EnvDataDir, t.TempDir())

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config.New() error = %v", err)
	}

	stub := media.NewStubFFmpeg()
	exporter := NewExporter(stub, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return exporter, stub, cfg
}

func testVideo(id string) *library.Video {
	return &library.Video{
		ID:       id,
		Path:     "/videos/" + id + ".mp4",
		Filename: id + ".mp4",
	}
}

func segment(videoID string, index int, start, end float64) annotate.Segment {
	return annotate.Segment{
		VideoID:   videoID,
		Index:     index,
		StartTime: start,
		EndTime:   end,
		CreatedAt: time.Now().UTC(),
	}
}

func TestExportSegments_ThreeSecondsAt30FPS(t *testing.T) {
	exporter, stub, cfg := newTestExporter(t)
	ctx := context.Background()

	var progressCalls []int
	report := exporter.ExportSegments(ctx, testVideo("v1"),
		[]annotate.Segment{segment("v1", 1, 2.0, 5.0)},
		func(done, total int) { progressCalls = append(progressCalls, done) },
	)

	if report.Completed() != 1 || report.Failed() != 0 {
		t.Fatalf("report = %+v, want 1 completed", report.Results)
	}
	result := report.Results[0]
	if result.FrameCount != 90 {
		t.Errorf("frame count = %d, want 90", result.FrameCount)
	}

	// Clip rendered at the deterministic path with the exact frame window.
	wantClip := filepath.Join(cfg.ClipsDir(), "v1_segment_1.mp4")
	if result.ClipPath != wantClip {
		t.Errorf("clip path = %q, want %q", result.ClipPath, wantClip)
	}
	calls := stub.ExportCalls()
	if len(calls) != 1 || calls[0].FrameCount != 90 {
		t.Fatalf("export calls = %+v, want one 90-frame clip", calls)
	}
	if calls[0].StartOffset != 2.0 {
		t.Errorf("start offset = %v, want 2.0", calls[0].StartOffset)
	}

	framesDir := filepath.Join(cfg.FramesDir(), "v1_segment_1")
	for _, name := range []string{"frame_0001.jpg", "frame_0090.jpg"} {
		if _, err := os.Stat(filepath.Join(framesDir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(framesDir, "frame_0091.jpg")); !os.IsNotExist(err) {
		t.Error("frame_0091.jpg should not exist")
	}

	meta, err := LoadMetadata(framesDir)
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v", err)
	}
	if meta.FrameCount != 90 || meta.Incomplete {
		t.Errorf("metadata frame_count = %d, incomplete = %v, want 90, false", meta.FrameCount, meta.Incomplete)
	}
	if meta.Duration != 3.0 || meta.FPS != 30.0 {
		t.Errorf("metadata duration/fps = %v/%v, want 3/30", meta.Duration, meta.FPS)
	}
	if meta.Resolution != "1280x720" {
		t.Errorf("metadata resolution = %q, want 1280x720", meta.Resolution)
	}

	if len(progressCalls) != 1 || progressCalls[0] != 1 {
		t.Errorf("progress calls = %v, want [1]", progressCalls)
	}
}

func TestExportSegments_DecodeFailureFlagsIncomplete(t *testing.T) {
	exporter, stub, cfg := newTestExporter(t)
	stub.DecodeFailAfter = 6

	// Ten frames at 30fps.
	report := exporter.ExportSegments(context.Background(), testVideo("v1"),
		[]annotate.Segment{segment("v1", 1, 0.0, 1.0/3.0)}, nil)

	if report.Incomplete() != 1 {
		t.Fatalf("report = %+v, want 1 incomplete", report.Results)
	}
	result := report.Results[0]
	if result.FrameCount != 6 {
		t.Errorf("frame count = %d, want 6", result.FrameCount)
	}

	meta, err := LoadMetadata(filepath.Join(cfg.FramesDir(), "v1_segment_1"))
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v", err)
	}
	if !meta.Incomplete || meta.FrameCount != 6 {
		t.Errorf("metadata frame_count = %d, incomplete = %v, want 6, true", meta.FrameCount, meta.Incomplete)
	}
}

func TestExportSegments_SeekOutOfRange(t *testing.T) {
	exporter, _, _ := newTestExporter(t)

	// Stub source is 60s long.
	report := exporter.ExportSegments(context.Background(), testVideo("v1"),
		[]annotate.Segment{
			segment("v1", 1, 100.0, 105.0),
			segment("v1", 2, 2.0, 5.0),
		}, nil)

	if report.Failed() != 1 || report.Completed() != 1 {
		t.Fatalf("report = %+v, want 1 failed + 1 completed", report.Results)
	}
	if !strings.Contains(report.Results[0].Error, "seek out of range") {
		t.Errorf("error = %q, want seek out of range", report.Results[0].Error)
	}
	// The bad segment did not abort the rest of the run.
	if report.Results[1].Outcome != OutcomeCompleted {
		t.Errorf("second segment outcome = %s, want completed", report.Results[1].Outcome)
	}
}

func TestExportSegments_ProbeFailureFailsAll(t *testing.T) {
	exporter, stub, _ := newTestExporter(t)
	stub.ProbeErr = media.ErrSourceUnreadable

	report := exporter.ExportSegments(context.Background(), testVideo("v1"),
		[]annotate.Segment{
			segment("v1", 1, 0, 1),
			segment("v1", 2, 2, 3),
		}, nil)

	if report.Failed() != 2 {
		t.Errorf("report = %+v, want 2 failed", report.Results)
	}
}

func TestExportSegments_ReExportReplacesFrames(t *testing.T) {
	exporter, _, cfg := newTestExporter(t)
	ctx := context.Background()
	video := testVideo("v1")

	// First export: 90 frames.
	wide := []annotate.Segment{segment("v1", 1, 2.0, 5.0)}
	if r := exporter.ExportSegments(ctx, video, wide, nil); r.Completed() != 1 {
		t.Fatalf("first export failed: %+v", r.Results)
	}

	// Narrower re-export of the same index: 30 frames.
	narrow := []annotate.Segment{segment("v1", 1, 2.0, 3.0)}
	if r := exporter.ExportSegments(ctx, video, narrow, nil); r.Completed() != 1 {
		t.Fatalf("re-export failed: %+v", r.Results)
	}

	framesDir := filepath.Join(cfg.FramesDir(), "v1_segment_1")
	count, err := media.CountFrameFiles(framesDir, "jpg")
	if err != nil {
		t.Fatalf("CountFrameFiles() error = %v", err)
	}
	if count != 30 {
		t.Errorf("frame files after re-export = %d, want 30 (stale frames removed)", count)
	}

	meta, err := LoadMetadata(framesDir)
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v", err)
	}
	if meta.FrameCount != 30 {
		t.Errorf("metadata frame_count = %d, want 30", meta.FrameCount)
	}
}

func TestExportSegments_StrideReducesFrames(t *testing.T) {
	t.Setenv(config.EnvDataDir, t.TempDir())
	t.Setenv(config.EnvFrameStride, "3")

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config.New() error = %v", err)
	}
	exporter := NewExporter(media.NewStubFFmpeg(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	report := exporter.ExportSegments(context.Background(), testVideo("v1"),
		[]annotate.Segment{segment("v1", 1, 2.0, 5.0)}, nil)

	if report.Completed() != 1 {
		t.Fatalf("report = %+v, want 1 completed", report.Results)
	}
	// 90 decoded frames, keep every 3rd.
	if got := report.Results[0].FrameCount; got != 30 {
		t.Errorf("frame count = %d, want 30", got)
	}
}
