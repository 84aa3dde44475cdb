package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vidmark/vidmark-agent/internal/export"
)

func newTestMerger(t *testing.T) (*Merger, string, string) {
	t.Helper()
	tmpDir := t.TempDir()
	framesRoot := filepath.Join(tmpDir, "segments", "frames")
	outputRoot := filepath.Join(tmpDir, "unified_dataset")
	if err := os.MkdirAll(framesRoot, 0755); err != nil {
		t.Fatal(err)
	}
	return NewMerger(framesRoot, outputRoot, slog.New(slog.NewTextHandler(io.Discard, nil))), framesRoot, outputRoot
}

// writeFrameSet lays down a segment directory the way the exporter does.
func writeFrameSet(t *testing.T, framesRoot, videoID string, index, frames int, incomplete bool) {
	t.Helper()
	dir := filepath.Join(framesRoot, export.SegmentName(videoID, index))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= frames; i++ {
		name := fmt.Sprintf("frame_%04d.jpg", i)
		content := fmt.Sprintf("%s-%d-%d", videoID, index, i)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	meta := &export.SegmentMetadata{
		VideoID:             videoID,
		SegmentIndex:        index,
		SourceVideoPath:     "/videos/" + videoID + ".mp4",
		StartTime:           0,
		EndTime:             float64(frames) / 30.0,
		Duration:            float64(frames) / 30.0,
		FPS:                 30.0,
		FrameCount:          frames,
		Resolution:          "1280x720",
		ExtractionTimestamp: time.Now().UTC().Format(time.RFC3339),
		Incomplete:          incomplete,
	}
	if err := export.WriteMetadata(dir, meta); err != nil {
		t.Fatal(err)
	}
}

func TestBuild_TwoVideos(t *testing.T) {
	merger, framesRoot, outputRoot := newTestMerger(t)
	writeFrameSet(t, framesRoot, "v1", 1, 10, false)
	writeFrameSet(t, framesRoot, "v2", 1, 5, false)

	result, err := merger.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	s := result.Summary
	if s.TotalVideos != 2 || s.TotalSegments != 2 || s.TotalFrames != 15 {
		t.Errorf("summary = %d videos, %d segments, %d frames; want 2, 2, 15",
			s.TotalVideos, s.TotalSegments, s.TotalFrames)
	}

	images, err := os.ReadDir(filepath.Join(outputRoot, ImagesDirname))
	if err != nil {
		t.Fatalf("read images dir error = %v", err)
	}
	if len(images) != 15 {
		t.Errorf("image pool has %d files, want 15", len(images))
	}

	// Namespaced names are collision-free across videos.
	for _, name := range []string{"v1_segment_1_frame_0001.jpg", "v2_segment_1_frame_0005.jpg"} {
		if _, err := os.Stat(filepath.Join(outputRoot, ImagesDirname, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}

	// Metadata copied per segment.
	for _, name := range []string{"v1_segment_1_metadata.json", "v2_segment_1_metadata.json"} {
		if _, err := os.Stat(filepath.Join(outputRoot, MetadataDirname, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}

	// Summary and frame list written.
	loaded, err := LoadSummary(outputRoot)
	if err != nil || loaded == nil {
		t.Fatalf("LoadSummary() = %v, %v", loaded, err)
	}
	if loaded.TotalFrames != 15 {
		t.Errorf("loaded summary frames = %d, want 15", loaded.TotalFrames)
	}
	if _, err := os.Stat(filepath.Join(outputRoot, FrameListFilename)); err != nil {
		t.Errorf("frame list missing: %v", err)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	merger, framesRoot, outputRoot := newTestMerger(t)
	writeFrameSet(t, framesRoot, "v1", 1, 10, false)
	writeFrameSet(t, framesRoot, "v2", 1, 5, false)
	ctx := context.Background()

	first, err := merger.Build(ctx)
	if err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	second, err := merger.Build(ctx)
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}

	if first.Summary.TotalFrames != second.Summary.TotalFrames ||
		first.Summary.TotalSegments != second.Summary.TotalSegments ||
		first.Summary.TotalVideos != second.Summary.TotalVideos {
		t.Errorf("summaries diverged: %+v vs %+v", first.Summary, second.Summary)
	}

	images, err := os.ReadDir(filepath.Join(outputRoot, ImagesDirname))
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 15 {
		t.Errorf("image pool after re-merge = %d files, want 15 (no duplicates)", len(images))
	}
}

func TestBuild_SkipsIncompleteAndMissingMetadata(t *testing.T) {
	merger, framesRoot, _ := newTestMerger(t)
	writeFrameSet(t, framesRoot, "v1", 1, 10, false)
	writeFrameSet(t, framesRoot, "v1", 2, 6, true) // decode failed partway

	// A directory with frames but no metadata record.
	orphan := filepath.Join(framesRoot, "v1_segment_3")
	if err := os.MkdirAll(orphan, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(orphan, "frame_0001.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := merger.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if result.Summary.TotalSegments != 1 || result.Summary.TotalFrames != 10 {
		t.Errorf("summary = %d segments, %d frames; want 1, 10",
			result.Summary.TotalSegments, result.Summary.TotalFrames)
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("skipped = %+v, want 2 entries", result.Skipped)
	}
}

func TestBuild_FrameCountMismatchSkipped(t *testing.T) {
	merger, framesRoot, _ := newTestMerger(t)
	writeFrameSet(t, framesRoot, "v1", 1, 10, false)

	// Delete a frame behind the metadata's back.
	if err := os.Remove(filepath.Join(framesRoot, "v1_segment_1", "frame_0004.jpg")); err != nil {
		t.Fatal(err)
	}

	result, err := merger.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.Summary.TotalSegments != 0 {
		t.Errorf("mismatched segment was merged: %+v", result.Summary)
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("skipped = %+v, want the mismatched segment", result.Skipped)
	}
}

func TestBuild_EmptyRoot(t *testing.T) {
	merger, _, _ := newTestMerger(t)

	_, err := merger.Build(context.Background())
	if !errors.Is(err, ErrNoFrameSets) {
		t.Errorf("Build() error = %v, want ErrNoFrameSets", err)
	}
}
