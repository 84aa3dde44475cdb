package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validMetadata() *SegmentMetadata {
	return &SegmentMetadata{
		VideoID:             "v1",
		SegmentIndex:        1,
		SourceVideoPath:     "/videos/v1.mp4",
		StartTime:           2.0,
		EndTime:             5.0,
		Duration:            3.0,
		FPS:                 30.0,
		FrameCount:          90,
		Resolution:          "1280x720",
		ExtractionTimestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func TestMetadata_WriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := validMetadata()

	if err := WriteMetadata(dir, want); err != nil {
		t.Fatalf("WriteMetadata() error = %v", err)
	}

	got, err := LoadMetadata(dir)
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v", err)
	}
	if got.VideoID != want.VideoID || got.SegmentIndex != want.SegmentIndex {
		t.Errorf("identity = %s/%d, want %s/%d", got.VideoID, got.SegmentIndex, want.VideoID, want.SegmentIndex)
	}
	if got.FrameCount != 90 || got.Incomplete {
		t.Errorf("frame_count = %d, incomplete = %v, want 90, false", got.FrameCount, got.Incomplete)
	}
	if got.SegmentName() != "v1_segment_1" {
		t.Errorf("SegmentName() = %q, want v1_segment_1", got.SegmentName())
	}

	// No temp file left behind.
	if _, err := os.Stat(filepath.Join(dir, MetadataFilename+".tmp")); !os.IsNotExist(err) {
		t.Error("temp metadata file should not survive a successful write")
	}
}

func TestLoadMetadata_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	raw := `{
		"video_id": "v1", "segment_index": 1, "source_video_path": "/v.mp4",
		"start_time": 0, "end_time": 1, "duration": 1, "fps": 30,
		"frame_count": 30, "resolution": "640x480",
		"extraction_timestamp": "2026-01-01T00:00:00Z",
		"mystery_field": true
	}`
	if err := os.WriteFile(filepath.Join(dir, MetadataFilename), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadMetadata(dir)
	if err == nil || !strings.Contains(err.Error(), "mystery_field") {
		t.Errorf("LoadMetadata() error = %v, want unknown-field rejection", err)
	}
}

func TestMetadata_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SegmentMetadata)
	}{
		{"missing video_id", func(m *SegmentMetadata) { m.VideoID = "" }},
		{"zero index", func(m *SegmentMetadata) { m.SegmentIndex = 0 }},
		{"missing source path", func(m *SegmentMetadata) { m.SourceVideoPath = "" }},
		{"zero fps", func(m *SegmentMetadata) { m.FPS = 0 }},
		{"inverted bounds", func(m *SegmentMetadata) { m.EndTime = m.StartTime }},
		{"negative frame count", func(m *SegmentMetadata) { m.FrameCount = -1 }},
		{"missing resolution", func(m *SegmentMetadata) { m.Resolution = "" }},
		{"bad timestamp", func(m *SegmentMetadata) { m.ExtractionTimestamp = "yesterday" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMetadata()
			tt.mutate(m)
			if err := m.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}

	if err := validMetadata().Validate(); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}
}
