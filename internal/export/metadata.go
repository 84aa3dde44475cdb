// Package export renders committed segments into standalone clips and
// numbered frame sequences with a metadata record per segment. Failures are
// collected per segment into a Report; one bad segment never aborts the run.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MetadataFilename is the per-segment metadata record written next to the
// extracted frames.
const MetadataFilename = "metadata.json"

// SegmentMetadata describes one extracted frame set. The schema is fixed:
// readers reject records with missing or unknown fields instead of guessing.
type SegmentMetadata struct {
	VideoID             string  `json:"video_id"`
	SegmentIndex        int     `json:"segment_index"`
	SourceVideoPath     string  `json:"source_video_path"`
	StartTime           float64 `json:"start_time"`
	EndTime             float64 `json:"end_time"`
	Duration            float64 `json:"duration"`
	FPS                 float64 `json:"fps"`
	FrameCount          int     `json:"frame_count"`
	Resolution          string  `json:"resolution"`
	ExtractionTimestamp string  `json:"extraction_timestamp"`
	Incomplete          bool    `json:"incomplete,omitempty"`
}

// SegmentName returns the namespaced directory/artifact base name,
// e.g. "v1_segment_2".
func (m *SegmentMetadata) SegmentName() string {
	return SegmentName(m.VideoID, m.SegmentIndex)
}

// SegmentName composes the per-segment namespace used for clip files, frame
// directories and merged artifact names.
func SegmentName(videoID string, index int) string {
	return fmt.Sprintf("%s_segment_%d", videoID, index)
}

// Validate checks the required fields of a loaded record.
func (m *SegmentMetadata) Validate() error {
	switch {
	case m.VideoID == "":
		return fmt.Errorf("metadata missing video_id")
	case m.SegmentIndex < 1:
		return fmt.Errorf("metadata segment_index %d must be >= 1", m.SegmentIndex)
	case m.SourceVideoPath == "":
		return fmt.Errorf("metadata missing source_video_path")
	case m.FPS <= 0:
		return fmt.Errorf("metadata fps %v must be positive", m.FPS)
	case m.EndTime <= m.StartTime:
		return fmt.Errorf("metadata end_time %v must be after start_time %v", m.EndTime, m.StartTime)
	case m.FrameCount < 0:
		return fmt.Errorf("metadata frame_count %d is negative", m.FrameCount)
	case m.Resolution == "":
		return fmt.Errorf("metadata missing resolution")
	case m.ExtractionTimestamp == "":
		return fmt.Errorf("metadata missing extraction_timestamp")
	}
	if _, err := time.Parse(time.RFC3339, m.ExtractionTimestamp); err != nil {
		return fmt.Errorf("metadata extraction_timestamp: %w", err)
	}
	return nil
}

// WriteMetadata persists the record into dir as metadata.json. The write
// goes through a temp file so a crash never leaves a truncated record.
func WriteMetadata(dir string, m *SegmentMetadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tmp := filepath.Join(dir, MetadataFilename+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, MetadataFilename)); err != nil {
		return fmt.Errorf("finalize metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads and validates a segment's metadata record. Unknown
// fields are rejected so schema drift surfaces immediately.
func LoadMetadata(dir string) (*SegmentMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFilename))
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m SegmentMetadata
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
