package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SegmentEntry is the per-segment breakdown inside a Summary.
type SegmentEntry struct {
	SegmentName  string `json:"segment_name"`
	VideoID      string `json:"video_id"`
	SegmentIndex int    `json:"segment_index"`
	FrameCount   int    `json:"frame_count"`
}

// Summary is the aggregate record written as dataset_summary.json.
type Summary struct {
	TotalVideos       int            `json:"total_videos"`
	TotalSegments     int            `json:"total_segments"`
	TotalFrames       int            `json:"total_frames"`
	CreationTimestamp string         `json:"creation_timestamp"`
	Segments          []SegmentEntry `json:"segments"`
}

// WriteSummary persists the summary atomically into the output root.
func WriteSummary(outputRoot string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	path := filepath.Join(outputRoot, SummaryFilename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize summary: %w", err)
	}
	return nil
}

// LoadSummary reads a previously written dataset summary. A missing file
// returns (nil, nil) so callers can distinguish "never merged" from errors.
func LoadSummary(outputRoot string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(outputRoot, SummaryFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read summary: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}
	return &s, nil
}
