// Package library tracks the source videos available for annotation. The
// scanner walks the videos directory, derives a stable video id from each
// filename, and probes container properties that the exporter needs.
package library

import "time"

// Video is a source video known to the library. FPS, Duration, Width and
// Height come from ffprobe and are zero until the first successful probe.
type Video struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	MTime      time.Time `json:"mtime"`
	FPS        float64   `json:"fps"`
	Duration   float64   `json:"duration"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	SegmentSeq int       `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScanResult summarizes one pass over the videos directory.
type ScanResult struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Removed   int `json:"removed"`
}
