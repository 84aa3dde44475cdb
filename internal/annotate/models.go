// Package annotate manages segment marking sessions and the committed
// segment list for each video. Pending marks live in memory; committed
// segments are persisted with a per-video index counter that never reuses
// an index, so exported artifacts keep stable names across deletions.
package annotate

import (
	"errors"
	"time"
)

var (
	// ErrNoActiveSegment is returned when an end mark or commit arrives
	// with no open start mark for the video.
	ErrNoActiveSegment = errors.New("no active segment")

	// ErrInvalidSegmentBounds is returned when a commit's bounds are not a
	// valid forward range inside the video.
	ErrInvalidSegmentBounds = errors.New("invalid segment bounds")
)

// Segment is a committed annotation: a half-open [StartTime, EndTime) range
// in seconds against the source video.
type Segment struct {
	VideoID   string    `json:"video_id"`
	Index     int       `json:"index"`
	StartTime float64   `json:"start_time"`
	EndTime   float64   `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

// Duration returns the segment length in seconds.
func (s *Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// Session is the in-memory marking state for one video.
type Session struct {
	VideoID   string   `json:"video_id"`
	StartTime *float64 `json:"start_time,omitempty"`
	EndTime   *float64 `json:"end_time,omitempty"`
}

// Complete reports whether the session has both marks set.
func (s *Session) Complete() bool {
	return s.StartTime != nil && s.EndTime != nil
}
