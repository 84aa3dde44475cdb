package export

import "time"

// Outcome classifies how one segment fared during an export run.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeIncomplete Outcome = "incomplete"
	OutcomeFailed     Outcome = "failed"
)

// SegmentResult is the per-segment entry in an export Report.
type SegmentResult struct {
	VideoID      string  `json:"video_id"`
	SegmentIndex int     `json:"segment_index"`
	Outcome      Outcome `json:"outcome"`
	FrameCount   int     `json:"frame_count"`
	ClipPath     string  `json:"clip_path,omitempty"`
	FramesDir    string  `json:"frames_dir,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Report collects the outcome of every segment in one export run.
type Report struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Results    []SegmentResult `json:"results"`
}

func (r *Report) add(result SegmentResult) {
	r.Results = append(r.Results, result)
}

// Completed returns the number of fully exported segments.
func (r *Report) Completed() int {
	return r.count(OutcomeCompleted)
}

// Incomplete returns the number of segments flagged incomplete after a
// mid-extraction decode failure.
func (r *Report) Incomplete() int {
	return r.count(OutcomeIncomplete)
}

// Failed returns the number of segments that produced no usable frame set.
func (r *Report) Failed() int {
	return r.count(OutcomeFailed)
}

func (r *Report) count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
