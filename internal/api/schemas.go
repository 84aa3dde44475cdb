package api

import (
	"time"

	"github.com/vidmark/vidmark-agent/internal/annotate"
	"github.com/vidmark/vidmark-agent/internal/jobs"
	"github.com/vidmark/vidmark-agent/internal/library"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State         string       `json:"state"`
	LastError     string       `json:"last_error,omitempty"`
	VideosCount   int          `json:"videos_count"`
	SegmentsCount int          `json:"segments_count"`
	JobsRunning   int          `json:"jobs_running"`
	RunnerPaused  bool         `json:"runner_paused"`
	ActiveJob     *JobResponse `json:"active_job,omitempty"`
}

type VideoResponse struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Duration float64 `json:"duration"`
	FPS      float64 `json:"fps"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

type VideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

func VideoToResponse(v library.Video) VideoResponse {
	return VideoResponse{
		ID:       v.ID,
		Filename: v.Filename,
		Duration: v.Duration,
		FPS:      v.FPS,
		Width:    v.Width,
		Height:   v.Height,
	}
}

type ScanResponse struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Removed   int `json:"removed"`
}

type MarkRequest struct {
	Time float64 `json:"time"`
}

type SessionResponse struct {
	VideoID   string   `json:"video_id"`
	StartTime *float64 `json:"start_time,omitempty"`
	EndTime   *float64 `json:"end_time,omitempty"`
}

func SessionToResponse(s *annotate.Session) SessionResponse {
	return SessionResponse{
		VideoID:   s.VideoID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
	}
}

type SegmentResponse struct {
	VideoID   string  `json:"video_id"`
	Index     int     `json:"index"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
}

type SegmentsResponse struct {
	Segments []SegmentResponse `json:"segments"`
}

func SegmentToResponse(s annotate.Segment) SegmentResponse {
	return SegmentResponse{
		VideoID:   s.VideoID,
		Index:     s.Index,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Duration:  s.Duration(),
	}
}

type RemoveResponse struct {
	Removed int `json:"removed"`
}

type ExportRequest struct {
	VideoID string `json:"video_id"`
}

type EnqueueResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	VideoID   string `json:"video_id,omitempty"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

func JobToResponse(j *jobs.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      string(j.Type),
		Status:    string(j.Status),
		VideoID:   j.VideoID,
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}
