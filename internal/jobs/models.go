// Package jobs queues and runs export and merge work in the background.
package jobs

import "time"

type JobType string

const (
	JobTypeExport JobType = "export"
	JobTypeMerge  JobType = "merge"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one queued unit of background work. Export jobs carry the video
// they target; merge jobs cover everything on disk and leave VideoID empty.
type Job struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	Status    JobStatus `json:"status"`
	VideoID   string    `json:"video_id,omitempty"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
