package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vidmark/vidmark-agent/internal/db"
)

// jobTimeLayout is RFC 3339 with fixed-width nanoseconds. Job queries order
// by these strings, and trimmed fractional digits would break lexicographic
// ordering between timestamps in the same second.
const jobTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

// Enqueue creates a pending job and returns it.
func (r *Repository) Enqueue(ctx context.Context, jobType JobType, videoID string) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    JobStatusPending,
		VideoID:   videoID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, video_id, progress, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, job.ID, job.Type, job.Status, nullable(job.VideoID),
		job.CreatedAt.Format(jobTimeLayout), job.UpdatedAt.Format(jobTimeLayout))
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// Get returns the job with the given id, or nil when unknown.
func (r *Repository) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, type, status, video_id, progress, error, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ListPending returns pending jobs oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]*Job, error) {
	return r.list(ctx, `
		SELECT id, type, status, video_id, progress, error, created_at, updated_at
		FROM jobs WHERE status = ? ORDER BY created_at ASC
	`, JobStatusPending)
}

// List returns the most recent jobs up to limit.
func (r *Repository) List(ctx context.Context, limit int) ([]*Job, error) {
	return r.list(ctx, `
		SELECT id, type, status, video_id, progress, error, created_at, updated_at
		FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateStatus moves a job to the given status with an optional error text.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status JobStatus, errMsg string) error {
	_, err := r.db.Conn().ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, errMsg, time.Now().UTC().Format(jobTimeLayout), id)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	return nil
}

// UpdateProgress records completion percentage for a running job.
func (r *Repository) UpdateProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.Conn().ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, time.Now().UTC().Format(jobTimeLayout), id)
	if err != nil {
		return fmt.Errorf("update job progress %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var videoID, errMsg sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&job.ID, &job.Type, &job.Status, &videoID, &job.Progress, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.VideoID = videoID.String
	job.Error = errMsg.String
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &job, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
