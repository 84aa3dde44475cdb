package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vidmark/vidmark-agent/internal/db"
)

type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

// Upsert inserts a video or refreshes its file properties. The segment
// counter and created_at survive updates.
func (r *Repository) Upsert(ctx context.Context, v *Video) error {
	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO videos (id, path, filename, size, mtime, fps, duration, width, height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			filename = excluded.filename,
			size = excluded.size,
			mtime = excluded.mtime,
			fps = excluded.fps,
			duration = excluded.duration,
			width = excluded.width,
			height = excluded.height
	`, v.ID, v.Path, v.Filename, v.Size, v.MTime.UTC().Format(time.RFC3339),
		v.FPS, v.Duration, v.Width, v.Height, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert video %s: %w", v.ID, err)
	}
	return nil
}

// Get returns the video with the given id, or nil when unknown.
func (r *Repository) Get(ctx context.Context, id string) (*Video, error) {
	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, path, filename, size, mtime, fps, duration, width, height, segment_seq, created_at
		FROM videos WHERE id = ?
	`, id)

	v, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", id, err)
	}
	return v, nil
}

// List returns every known video ordered by id.
func (r *Repository) List(ctx context.Context) ([]Video, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, path, filename, size, mtime, fps, duration, width, height, segment_seq, created_at
		FROM videos ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// Delete removes a video record; segments cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Conn().ExecContext(ctx, "DELETE FROM videos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete video %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var mtime, createdAt string
	err := row.Scan(&v.ID, &v.Path, &v.Filename, &v.Size, &mtime,
		&v.FPS, &v.Duration, &v.Width, &v.Height, &v.SegmentSeq, &createdAt)
	if err != nil {
		return nil, err
	}
	v.MTime, _ = time.Parse(time.RFC3339, mtime)
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &v, nil
}
