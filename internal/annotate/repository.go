package annotate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vidmark/vidmark-agent/internal/db"
)

// Repository persists committed segments. Segment indices come from the
// per-video segment_seq counter, which only ever moves forward except on a
// full reset, so removing the last segment never causes a later commit to
// reuse its index.
type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

// Commit assigns the next index for the video and inserts the segment.
// Bounds are checked here as well as in Store.Commit so no caller can
// persist an inverted or negative range.
func (r *Repository) Commit(ctx context.Context, videoID string, start, end float64) (*Segment, error) {
	if start < 0 {
		return nil, fmt.Errorf("%w: start %.3f is negative", ErrInvalidSegmentBounds, start)
	}
	if end <= start {
		return nil, fmt.Errorf("%w: end %.3f must be after start %.3f", ErrInvalidSegmentBounds, end, start)
	}

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit tx: %w", err)
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRowContext(ctx, "SELECT segment_seq FROM videos WHERE id = ?", videoID).Scan(&seq)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("video %s not found", videoID)
	}
	if err != nil {
		return nil, fmt.Errorf("read segment counter: %w", err)
	}

	// Indices are 1-based; segment_seq holds the last index ever handed out.
	idx := seq + 1

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO segments (video_id, idx, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, videoID, idx, start, end, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert segment: %w", err)
	}

	_, err = tx.ExecContext(ctx, "UPDATE videos SET segment_seq = ? WHERE id = ?", idx, videoID)
	if err != nil {
		return nil, fmt.Errorf("advance segment counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit segment tx: %w", err)
	}

	return &Segment{
		VideoID:   videoID,
		Index:     idx,
		StartTime: start,
		EndTime:   end,
		CreatedAt: now,
	}, nil
}

// RemoveLast deletes the most recently committed segment for the video and
// returns it. The index counter is left alone: the removed index is burned.
// Returns nil when the video has no segments.
func (r *Repository) RemoveLast(ctx context.Context, videoID string) (*Segment, error) {
	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin remove tx: %w", err)
	}
	defer tx.Rollback()

	var seg Segment
	var createdAt string
	err = tx.QueryRowContext(ctx, `
		SELECT video_id, idx, start_time, end_time, created_at
		FROM segments WHERE video_id = ? ORDER BY idx DESC LIMIT 1
	`, videoID).Scan(&seg.VideoID, &seg.Index, &seg.StartTime, &seg.EndTime, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find last segment: %w", err)
	}
	seg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	_, err = tx.ExecContext(ctx, "DELETE FROM segments WHERE video_id = ? AND idx = ?", videoID, seg.Index)
	if err != nil {
		return nil, fmt.Errorf("delete segment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit remove tx: %w", err)
	}
	return &seg, nil
}

// RemoveAll deletes every segment for the video and resets its index
// counter to zero. Returns the number of segments removed.
func (r *Repository) RemoveAll(ctx context.Context, videoID string) (int, error) {
	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE video_id = ?", videoID)
	if err != nil {
		return 0, fmt.Errorf("delete segments: %w", err)
	}
	removed, _ := res.RowsAffected()

	_, err = tx.ExecContext(ctx, "UPDATE videos SET segment_seq = 0 WHERE id = ?", videoID)
	if err != nil {
		return 0, fmt.Errorf("reset segment counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear tx: %w", err)
	}
	return int(removed), nil
}

// List returns the video's committed segments ordered by index.
func (r *Repository) List(ctx context.Context, videoID string) ([]Segment, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT video_id, idx, start_time, end_time, created_at
		FROM segments WHERE video_id = ? ORDER BY idx ASC
	`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var seg Segment
		var createdAt string
		if err := rows.Scan(&seg.VideoID, &seg.Index, &seg.StartTime, &seg.EndTime, &createdAt); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// ListAll returns every committed segment grouped by video, ordered by
// video id then index.
func (r *Repository) ListAll(ctx context.Context) (map[string][]Segment, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT video_id, idx, start_time, end_time, created_at
		FROM segments ORDER BY video_id ASC, idx ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list all segments: %w", err)
	}
	defer rows.Close()

	byVideo := make(map[string][]Segment)
	for rows.Next() {
		var seg Segment
		var createdAt string
		if err := rows.Scan(&seg.VideoID, &seg.Index, &seg.StartTime, &seg.EndTime, &createdAt); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		byVideo[seg.VideoID] = append(byVideo[seg.VideoID], seg)
	}
	return byVideo, rows.Err()
}

// Count returns the total number of committed segments across all videos.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Conn().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM segments").Scan(&count)
	return count, err
}
