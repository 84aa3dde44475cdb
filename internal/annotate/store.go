package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Store layers the in-memory marking sessions over the segment repository.
// Marks are cheap and revisable; nothing touches the database until Commit.
type Store struct {
	repo   *Repository
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(repo *Repository, logger *slog.Logger) *Store {
	return &Store{
		repo:     repo,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// MarkStart opens (or restarts) the marking session for a video. A repeated
// start mark replaces the previous one and discards any unpaired end mark.
func (s *Store) MarkStart(videoID string, t float64) (*Session, error) {
	if t < 0 {
		return nil, fmt.Errorf("%w: start %.3f is negative", ErrInvalidSegmentBounds, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session := &Session{VideoID: videoID, StartTime: &t}
	s.sessions[videoID] = session
	s.logger.Debug("start marked", "video_id", videoID, "time", t)
	return session, nil
}

// MarkEnd records the end mark for the video's open session. Repeated end
// marks replace the previous one.
func (s *Store) MarkEnd(videoID string, t float64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[videoID]
	if !ok || session.StartTime == nil {
		return nil, fmt.Errorf("%w: mark a start before an end for video %s", ErrNoActiveSegment, videoID)
	}

	session.EndTime = &t
	s.logger.Debug("end marked", "video_id", videoID, "time", t)
	return session, nil
}

// Commit validates the open session against the video duration and persists
// it as a segment. On validation failure the session is left untouched so
// the operator can correct a single bad mark instead of starting over.
func (s *Store) Commit(ctx context.Context, videoID string, videoDuration float64) (*Segment, error) {
	s.mu.Lock()
	session, ok := s.sessions[videoID]
	if !ok || session.StartTime == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: nothing marked for video %s", ErrNoActiveSegment, videoID)
	}
	if session.EndTime == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: end not marked for video %s", ErrNoActiveSegment, videoID)
	}
	start, end := *session.StartTime, *session.EndTime
	s.mu.Unlock()

	if err := validateBounds(start, end, videoDuration); err != nil {
		return nil, err
	}

	segment, err := s.repo.Commit(ctx, videoID, start, end)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.sessions, videoID)
	s.mu.Unlock()

	s.logger.Info("segment committed",
		"video_id", videoID,
		"index", segment.Index,
		"start", start,
		"end", end,
	)
	return segment, nil
}

func validateBounds(start, end, duration float64) error {
	if start < 0 {
		return fmt.Errorf("%w: start %.3f is negative", ErrInvalidSegmentBounds, start)
	}
	if end <= start {
		return fmt.Errorf("%w: end %.3f must be after start %.3f", ErrInvalidSegmentBounds, end, start)
	}
	if duration > 0 && end > duration {
		return fmt.Errorf("%w: end %.3f exceeds video duration %.3f", ErrInvalidSegmentBounds, end, duration)
	}
	return nil
}

// Session returns a copy of the open session for the video, or nil.
func (s *Store) Session(videoID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[videoID]
	if !ok {
		return nil
	}
	copied := *session
	return &copied
}

// Discard drops the open session for the video, if any.
func (s *Store) Discard(videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, videoID)
}

// RemoveLast removes the most recent committed segment. Pending marks are
// unaffected.
func (s *Store) RemoveLast(ctx context.Context, videoID string) (*Segment, error) {
	removed, err := s.repo.RemoveLast(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if removed != nil {
		s.logger.Info("segment removed", "video_id", videoID, "index", removed.Index)
	}
	return removed, nil
}

// RemoveAll clears every committed segment for the video and discards its
// open session.
func (s *Store) RemoveAll(ctx context.Context, videoID string) (int, error) {
	removed, err := s.repo.RemoveAll(ctx, videoID)
	if err != nil {
		return 0, err
	}
	s.Discard(videoID)
	s.logger.Info("segments cleared", "video_id", videoID, "removed", removed)
	return removed, nil
}

// List returns the committed segments for the video in index order.
func (s *Store) List(ctx context.Context, videoID string) ([]Segment, error) {
	return s.repo.List(ctx, videoID)
}

// Count returns the total number of committed segments across all videos.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
