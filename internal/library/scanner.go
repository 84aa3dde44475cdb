package library

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vidmark/vidmark-agent/internal/media"
)

var videoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".avi": true,
	".mkv": true,
}

// Scanner walks the videos directory and registers what it finds.
type Scanner struct {
	videosDir string
	repo      *Repository
	ffmpeg    media.FFmpeg
	logger    *slog.Logger
}

func NewScanner(videosDir string, repo *Repository, ffmpeg media.FFmpeg, logger *slog.Logger) *Scanner {
	return &Scanner{
		videosDir: videosDir,
		repo:      repo,
		ffmpeg:    ffmpeg,
		logger:    logger,
	}
}

// Scan walks the videos directory, derives ids from filename stems, probes
// new or changed files, and upserts the results. Two files whose stems
// sanitize to the same id would silently shadow each other's exports, so
// duplicates fail the whole scan.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	candidates, err := s.collect()
	if err != nil {
		return nil, err
	}

	if dups := duplicateIDs(candidates); len(dups) > 0 {
		return nil, fmt.Errorf("duplicate video ids after sanitizing: %s", strings.Join(dups, ", "))
	}

	result := &ScanResult{}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		existing, err := s.repo.Get(ctx, c.id)
		if err != nil {
			return result, err
		}

		if existing != nil && existing.MTime.Equal(c.video.MTime) && existing.Size == c.video.Size {
			result.Unchanged++
			continue
		}

		probe, err := s.ffmpeg.Probe(ctx, c.video.Path)
		if err != nil {
			s.logger.Warn("probe failed, skipping video",
				"video_id", c.id, "path", c.video.Path, "error", err)
			result.Failed++
			continue
		}
		c.video.FPS = probe.FrameRate
		c.video.Duration = probe.Duration
		c.video.Width = probe.Width
		c.video.Height = probe.Height

		if err := s.repo.Upsert(ctx, c.video); err != nil {
			return result, err
		}
		if existing == nil {
			result.Added++
		} else {
			result.Updated++
		}
	}

	// Records whose files are gone are dropped so later exports cannot
	// target paths that no longer exist. Segments cascade with the video.
	present := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		present[c.id] = true
	}
	known, err := s.repo.List(ctx)
	if err != nil {
		return result, err
	}
	for _, v := range known {
		if present[v.ID] {
			continue
		}
		if err := s.repo.Delete(ctx, v.ID); err != nil {
			return result, err
		}
		s.logger.Info("video removed from library", "video_id", v.ID, "path", v.Path)
		result.Removed++
	}

	s.logger.Info("library scan complete",
		"added", result.Added,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"failed", result.Failed,
		"removed", result.Removed,
	)
	return result, nil
}

type candidate struct {
	id    string
	video *Video
}

func (s *Scanner) collect() ([]candidate, error) {
	var candidates []candidate

	err := filepath.WalkDir(s.videosDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != s.videosDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		stem := strings.TrimSuffix(name, filepath.Ext(name))
		candidates = append(candidates, candidate{
			id: SanitizeID(stem),
			video: &Video{
				ID:       SanitizeID(stem),
				Path:     path,
				Filename: name,
				Size:     info.Size(),
				MTime:    info.ModTime().UTC(),
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk videos dir: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].id < candidates[j].id })
	return candidates, nil
}

func duplicateIDs(candidates []candidate) []string {
	seen := make(map[string]int)
	for _, c := range candidates {
		seen[c.id]++
	}
	var dups []string
	for id, n := range seen {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	sort.Strings(dups)
	return dups
}

// SanitizeID maps a filename stem to an id safe for use in artifact names.
// Anything outside [A-Za-z0-9._-] becomes an underscore.
func SanitizeID(stem string) string {
	var b strings.Builder
	b.Grow(len(stem))
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
