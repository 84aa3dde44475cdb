package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StubFFmpeg is an in-memory FFmpeg used by tests. ExportClip records the
// requested frame count per output path, and ExtractFrames writes that many
// empty image files so downstream code sees a real directory layout.
type StubFFmpeg struct {
	mu sync.Mutex

	// ProbeResults maps source path to a canned probe; paths not present
	// fall back to DefaultProbe.
	ProbeResults map[string]*ProbeResult
	DefaultProbe ProbeResult

	// ProbeErr, ExportErr force the corresponding call to fail.
	ProbeErr  error
	ExportErr error

	// DecodeFailAfter > 0 makes ExtractFrames write that many frames and
	// then return ErrDecodeFailure with the partial count.
	DecodeFailAfter int

	clipFrames  map[string]int
	exportCalls []ClipRequest
}

func NewStubFFmpeg() *StubFFmpeg {
	return &StubFFmpeg{
		DefaultProbe: ProbeResult{
			Duration:  60.0,
			Width:     1280,
			Height:    720,
			Codec:     "h264",
			FrameRate: 30.0,
		},
		clipFrames: make(map[string]int),
	}
}

func (s *StubFFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ProbeErr != nil {
		return nil, s.ProbeErr
	}
	if r, ok := s.ProbeResults[path]; ok {
		probe := *r
		return &probe, nil
	}
	probe := s.DefaultProbe
	return &probe, nil
}

func (s *StubFFmpeg) ExportClip(ctx context.Context, req ClipRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ExportErr != nil {
		return s.ExportErr
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(req.OutputPath, []byte("stub clip"), 0644); err != nil {
		return err
	}
	s.clipFrames[req.OutputPath] = req.FrameCount
	s.exportCalls = append(s.exportCalls, req)
	return nil
}

func (s *StubFFmpeg) ExtractFrames(ctx context.Context, req ExtractRequest) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, ok := s.clipFrames[req.ClipPath]
	if !ok {
		return 0, fmt.Errorf("%w: no clip at %s", ErrSourceUnreadable, req.ClipPath)
	}
	total = StridedCount(total, req.Stride)

	want := total
	failAfter := s.DecodeFailAfter > 0 && s.DecodeFailAfter < total
	if failAfter {
		want = s.DecodeFailAfter
	}

	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return 0, err
	}
	for i := 1; i <= want; i++ {
		name := FrameFileName(i, req.PadWidth, req.ImageExt)
		if err := os.WriteFile(filepath.Join(req.OutputDir, name), []byte("stub frame"), 0644); err != nil {
			return i - 1, err
		}
	}

	if failAfter {
		return want, fmt.Errorf("%w: simulated decode error at frame %d", ErrDecodeFailure, want)
	}
	return want, nil
}

// ExportCalls returns the recorded ExportClip requests in order.
func (s *StubFFmpeg) ExportCalls() []ClipRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ClipRequest(nil), s.exportCalls...)
}
