// Package media wraps ffmpeg and ffprobe for clip rendering and frame
// extraction. All boundary math converting operator timestamps into frame
// indices lives here so the exec and stub implementations stay in agreement.
package media

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrSourceUnreadable = errors.New("source unreadable")
	ErrSeekOutOfRange   = errors.New("seek out of range")
	ErrEncodeFailure    = errors.New("encode failure")
	ErrDecodeFailure    = errors.New("decode failure")
)

type FFmpeg interface {
	// Probe reports the container-level properties of a video file.
	Probe(ctx context.Context, path string) (*ProbeResult, error)

	// ExportClip renders an exact frame range of the source into a
	// standalone clip file.
	ExportClip(ctx context.Context, req ClipRequest) error

	// ExtractFrames decodes a clip into numbered still images and returns
	// the number of images actually written. On a mid-stream decode error
	// the partial count is returned together with ErrDecodeFailure.
	ExtractFrames(ctx context.Context, req ExtractRequest) (int, error)
}

type ProbeResult struct {
	Duration  float64
	Width     int
	Height    int
	Codec     string
	FrameRate float64
}

// Resolution formats the probed dimensions as "WIDTHxHEIGHT".
func (p *ProbeResult) Resolution() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

type ClipRequest struct {
	SourcePath string
	OutputPath string
	// StartOffset is the seek position in seconds, already snapped to a
	// frame boundary by FrameWindow.
	StartOffset float64
	FrameCount  int
	Codec       string
}

type ExtractRequest struct {
	ClipPath  string
	OutputDir string
	PadWidth  int
	ImageExt  string
	// Stride keeps every Nth decoded frame; 1 keeps all of them.
	Stride int
}

// FrameWindow converts a [start, end) time range into an exact frame range
// against the given frame rate. The first frame is the one nearest to start;
// the last frame included is the one whose presentation time is strictly
// before end, so a segment is never truncated by a fractional frame and
// never includes a frame that begins at or after end.
func FrameWindow(start, end, fps float64) (startFrame, frameCount int) {
	startFrame = int(math.Round(start * fps))
	endFrame := int(math.Ceil(end*fps - 1e-9))
	if endFrame < startFrame {
		endFrame = startFrame
	}
	return startFrame, endFrame - startFrame
}

// StridedCount returns how many frames survive extraction with the given
// stride: frames 0, stride, 2*stride, ... of the decoded sequence.
func StridedCount(frameCount, stride int) int {
	if stride <= 1 {
		return frameCount
	}
	if frameCount <= 0 {
		return 0
	}
	return (frameCount + stride - 1) / stride
}

// PadWidth returns the zero-padding width for frame filenames: at least min
// digits, widened when frameCount would overflow the padding.
func PadWidth(frameCount, min int) int {
	if frameCount > 0 {
		if digits := numDigits(frameCount); digits > min {
			return digits
		}
	}
	return min
}

func numDigits(n int) int {
	d := 1
	for n >= 10 {
		n /= 10
		d++
	}
	return d
}

// FrameFileName formats the 1-based frame index into its on-disk name,
// e.g. frame_0001.jpg.
func FrameFileName(index, padWidth int, ext string) string {
	return fmt.Sprintf("frame_%0*d.%s", padWidth, index, ext)
}

// FramePattern returns the printf-style output pattern handed to ffmpeg for
// the same naming scheme as FrameFileName.
func FramePattern(padWidth int, ext string) string {
	return fmt.Sprintf("frame_%%0%dd.%s", padWidth, ext)
}
