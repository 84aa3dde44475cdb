package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vidmark/vidmark-agent/internal/annotate"
	"github.com/vidmark/vidmark-agent/internal/config"
	"github.com/vidmark/vidmark-agent/internal/library"
	"github.com/vidmark/vidmark-agent/internal/logging"
	"github.com/vidmark/vidmark-agent/internal/media"
)

// ProgressFunc is called after each segment finishes, successfully or not.
type ProgressFunc func(done, total int)

// Exporter turns committed segments into clips and frame sets.
type Exporter struct {
	ffmpeg media.FFmpeg
	cfg    config.Config
	logger *slog.Logger
}

func NewExporter(ffmpeg media.FFmpeg, cfg config.Config, logger *slog.Logger) *Exporter {
	return &Exporter{ffmpeg: ffmpeg, cfg: cfg, logger: logger}
}

// ExportSegments renders every segment of one video. Per-segment failures
// are recorded in the report and never abort the remaining segments.
func (e *Exporter) ExportSegments(ctx context.Context, video *library.Video, segments []annotate.Segment, progress ProgressFunc) *Report {
	report := &Report{StartedAt: time.Now().UTC()}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	total := len(segments)
	if total == 0 {
		return report
	}
	log := logging.WithVideoID(e.logger, video.ID)

	// Probe once per run: fps and duration must reflect the file on disk,
	// not a possibly stale library record.
	probe, err := e.ffmpeg.Probe(ctx, video.Path)
	if err != nil {
		for i, seg := range segments {
			report.add(SegmentResult{
				VideoID:      seg.VideoID,
				SegmentIndex: seg.Index,
				Outcome:      OutcomeFailed,
				Error:        err.Error(),
			})
			if progress != nil {
				progress(i+1, total)
			}
		}
		log.Error("source probe failed, all segments skipped",
			"path", video.Path, "error", err)
		return report
	}

	for i, seg := range segments {
		if ctx.Err() != nil {
			report.add(SegmentResult{
				VideoID:      seg.VideoID,
				SegmentIndex: seg.Index,
				Outcome:      OutcomeFailed,
				Error:        ctx.Err().Error(),
			})
			continue
		}

		result := e.exportOne(ctx, video, seg, probe)
		report.add(result)

		if result.Outcome == OutcomeCompleted {
			log.Info("segment exported",
				"segment_index", seg.Index,
				"frames", result.FrameCount,
			)
		} else {
			log.Warn("segment export degraded",
				"segment_index", seg.Index,
				"outcome", result.Outcome,
				"error", result.Error,
			)
		}

		if progress != nil {
			progress(i+1, total)
		}
	}

	return report
}

func (e *Exporter) exportOne(ctx context.Context, video *library.Video, seg annotate.Segment, probe *media.ProbeResult) SegmentResult {
	result := SegmentResult{VideoID: seg.VideoID, SegmentIndex: seg.Index}

	if seg.StartTime >= probe.Duration {
		result.Outcome = OutcomeFailed
		result.Error = fmt.Sprintf("%v: start %.3f beyond duration %.3f",
			media.ErrSeekOutOfRange, seg.StartTime, probe.Duration)
		return result
	}

	startFrame, frameCount := media.FrameWindow(seg.StartTime, seg.EndTime, probe.FrameRate)
	startOffset := float64(startFrame) / probe.FrameRate

	name := SegmentName(seg.VideoID, seg.Index)
	clipPath := filepath.Join(e.cfg.ClipsDir(), name+"."+e.cfg.VideoContainer())
	framesDir := filepath.Join(e.cfg.FramesDir(), name)

	err := e.ffmpeg.ExportClip(ctx, media.ClipRequest{
		SourcePath:  video.Path,
		OutputPath:  clipPath,
		StartOffset: startOffset,
		FrameCount:  frameCount,
		Codec:       e.cfg.VideoCodec(),
	})
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		return result
	}
	result.ClipPath = clipPath

	// Re-export replaces the frame set wholesale; stale frames from a wider
	// earlier run must not survive next to a fresh metadata record.
	if err := os.RemoveAll(framesDir); err != nil {
		result.Outcome = OutcomeFailed
		result.Error = fmt.Sprintf("clear frames dir: %v", err)
		return result
	}

	expected := media.StridedCount(frameCount, e.cfg.FrameStride())
	pad := media.PadWidth(expected, e.cfg.FramePadWidth())

	written, extractErr := e.ffmpeg.ExtractFrames(ctx, media.ExtractRequest{
		ClipPath:  clipPath,
		OutputDir: framesDir,
		PadWidth:  pad,
		ImageExt:  e.cfg.ImageFormat(),
		Stride:    e.cfg.FrameStride(),
	})

	incomplete := false
	switch {
	case extractErr == nil:
	case errors.Is(extractErr, media.ErrDecodeFailure) && written > 0:
		// Partial frames are usable for inspection; the record carries the
		// honest count and the incomplete flag so merges exclude it.
		incomplete = true
		result.Error = extractErr.Error()
	default:
		result.Outcome = OutcomeFailed
		result.Error = extractErr.Error()
		return result
	}

	meta := &SegmentMetadata{
		VideoID:             seg.VideoID,
		SegmentIndex:        seg.Index,
		SourceVideoPath:     video.Path,
		StartTime:           seg.StartTime,
		EndTime:             seg.EndTime,
		Duration:            seg.Duration(),
		FPS:                 probe.FrameRate,
		FrameCount:          written,
		Resolution:          probe.Resolution(),
		ExtractionTimestamp: time.Now().UTC().Format(time.RFC3339),
		Incomplete:          incomplete,
	}
	if err := WriteMetadata(framesDir, meta); err != nil {
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		return result
	}

	result.FramesDir = framesDir
	result.FrameCount = written
	if incomplete {
		result.Outcome = OutcomeIncomplete
	} else {
		result.Outcome = OutcomeCompleted
	}
	return result
}
