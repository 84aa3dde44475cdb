// Package dataset builds the unified training dataset from every exported
// frame set on disk. The merge is a pure read-combine-write: it never
// mutates segment outputs, and the aggregate summary is written last so a
// failed run can never claim more than it copied.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vidmark/vidmark-agent/internal/export"
)

const (
	SummaryFilename   = "dataset_summary.json"
	FrameListFilename = "frame_list.txt"
	ImagesDirname     = "images"
	MetadataDirname   = "metadata"
)

var (
	// ErrSourceMetadataMissing marks a segment directory with no usable
	// metadata record; the merge skips it with a warning.
	ErrSourceMetadataMissing = errors.New("source metadata missing")

	// ErrNoFrameSets is returned when the frames root holds nothing to merge.
	ErrNoFrameSets = errors.New("no frame sets to merge")
)

// SkippedSegment records a segment directory the merge left out and why.
type SkippedSegment struct {
	Dir    string `json:"dir"`
	Reason string `json:"reason"`
}

// MergeResult pairs the written summary with the segments that were skipped.
type MergeResult struct {
	Summary *Summary         `json:"summary"`
	Skipped []SkippedSegment `json:"skipped,omitempty"`
}

// Merger combines per-segment frame directories into one flat image pool.
type Merger struct {
	framesRoot string
	outputRoot string
	logger     *slog.Logger
}

func NewMerger(framesRoot, outputRoot string, logger *slog.Logger) *Merger {
	return &Merger{
		framesRoot: framesRoot,
		outputRoot: outputRoot,
		logger:     logger,
	}
}

// Build merges every valid frame set under the frames root into the output
// root. Segments with missing, invalid or incomplete metadata are skipped
// with a warning; filesystem errors abort the run, leaving partial output
// in place for inspection.
func (m *Merger) Build(ctx context.Context) (*MergeResult, error) {
	entries, err := os.ReadDir(m.framesRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoFrameSets
		}
		return nil, fmt.Errorf("read frames root: %w", err)
	}

	var segmentDirs []string
	for _, e := range entries {
		if e.IsDir() {
			segmentDirs = append(segmentDirs, e.Name())
		}
	}
	if len(segmentDirs) == 0 {
		return nil, ErrNoFrameSets
	}
	sort.Strings(segmentDirs)

	imagesDir := filepath.Join(m.outputRoot, ImagesDirname)
	metadataDir := filepath.Join(m.outputRoot, MetadataDirname)
	for _, dir := range []string{imagesDir, metadataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create dataset dir: %w", err)
		}
	}

	result := &MergeResult{
		Summary: &Summary{
			CreationTimestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
	videos := make(map[string]bool)
	claimed := make(map[string]string) // dest image name -> source segment dir
	var copiedNames []string

	for _, name := range segmentDirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		segDir := filepath.Join(m.framesRoot, name)
		meta, reason := m.loadSegment(segDir, name)
		if meta == nil {
			m.logger.Warn("segment skipped during merge", "segment", name, "reason", reason)
			result.Skipped = append(result.Skipped, SkippedSegment{Dir: name, Reason: reason})
			continue
		}

		frames, err := listFrameFiles(segDir)
		if err != nil {
			return nil, fmt.Errorf("list frames in %s: %w", name, err)
		}
		if len(frames) != meta.FrameCount {
			reason := fmt.Sprintf("frame_count %d does not match %d files on disk", meta.FrameCount, len(frames))
			m.logger.Warn("segment skipped during merge", "segment", name, "reason", reason)
			result.Skipped = append(result.Skipped, SkippedSegment{Dir: name, Reason: reason})
			continue
		}

		for _, frame := range frames {
			destName := name + "_" + frame
			if owner, ok := claimed[destName]; ok {
				return nil, fmt.Errorf("image name collision: %s claimed by both %s and %s", destName, owner, name)
			}
			claimed[destName] = name

			if err := copyFile(filepath.Join(segDir, frame), filepath.Join(imagesDir, destName)); err != nil {
				return nil, fmt.Errorf("copy frame %s: %w", destName, err)
			}
			copiedNames = append(copiedNames, destName)
		}

		destMeta := filepath.Join(metadataDir, name+"_"+export.MetadataFilename)
		if err := copyFile(filepath.Join(segDir, export.MetadataFilename), destMeta); err != nil {
			return nil, fmt.Errorf("copy metadata for %s: %w", name, err)
		}

		videos[meta.VideoID] = true
		result.Summary.Segments = append(result.Summary.Segments, SegmentEntry{
			SegmentName:  name,
			VideoID:      meta.VideoID,
			SegmentIndex: meta.SegmentIndex,
			FrameCount:   len(frames),
		})
		result.Summary.TotalFrames += len(frames)
	}

	result.Summary.TotalVideos = len(videos)
	result.Summary.TotalSegments = len(result.Summary.Segments)

	sort.Strings(copiedNames)
	if err := m.writeFrameList(copiedNames, result.Summary); err != nil {
		return nil, err
	}

	// The summary is the merge's commit record: written last, atomically.
	if err := WriteSummary(m.outputRoot, result.Summary); err != nil {
		return nil, err
	}

	m.logger.Info("unified dataset built",
		"videos", result.Summary.TotalVideos,
		"segments", result.Summary.TotalSegments,
		"frames", result.Summary.TotalFrames,
		"skipped", len(result.Skipped),
	)
	return result, nil
}

// loadSegment returns the segment's metadata, or nil with a skip reason.
func (m *Merger) loadSegment(segDir, name string) (*export.SegmentMetadata, string) {
	meta, err := export.LoadMetadata(segDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSourceMetadataMissing.Error()
		}
		return nil, fmt.Sprintf("%v: %v", ErrSourceMetadataMissing, err)
	}
	if meta.Incomplete {
		return nil, fmt.Sprintf("incomplete extraction (%d frames written)", meta.FrameCount)
	}
	if meta.SegmentName() != name {
		return nil, fmt.Sprintf("metadata identity %s does not match directory name", meta.SegmentName())
	}
	return meta, ""
}

func (m *Merger) writeFrameList(names []string, summary *Summary) error {
	var b strings.Builder
	b.WriteString("Unified Video Dataset\n")
	fmt.Fprintf(&b, "Total Frames: %d\n", summary.TotalFrames)
	fmt.Fprintf(&b, "Total Segments: %d\n", summary.TotalSegments)
	fmt.Fprintf(&b, "Created: %s\n", summary.CreationTimestamp)
	b.WriteString("\nFrame Files:\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	for _, name := range names {
		b.WriteString(name + "\n")
	}

	path := filepath.Join(m.outputRoot, FrameListFilename)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write frame list: %w", err)
	}
	return nil
}

func listFrameFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "frame_") && name != export.MetadataFilename {
			frames = append(frames, name)
		}
	}
	sort.Strings(frames)
	return frames, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
