package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// ExecFFmpeg shells out to the ffmpeg and ffprobe binaries.
type ExecFFmpeg struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// NewExecFFmpeg resolves the ffmpeg and ffprobe binaries, preferring the
// configured paths and falling back to PATH lookup.
func NewExecFFmpeg(ffmpegPath, ffprobePath string, logger *slog.Logger) (*ExecFFmpeg, error) {
	ffmpeg, err := resolveBinary(ffmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobe, err := resolveBinary(ffprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}

	logger.Info("ffmpeg resolved", "ffmpeg", ffmpeg, "ffprobe", ffprobe)
	return &ExecFFmpeg{ffmpeg: ffmpeg, ffprobe: ffprobe, logger: logger}, nil
}

func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	return p, nil
}

func (f *ExecFFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	cmd := exec.CommandContext(ctx, f.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,avg_frame_rate,r_frame_rate",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffprobe: %s", ErrSourceUnreadable, strings.TrimSpace(stderr.String()))
	}

	result, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	return result, nil
}

func (f *ExecFFmpeg) ExportClip(ctx context.Context, req ClipRequest) error {
	if _, err := os.Stat(req.SourcePath); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.6f", req.StartOffset),
		"-i", req.SourcePath,
		"-frames:v", strconv.Itoa(req.FrameCount),
		"-c:v", req.Codec,
		"-an",
		req.OutputPath,
	}

	if stderrTail, err := f.run(ctx, args); err != nil {
		return fmt.Errorf("%w: %s", ErrEncodeFailure, stderrTail)
	}
	return nil
}

func (f *ExecFFmpeg) ExtractFrames(ctx context.Context, req ExtractRequest) (int, error) {
	if _, err := os.Stat(req.ClipPath); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	args := []string{"-y", "-i", req.ClipPath}
	if req.Stride > 1 {
		args = append(args,
			"-vf", fmt.Sprintf(`select=not(mod(n\,%d))`, req.Stride),
			"-vsync", "vfr",
		)
	}
	args = append(args,
		"-q:v", "2",
		filepath.Join(req.OutputDir, FramePattern(req.PadWidth, req.ImageExt)),
	)

	stderrTail, runErr := f.run(ctx, args)

	// Count what actually landed on disk; a decode failure partway through
	// still leaves earlier frames in place.
	written, countErr := CountFrameFiles(req.OutputDir, req.ImageExt)
	if countErr != nil {
		return 0, fmt.Errorf("count extracted frames: %w", countErr)
	}

	if runErr != nil {
		return written, fmt.Errorf("%w: %s", ErrDecodeFailure, stderrTail)
	}
	return written, nil
}

// run executes ffmpeg and returns the bounded stderr tail for diagnostics.
func (f *ExecFFmpeg) run(ctx context.Context, args []string) (string, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, f.ffmpeg, args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = io.Writer(&tailWriter{w: &stderrBuf, limit: maxStderrBytes})
	cmd.Stdout = io.Discard

	err := cmd.Run()
	elapsed := time.Since(start)
	tail := strings.TrimSpace(stderrBuf.String())

	if err != nil {
		f.logger.Warn("ffmpeg command failed",
			"args", args,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(tail, 512),
		)
		return tail, err
	}

	f.logger.Debug("ffmpeg command succeeded",
		"args", args,
		"duration_ms", elapsed.Milliseconds(),
	)
	return tail, nil
}

// CountFrameFiles counts the frame_* images with the given extension in dir.
func CountFrameFiles(dir, ext string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	count := 0
	suffix := "." + ext
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, suffix) {
			count++
		}
	}
	return count, nil
}

type probeOutput struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("no video stream found")
	}

	stream := out.Streams[0]

	// avg_frame_rate is the honest rate for variable-frame-rate sources;
	// r_frame_rate is the fallback when the average is unknown ("0/0").
	rate, err := parseRational(stream.AvgFrameRate)
	if err != nil || rate <= 0 {
		rate, err = parseRational(stream.RFrameRate)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("no usable frame rate (avg=%q, r=%q)", stream.AvgFrameRate, stream.RFrameRate)
		}
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil {
		return nil, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}

	return &ProbeResult{
		Duration:  duration,
		Width:     stream.Width,
		Height:    stream.Height,
		Codec:     stream.CodecName,
		FrameRate: rate,
	}, nil
}

func parseRational(s string) (float64, error) {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return strconv.ParseFloat(s, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("zero denominator in %q", s)
	}
	return n / d, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// tailWriter is an io.Writer that keeps only the last `limit` bytes.
type tailWriter struct {
	w     *bytes.Buffer
	limit int
}

func (tw *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	tw.w.Write(p)
	if tw.w.Len() > tw.limit {
		// Keep only the tail
		b := tw.w.Bytes()
		tw.w.Reset()
		tw.w.Write(b[len(b)-tw.limit:])
	}
	return n, nil
}
