// Package config provides configuration management for the Vidmark Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// Default values
	DefaultPort      = 8641
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultDataDir   = ".vidmark"

	// Environment variable names
	EnvPort       = "VIDMARK_PORT"
	EnvLogLevel   = "VIDMARK_LOG_LEVEL"
	EnvLogFormat  = "VIDMARK_LOG_FORMAT"
	EnvDataDir    = "VIDMARK_DATA_DIR"
	EnvVideosDir  = "VIDMARK_VIDEOS_DIR"
	EnvHeadless   = "VIDMARK_HEADLESS"
	EnvFFmpegPath = "VIDMARK_FFMPEG"
	EnvFFprobe    = "VIDMARK_FFPROBE"

	// Output format environment variable names
	EnvVideoContainer = "VIDMARK_VIDEO_CONTAINER"
	EnvVideoCodec     = "VIDMARK_VIDEO_CODEC"
	EnvImageFormat    = "VIDMARK_IMAGE_FORMAT"
	EnvFramePadWidth  = "VIDMARK_FRAME_PAD_WIDTH"
	EnvFrameStride    = "VIDMARK_FRAME_STRIDE"

	// Database filename
	DBFilename = "vidmark.db"

	// Output format defaults
	DefaultVideoContainer = "mp4"
	DefaultVideoCodec     = "libx264"
	DefaultImageFormat    = "jpg"
	DefaultFramePadWidth  = 4
	DefaultFrameStride    = 1

	// Export job timeout
	DefaultExportTimeout = 30 * time.Minute
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	VideosDir() string
	SegmentsDir() string
	ClipsDir() string
	FramesDir() string
	DatasetDir() string
	Headless() bool
	FFmpegPath() string
	FFprobePath() string
	VideoContainer() string
	VideoCodec() string
	ImageFormat() string
	FramePadWidth() int
	FrameStride() int
	ExportTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port      int
	logLevel  string
	logFormat string
	dataDir   string
	videosDir string
	headless  bool

	ffmpegPath  string
	ffprobePath string

	videoContainer string
	videoCodec     string
	imageFormat    string
	framePadWidth  int
	frameStride    int
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		logFormat:      DefaultLogFormat,
		dataDir:        defaultDataDir(),
		videoContainer: DefaultVideoContainer,
		videoCodec:     DefaultVideoCodec,
		imageFormat:    DefaultImageFormat,
		framePadWidth:  DefaultFramePadWidth,
		frameStride:    DefaultFrameStride,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if lf := os.Getenv(EnvLogFormat); lf != "" {
		if lf != "json" && lf != "text" {
			return nil, fmt.Errorf("invalid %s: must be json or text", EnvLogFormat)
		}
		cfg.logFormat = lf
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if vd := os.Getenv(EnvVideosDir); vd != "" {
		cfg.videosDir = vd
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		cfg.headless = h == "1" || strings.EqualFold(h, "true")
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobe)

	if vc := os.Getenv(EnvVideoContainer); vc != "" {
		cfg.videoContainer = strings.TrimPrefix(strings.ToLower(vc), ".")
	}
	if codec := os.Getenv(EnvVideoCodec); codec != "" {
		cfg.videoCodec = codec
	}
	if imf := os.Getenv(EnvImageFormat); imf != "" {
		cfg.imageFormat = strings.TrimPrefix(strings.ToLower(imf), ".")
	}

	if pw := os.Getenv(EnvFramePadWidth); pw != "" {
		width, err := strconv.Atoi(pw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvFramePadWidth, err)
		}
		if width < DefaultFramePadWidth {
			return nil, fmt.Errorf("invalid %s: padding must be at least %d digits", EnvFramePadWidth, DefaultFramePadWidth)
		}
		cfg.framePadWidth = width
	}

	if fs := os.Getenv(EnvFrameStride); fs != "" {
		stride, err := strconv.Atoi(fs)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvFrameStride, err)
		}
		if stride < 1 {
			return nil, fmt.Errorf("invalid %s: stride must be at least 1", EnvFrameStride)
		}
		cfg.frameStride = stride
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFormat returns the log output format (json or text)
func (c *EnvConfig) LogFormat() string {
	return c.logFormat
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// VideosDir returns the directory scanned for source videos
func (c *EnvConfig) VideosDir() string {
	if c.videosDir != "" {
		return c.videosDir
	}
	return filepath.Join(c.dataDir, "videos")
}

// SegmentsDir returns the root directory for per-segment export output
func (c *EnvConfig) SegmentsDir() string {
	return filepath.Join(c.dataDir, "segments")
}

// ClipsDir returns the directory for rendered segment clips
func (c *EnvConfig) ClipsDir() string {
	return filepath.Join(c.SegmentsDir(), "videos")
}

// FramesDir returns the root directory for extracted frame sets
func (c *EnvConfig) FramesDir() string {
	return filepath.Join(c.SegmentsDir(), "frames")
}

// DatasetDir returns the unified dataset output directory
func (c *EnvConfig) DatasetDir() string {
	return filepath.Join(c.dataDir, "unified_dataset")
}

// Headless reports whether the system tray should be disabled
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

// VideoContainer returns the output clip container extension (no dot)
func (c *EnvConfig) VideoContainer() string {
	return c.videoContainer
}

// VideoCodec returns the encoder passed to ffmpeg for clip rendering
func (c *EnvConfig) VideoCodec() string {
	return c.videoCodec
}

// ImageFormat returns the extracted frame image extension (no dot)
func (c *EnvConfig) ImageFormat() string {
	return c.imageFormat
}

// FramePadWidth returns the minimum zero-padding width for frame filenames
func (c *EnvConfig) FramePadWidth() int {
	return c.framePadWidth
}

// FrameStride returns the extraction stride (1 = every decoded frame)
func (c *EnvConfig) FrameStride() int {
	return c.frameStride
}

func (c *EnvConfig) ExportTimeout() time.Duration {
	return DefaultExportTimeout
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
