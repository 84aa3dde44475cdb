package preview

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidmark/vidmark-agent/internal/export"
)

// Server streams rendered clips out of the clips directory. Clip names are
// composed from sanitized video ids and numeric indices, never from request
// paths, so the directory cannot be escaped.
type Server struct {
	clipsDir  string
	container string
	logger    *slog.Logger
}

func NewServer(clipsDir, container string, logger *slog.Logger) *Server {
	return &Server{clipsDir: clipsDir, container: container, logger: logger}
}

// ServeClip streams the rendered clip for (videoID, index), honoring a
// single byte range when the player asks for one.
func (s *Server) ServeClip(w http.ResponseWriter, r *http.Request, videoID string, index int) error {
	name := export.SegmentName(videoID, index) + "." + s.container
	if strings.ContainsAny(name, "/\\") {
		http.Error(w, "invalid clip name", http.StatusBadRequest)
		return nil
	}
	return s.serveFile(w, r, filepath.Join(s.clipsDir, name))
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "clip not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open clip: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat clip: %w", err)
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	byteRange, err := ParseRange(r.Header.Get("Range"), size)
	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if err == ErrInvalidRange {
		// Malformed ranges fall back to a full response per RFC 9110.
		byteRange = nil
	} else if err != nil {
		return err
	}

	if byteRange == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", byteRange.Length()))
	w.Header().Set("Content-Range", byteRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(byteRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek clip: %w", err)
	}
	io.CopyN(w, file, byteRange.Length())
	return nil
}
