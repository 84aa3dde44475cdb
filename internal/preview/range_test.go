package preview

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		size    int64
		want    *ByteRange
		wantErr error
	}{
		{"no header", "", 100, nil, nil},
		{"full range", "bytes=0-99", 100, &ByteRange{0, 99}, nil},
		{"open end", "bytes=50-", 100, &ByteRange{50, 99}, nil},
		{"suffix", "bytes=-10", 100, &ByteRange{90, 99}, nil},
		{"suffix larger than file", "bytes=-200", 100, &ByteRange{0, 99}, nil},
		{"end clamped", "bytes=10-500", 100, &ByteRange{10, 99}, nil},
		{"multi range takes first", "bytes=0-9,20-29", 100, &ByteRange{0, 9}, nil},
		{"start beyond size", "bytes=100-", 100, nil, ErrUnsatisfiable},
		{"inverted", "bytes=50-10", 100, nil, ErrUnsatisfiable},
		{"not bytes", "items=0-5", 100, nil, ErrInvalidRange},
		{"garbage", "bytes=abc", 100, nil, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header, tt.size)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseRange() error = %v, want %v", err, tt.wantErr)
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("ParseRange() = %+v, want nil", got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Errorf("ParseRange() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestServeClip(t *testing.T) {
	clipsDir := t.TempDir()
	content := []byte("0123456789abcdefghij")
	if err := os.WriteFile(filepath.Join(clipsDir, "v1_segment_1.mp4"), content, 0644); err != nil {
		t.Fatal(err)
	}

	server := NewServer(clipsDir, "mp4", slog.New(slog.NewTextHandler(io.Discard, nil)))

	t.Run("full file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/clip", nil)

		if err := server.ServeClip(rec, req, "v1", 1); err != nil {
			t.Fatalf("ServeClip() error = %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		body, _ := io.ReadAll(rec.Body)
		if string(body) != string(content) {
			t.Errorf("body = %q, want full content", body)
		}
		if rec.Header().Get("Accept-Ranges") != "bytes" {
			t.Error("Accept-Ranges header missing")
		}
	})

	t.Run("partial range", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/clip", nil)
		req.Header.Set("Range", "bytes=5-9")

		if err := server.ServeClip(rec, req, "v1", 1); err != nil {
			t.Fatalf("ServeClip() error = %v", err)
		}
		if rec.Code != http.StatusPartialContent {
			t.Errorf("status = %d, want 206", rec.Code)
		}
		body, _ := io.ReadAll(rec.Body)
		if string(body) != "56789" {
			t.Errorf("body = %q, want 56789", body)
		}
		if got := rec.Header().Get("Content-Range"); got != "bytes 5-9/20" {
			t.Errorf("Content-Range = %q, want bytes 5-9/20", got)
		}
	})

	t.Run("unsatisfiable range", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/clip", nil)
		req.Header.Set("Range", "bytes=100-")

		if err := server.ServeClip(rec, req, "v1", 1); err != nil {
			t.Fatalf("ServeClip() error = %v", err)
		}
		if rec.Code != http.StatusRequestedRangeNotSatisfiable {
			t.Errorf("status = %d, want 416", rec.Code)
		}
	})

	t.Run("missing clip", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/clip", nil)

		if err := server.ServeClip(rec, req, "v1", 99); err != nil {
			t.Fatalf("ServeClip() error = %v", err)
		}
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}
