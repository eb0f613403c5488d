// Package playback serves media and export files to the editor with
// byte-range support so the preview player can seek.
package playback

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/clipforge/clipforge/internal/apperr"
)

// File describes one file to serve.
type File struct {
	Path string

	// Name is the filename offered to the client. Empty means the base
	// name of Path.
	Name string

	// Download marks the response as an attachment rather than inline.
	Download bool
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// ServeFile writes f honouring a Range header. Errors are returned before
// anything is written; a missing file is a NotFound error.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, f File) error {
	file, err := os.Open(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.NotFound("file", filepath.Base(f.Path))
		}
		return &apperr.IOError{Op: "open", Path: f.Path, Err: err}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return &apperr.IOError{Op: "stat", Path: f.Path, Err: err}
	}
	if stat.IsDir() {
		return apperr.NotFound("file", filepath.Base(f.Path))
	}

	name := f.Name
	if name == "" {
		name = filepath.Base(f.Path)
	}
	size := stat.Size()
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	disposition := "inline"
	if f.Download {
		disposition = "attachment"
	}
	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, name))
	h.Set("Last-Modified", stat.ModTime().UTC().Format(http.TimeFormat))

	parsed, err := ParseRange(r.Header.Get("Range"), size)
	switch err {
	case nil, ErrInvalidRange:
		// A malformed header is ignored and the whole file is sent.
	case ErrUnsatisfiable:
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	if parsed == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			s.copy(w, file, size, f.Path)
		}
		return nil
	}

	if _, err := file.Seek(parsed.Start, io.SeekStart); err != nil {
		return &apperr.IOError{Op: "seek", Path: f.Path, Err: err}
	}
	h.Set("Content-Length", strconv.FormatInt(parsed.ContentLength(), 10))
	h.Set("Content-Range", parsed.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		s.copy(w, file, parsed.ContentLength(), f.Path)
	}
	return nil
}

func (s *Server) copy(w io.Writer, r io.Reader, n int64, path string) {
	if _, err := io.CopyN(w, r, n); err != nil {
		// Usually the player seeking away mid-response.
		s.logger.Debug("file transfer interrupted", "file", filepath.Base(path), "error", err)
	}
}
