// Package media turns files on disk into timeline media items: it classifies
// the file, probes its streams and renders a thumbnail.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/timeline"
)

// ThumbnailSize is the frame size rendered for every imported item.
var ThumbnailSize = ffmpeg.Resolution{Width: 320, Height: 180}

var kindByExt = map[string]timeline.MediaKind{
	".mp4":  timeline.MediaVideo,
	".mov":  timeline.MediaVideo,
	".mkv":  timeline.MediaVideo,
	".avi":  timeline.MediaVideo,
	".wmv":  timeline.MediaVideo,
	".flv":  timeline.MediaVideo,
	".m4v":  timeline.MediaVideo,
	".webm": timeline.MediaVideo,

	".mp3":  timeline.MediaAudio,
	".wav":  timeline.MediaAudio,
	".m4a":  timeline.MediaAudio,
	".aac":  timeline.MediaAudio,
	".flac": timeline.MediaAudio,
	".ogg":  timeline.MediaAudio,

	".png":  timeline.MediaImage,
	".jpg":  timeline.MediaImage,
	".jpeg": timeline.MediaImage,
	".bmp":  timeline.MediaImage,
}

// Classify maps a file extension to a media kind.
func Classify(path string) (timeline.MediaKind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	kind, ok := kindByExt[ext]
	if !ok {
		if ext == "" {
			return "", apperr.Validation("import", "%s has no file extension", filepath.Base(path))
		}
		return "", apperr.Validation("import", "unsupported file type %s", ext)
	}
	return kind, nil
}

// Extensions lists every importable extension.
func Extensions() []string {
	out := make([]string, 0, len(kindByExt))
	for ext := range kindByExt {
		out = append(out, ext)
	}
	return out
}

type Config struct {
	// ThumbnailDir receives rendered thumbnails. Empty disables them.
	ThumbnailDir string

	// ImageDuration is the synthetic duration of still images.
	ImageDuration float64

	Logger *slog.Logger

	// NewID generates media ids. Nil means random UUIDs.
	NewID func() string
}

// Importer builds MediaItems for files on disk.
type Importer struct {
	engine ffmpeg.Engine
	cfg    Config
}

func NewImporter(engine ffmpeg.Engine, cfg Config) *Importer {
	if cfg.ImageDuration <= 0 {
		cfg.ImageDuration = timeline.ImageDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Importer{engine: engine, cfg: cfg}
}

// Import stats, classifies and probes path. Thumbnail failures are logged
// and leave Thumbnail empty; probe failures fail the import.
func (i *Importer) Import(ctx context.Context, path string) (timeline.MediaItem, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return timeline.MediaItem{}, apperr.Validation("import", "invalid path %q", path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return timeline.MediaItem{}, apperr.NotFound("file", abs)
		}
		return timeline.MediaItem{}, &apperr.IOError{Op: "stat", Path: abs, Err: err}
	}
	if info.IsDir() {
		return timeline.MediaItem{}, apperr.Validation("import", "%s is a directory", filepath.Base(abs))
	}

	kind, err := Classify(abs)
	if err != nil {
		return timeline.MediaItem{}, err
	}

	item := timeline.MediaItem{
		ID:         i.cfg.NewID(),
		SourcePath: abs,
		Kind:       kind,
	}

	switch kind {
	case timeline.MediaImage:
		item.Duration = i.cfg.ImageDuration
		noAudio := false
		item.HasAudio = &noAudio
	default:
		res, err := i.engine.Probe(ctx, abs)
		if err != nil {
			return timeline.MediaItem{}, fmt.Errorf("probe %s: %w", filepath.Base(abs), err)
		}
		if err := applyProbe(&item, res); err != nil {
			return timeline.MediaItem{}, err
		}
	}

	item.Thumbnail = i.thumbnail(ctx, item)

	i.cfg.Logger.Info("media imported",
		"media_id", item.ID,
		"kind", item.Kind,
		"duration_s", item.Duration,
		"path", filepath.Base(abs))
	return item, nil
}

// ProbeAudio reports whether path has an audio stream.
func (i *Importer) ProbeAudio(ctx context.Context, path string) (bool, error) {
	res, err := i.engine.Probe(ctx, path)
	if err != nil {
		return false, err
	}
	return res.HasAudio, nil
}

func applyProbe(item *timeline.MediaItem, res *ffmpeg.ProbeResult) error {
	if res.Duration <= 0 || math.IsNaN(res.Duration) || math.IsInf(res.Duration, 0) {
		return &apperr.ProcessingError{Op: "probe", Step: -1, Err: fmt.Errorf("no usable duration for %s", filepath.Base(item.SourcePath))}
	}
	if item.Kind == timeline.MediaVideo && !res.HasVideo {
		return apperr.Validation("import", "%s has no video stream", filepath.Base(item.SourcePath))
	}
	if item.Kind == timeline.MediaAudio && !res.HasAudio {
		return apperr.Validation("import", "%s has no audio stream", filepath.Base(item.SourcePath))
	}

	item.Duration = res.Duration
	hasAudio := res.HasAudio
	item.HasAudio = &hasAudio
	if item.Kind == timeline.MediaVideo {
		item.Width = res.Width
		item.Height = res.Height
		item.FPS = res.FPS()
	}
	return nil
}

// thumbnail renders a single frame for visual media. Audio gets none.
func (i *Importer) thumbnail(ctx context.Context, item timeline.MediaItem) string {
	if i.cfg.ThumbnailDir == "" || item.Kind == timeline.MediaAudio {
		return ""
	}

	stem := strings.TrimSuffix(filepath.Base(item.SourcePath), filepath.Ext(item.SourcePath))
	short := item.ID
	if len(short) > 8 {
		short = short[:8]
	}
	out := filepath.Join(i.cfg.ThumbnailDir, fmt.Sprintf("%s_%s.jpg", stem, short))

	at := 0.0
	if item.Kind == timeline.MediaVideo {
		at = math.Min(1.0, item.Duration/2)
	}

	err := i.engine.Screenshot(ctx, ffmpeg.ScreenshotRequest{
		Input:  item.SourcePath,
		Output: out,
		At:     at,
		Size:   ThumbnailSize,
	}, nil)
	if err != nil {
		i.cfg.Logger.Warn("thumbnail generation failed", "media_id", item.ID, "error", err)
		return ""
	}
	return out
}
