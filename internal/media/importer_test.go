package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/ffmpeg"
	"github.com/clipforge/clipforge/internal/ffmpeg/ffmpegtest"
	"github.com/clipforge/clipforge/internal/timeline"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestImporter(engine ffmpeg.Engine, thumbs string) *Importer {
	return NewImporter(engine, Config{
		ThumbnailDir: thumbs,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewID:        func() string { return "media-0001-abcd" },
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want timeline.MediaKind
		ok   bool
	}{
		{"/a/clip.MP4", timeline.MediaVideo, true},
		{"/a/clip.mov", timeline.MediaVideo, true},
		{"song.wav", timeline.MediaAudio, true},
		{"song.mp3", timeline.MediaAudio, true},
		{"photo.JPEG", timeline.MediaImage, true},
		{"doc.pdf", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		got, err := Classify(tt.path)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("Classify(%q) = %v, %v; want %v", tt.path, got, err, tt.want)
		}
		if !tt.ok && !apperr.IsValidation(err) {
			t.Errorf("Classify(%q) error = %v, want ValidationError", tt.path, err)
		}
	}
}

func TestImport_Video(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, dir, "holiday.mp4")
	engine := ffmpegtest.New()
	engine.Probes[src] = &ffmpeg.ProbeResult{
		Duration:  12.5,
		Width:     1920,
		Height:    1080,
		FrameRate: ffmpeg.Rational{Num: 30000, Den: 1001},
		HasVideo:  true,
		HasAudio:  true,
	}
	thumbs := filepath.Join(dir, "thumbs")

	item, err := newTestImporter(engine, thumbs).Import(context.Background(), src)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if item.Kind != timeline.MediaVideo || item.Duration != 12.5 || item.Width != 1920 || item.Height != 1080 {
		t.Errorf("item = %+v", item)
	}
	if item.FPS < 29.96 || item.FPS > 29.98 {
		t.Errorf("FPS = %v, want 29.97", item.FPS)
	}
	if item.HasAudio == nil || !*item.HasAudio {
		t.Errorf("HasAudio not recorded")
	}
	wantThumb := filepath.Join(thumbs, "holiday_media-00.jpg")
	if item.Thumbnail != wantThumb {
		t.Errorf("Thumbnail = %q, want %q", item.Thumbnail, wantThumb)
	}
	if _, err := os.Stat(wantThumb); err != nil {
		t.Errorf("thumbnail not written: %v", err)
	}
}

func TestImport_ImageUsesSyntheticDuration(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, dir, "still.png")
	engine := ffmpegtest.New()

	item, err := newTestImporter(engine, "").Import(context.Background(), src)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if item.Kind != timeline.MediaImage || item.Duration != timeline.ImageDuration {
		t.Errorf("item = %+v", item)
	}
	if item.CarriesAudio() {
		t.Errorf("image should not carry audio")
	}
	if engine.Count("probe") != 0 || engine.Count("screenshot") != 0 {
		t.Errorf("unexpected engine calls: %+v", engine.Calls())
	}
}

func TestImport_AudioHasNoThumbnail(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, dir, "song.mp3")
	engine := ffmpegtest.New()
	engine.Probes[src] = &ffmpeg.ProbeResult{Duration: 180, HasAudio: true}

	item, err := newTestImporter(engine, filepath.Join(dir, "thumbs")).Import(context.Background(), src)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if item.Kind != timeline.MediaAudio || item.Duration != 180 || item.Thumbnail != "" {
		t.Errorf("item = %+v", item)
	}
}

func TestImport_ThumbnailFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, dir, "clip.mov")
	thumbs := filepath.Join(dir, "thumbs")
	engine := ffmpegtest.New()
	engine.Probes[src] = &ffmpeg.ProbeResult{Duration: 4, HasVideo: true}
	engine.FailOn[filepath.Join(thumbs, "clip_media-00.jpg")] = errors.New("decoder error")

	item, err := newTestImporter(engine, thumbs).Import(context.Background(), src)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if item.Thumbnail != "" {
		t.Errorf("Thumbnail = %q, want empty", item.Thumbnail)
	}
}

func TestImport_Errors(t *testing.T) {
	dir := t.TempDir()
	unprobed := touch(t, dir, "broken.mp4")
	unsupported := touch(t, dir, "notes.txt")
	silent := touch(t, dir, "silent.wav")
	zero := touch(t, dir, "zero.mkv")

	engine := ffmpegtest.New()
	engine.Probes[silent] = &ffmpeg.ProbeResult{Duration: 3, HasAudio: false}
	engine.Probes[zero] = &ffmpeg.ProbeResult{Duration: 0, HasVideo: true}

	tests := []struct {
		name  string
		path  string
		check func(error) bool
	}{
		{"missing", filepath.Join(dir, "gone.mp4"), apperr.IsNotFound},
		{"directory", dir, apperr.IsValidation},
		{"unsupported", unsupported, apperr.IsValidation},
		{"probe failure", unprobed, apperr.IsProcessing},
		{"audio without stream", silent, apperr.IsValidation},
		{"zero duration", zero, apperr.IsProcessing},
	}
	imp := newTestImporter(engine, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := imp.Import(context.Background(), tt.path); !tt.check(err) {
				t.Fatalf("Import() error = %v", err)
			}
		})
	}
}
