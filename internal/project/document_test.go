package project

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clipforge/clipforge/internal/apperr"
	"github.com/clipforge/clipforge/internal/timeline"
)

const legacyDoc = `{
  "id": "p-legacy",
  "name": "Old Project",
  "created": "2023-05-01T10:20:30.123456",
  "mediaItems": [
    {"id": "v1", "sourcePath": "/m/a.mp4", "kind": "video", "duration": 10},
    {"id": "a1", "sourcePath": "/m/b.mp3", "kind": "audio", "duration": 30}
  ],
  "timelineClips": [
    {"id": "c1", "mediaId": "v1", "track": "video", "timelineStart": 0, "timelineDuration": 4, "sourceTrimStart": 0, "sourceTrimEnd": 4},
    {"id": "c2", "mediaId": "a1", "track": "audio", "timelineStart": 2, "timelineDuration": 5, "sourceTrimStart": 1, "sourceTrimEnd": 6}
  ],
  "settings": {"zoom": 2, "pixelsPerSecond": 50}
}`

func TestDecode_LegacyMigration(t *testing.T) {
	doc, err := Decode([]byte(legacyDoc))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(doc.Tracks) != 4 {
		t.Fatalf("tracks = %+v, want default layout", doc.Tracks)
	}
	for i, want := range []string{"video-1", "video-2", "audio-1", "audio-2"} {
		if doc.Tracks[i].ID != want {
			t.Errorf("track %d = %s, want %s", i, doc.Tracks[i].ID, want)
		}
	}
	if doc.TimelineClips[0].TrackID != "video-1" {
		t.Errorf("video clip track = %s, want video-1", doc.TimelineClips[0].TrackID)
	}
	if doc.TimelineClips[1].TrackID != "audio-1" {
		t.Errorf("audio clip track = %s, want audio-1", doc.TimelineClips[1].TrackID)
	}
	if doc.Settings.Zoom != 2 || doc.Settings.PixelsPerSecond != 50 {
		t.Errorf("settings = %+v", doc.Settings)
	}
	if doc.Created.Year() != 2023 {
		t.Errorf("created = %v, want naive timestamp parsed", doc.Created)
	}

	if _, err := doc.Session(); err != nil {
		t.Errorf("migrated document should load: %v", err)
	}
}

func TestDecode_Deterministic(t *testing.T) {
	a, err := Decode([]byte(legacyDoc))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Decode([]byte(legacyDoc))
	if err != nil {
		t.Fatal(err)
	}
	ea, _ := Encode(a)
	eb, _ := Encode(b)
	if string(ea) != string(eb) {
		t.Errorf("migration is not deterministic")
	}
}

func TestDecode_RepairsTrackKind(t *testing.T) {
	doc, err := Decode([]byte(`{
		"id": "p", "name": "x",
		"tracks": [{"id": "video-1", "name": "Video 1"}, {"id": "audio-1", "name": "Audio 1"}],
		"timelineClips": []
	}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if doc.Tracks[0].Kind != timeline.TrackVideo || doc.Tracks[1].Kind != timeline.TrackAudio {
		t.Errorf("tracks = %+v", doc.Tracks)
	}
	if doc.Settings.Zoom != DefaultZoom || doc.Settings.PixelsPerSecond != DefaultPixelsPerSecond {
		t.Errorf("settings defaults = %+v", doc.Settings)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"id":`},
		{"unknown legacy track", `{"id":"p","timelineClips":[{"id":"c","mediaId":"m","track":"overlay"}]}`},
		{"no track and no media", `{"id":"p","timelineClips":[{"id":"c","mediaId":"ghost"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data)); !apperr.IsValidation(err) {
				t.Fatalf("Decode() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestDocument_SessionRejectsBrokenTimeline(t *testing.T) {
	doc := NewDocument("p", "x", time.Now())
	doc.TimelineClips = []timeline.Clip{{ID: "c", MediaID: "missing", TrackID: "video-1", TimelineDuration: 1, SourceTrimEnd: 1}}
	if _, err := doc.Session(); !apperr.IsValidation(err) {
		t.Fatalf("Session() error = %v, want ValidationError", err)
	}
}

func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "project.json")
	doc, err := Decode([]byte(legacyDoc))
	if err != nil {
		t.Fatal(err)
	}

	if err := SaveFile(path, doc); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.ID != doc.ID || len(loaded.TimelineClips) != 2 || loaded.TimelineClips[1].TrackID != "audio-1" {
		t.Errorf("loaded = %+v", loaded)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json")); !apperr.IsNotFound(err) {
		t.Fatalf("LoadFile() error = %v, want NotFoundError", err)
	}
}
