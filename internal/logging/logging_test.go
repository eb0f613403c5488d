package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_ScopedAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := WithJobID(WithProjectID(WithComponent(New(&buf, "info"), "export"), "p1"), "j1")
	logger.Debug("hidden")
	logger.Info("visible")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	for key, want := range map[string]string{"component": "export", "project_id": "p1", "job_id": "j1", "msg": "visible"} {
		if rec[key] != want {
			t.Errorf("%s = %v, want %s", key, rec[key], want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %s", got)
	}
	if got := SanitizeToken("abcdefghijkl"); got != "abcd...ijkl" {
		t.Errorf("SanitizeToken(long) = %s", got)
	}
}

func TestSanitizePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := SanitizePath(filepath.Join(home, "videos", "a.mp4")); got != filepath.Join("~", "videos", "a.mp4") {
		t.Errorf("SanitizePath(home) = %s", got)
	}
	if got := SanitizePath(home + "other/a.mp4"); got != home+"other/a.mp4" {
		t.Errorf("sibling prefix should be untouched, got %s", got)
	}
	if got := SanitizePath("/srv/a.mp4"); got != "/srv/a.mp4" {
		t.Errorf("SanitizePath(outside) = %s", got)
	}
}
