package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clipforge/clipforge/internal/apperr"
)

func TestSanitizeName_ControlChars(t *testing.T) {
	got := SanitizeName(" A\nB\rC\tD\x00 ", 100)
	if strings.ContainsAny(got, "\n\r\t\x00") {
		t.Fatalf("sanitize output contains control chars: %q", got)
	}
	if got != "ABCD" {
		t.Fatalf("SanitizeName control char behavior mismatch, got %q", got)
	}
}

func TestSanitizeName_MaxLength(t *testing.T) {
	got := SanitizeName("abcdefghijklmnopqrstuvwxyz", 10)
	if len([]rune(got)) != 10 {
		t.Fatalf("expected length 10, got %d (%q)", len([]rune(got)), got)
	}
}

func TestSanitizeName_ReplacesDisallowed(t *testing.T) {
	got := SanitizeName("../bad<>|\"name", 100)
	if got != ".._bad____name" {
		t.Fatalf("SanitizeName disallowed replacement mismatch: got %q", got)
	}
}

func TestSettings_BaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Film", "My Film"},
		{"holiday.mp4", "holiday"},
		{"clip.WEBM", "clip"},
		{"", DefaultFilename},
		{"...", DefaultFilename},
		{"a/b", "a_b"},
	}
	for _, tt := range tests {
		if got := (Settings{Filename: tt.in}).BaseName(); got != tt.want {
			t.Errorf("BaseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateOutputDir_Valid(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateOutputDir(dir); err != nil {
		t.Fatalf("ValidateOutputDir(%q) error = %v, want nil", dir, err)
	}
}

func TestValidateOutputDir_NotExist(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	if err := ValidateOutputDir(missing); !apperr.IsNotFound(err) {
		t.Fatalf("ValidateOutputDir(%q) error = %v, want NotFoundError", missing, err)
	}
}

func TestValidateOutputDir_Rejects(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "file.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	for _, dir := range []string{"", "/tmp/../etc", "relative/dir", tmp + "/", filePath} {
		if err := ValidateOutputDir(dir); !apperr.IsValidation(err) {
			t.Errorf("ValidateOutputDir(%q) error = %v, want ValidationError", dir, err)
		}
	}
}

func TestEnsureOutputDir_Creates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureOutputDir(dir); err != nil {
		t.Fatalf("EnsureOutputDir() error = %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestOutputResolver_AvoidsCollisions(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "film.mp4"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewOutputResolver()

	first := r.Claim(dir, "film", ".mp4")
	second := r.Claim(dir, "film", ".mp4")
	if first != filepath.Join(dir, "film - dup1.mp4") {
		t.Errorf("first claim = %s", first)
	}
	if second != filepath.Join(dir, "film - dup2.mp4") {
		t.Errorf("second claim = %s", second)
	}

	r.Release(first)
	if again := r.Claim(dir, "film", ".mp4"); again != first {
		t.Errorf("released path should be reusable, got %s", again)
	}
}
