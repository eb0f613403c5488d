package export

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/clipforge/clipforge/internal/apperr"
)

// SanitizeName strips control characters, replaces anything outside a small
// safe set with '_' and truncates to maxLen runes.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// ValidateOutputDir checks that dir is a clean, absolute, existing directory.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return apperr.Validation("output dir", "path is required")
	}

	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return apperr.Validation("output dir", "path cannot contain traversal")
		}
	}

	if filepath.Clean(dir) != dir {
		return apperr.Validation("output dir", "path must be clean")
	}
	if !filepath.IsAbs(dir) {
		return apperr.Validation("output dir", "path must be absolute")
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.NotFound("output dir", dir)
		}
		return &apperr.IOError{Op: "stat", Path: dir, Err: err}
	}
	if !info.IsDir() {
		return apperr.Validation("output dir", "%s is not a directory", dir)
	}

	return nil
}

// EnsureOutputDir creates dir if needed and then validates it.
func EnsureOutputDir(dir string) error {
	if dir != "" && filepath.IsAbs(dir) && filepath.Clean(dir) == dir {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &apperr.IOError{Op: "create", Path: dir, Err: err}
		}
	}
	return ValidateOutputDir(dir)
}
