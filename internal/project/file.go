package project

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/clipforge/clipforge/internal/apperr"
)

// LoadFile reads and migrates a project document from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFound("project file", path)
		}
		return nil, &apperr.IOError{Op: "read", Path: path, Err: err}
	}
	return Decode(data)
}

// SaveFile writes doc to path through a temporary file in the same
// directory so a crash never leaves a truncated document.
func SaveFile(path string, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &apperr.IOError{Op: "create", Path: dir, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".project-*.json")
	if err != nil {
		return &apperr.IOError{Op: "create", Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &apperr.IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &apperr.IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &apperr.IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
