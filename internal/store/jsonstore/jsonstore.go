package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// JSON-backed storage. One value per file, human-readable, portable.
// No locking; fine for a local single-user client.

// File is a JSON document at Path.
type File struct {
	Path string
	Perm os.FileMode // defaults to 0o644
}

// Load decodes the file into v. It reports false when the file does not exist.
func (f File) Load(v any) (bool, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read file: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("json unmarshal: %w", err)
	}
	return true, nil
}

// Save writes v, creating the parent directory (0700) when needed.
func (f File) Save(v any) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	perm := f.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := os.WriteFile(f.Path, b, perm); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if f.Perm != 0 {
		if err := os.Chmod(f.Path, f.Perm); err != nil {
			return fmt.Errorf("chmod: %w", err)
		}
	}
	return nil
}

// Remove deletes the file. A missing file is not an error.
func (f File) Remove() error {
	if err := os.Remove(f.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}
