// Package jsonfile reads and atomically rewrites whole JSON documents.
// Writers go through a temp file in the same directory followed by a rename,
// so a concurrent reader sees either the old or the new document.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotExist is returned by Read when the file is missing.
var ErrNotExist = os.ErrNotExist

// Read decodes the JSON document at path into v.
// A missing file yields an error matching ErrNotExist.
func Read(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("jsonfile: read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsonfile: decode %q: %w", path, err)
	}
	return nil
}

// Write encodes v with the given indent and replaces path atomically.
// The parent directory is created if needed.
func Write(path string, v any, indent int) error {
	data, err := json.MarshalIndent(v, "", strings.Repeat(" ", indent))
	if err != nil {
		return fmt.Errorf("jsonfile: encode %q: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("jsonfile: mkdir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck
		cleanup()
		return fmt.Errorf("jsonfile: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		cleanup()
		return fmt.Errorf("jsonfile: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("jsonfile: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("jsonfile: replace %q: %w", path, err)
	}
	return nil
}

// Backup renames path to a timestamped sibling ("history.json.20240501-100000.bak")
// and returns the new name.
func Backup(path string, now time.Time) (string, error) {
	backup := fmt.Sprintf("%s.%s.bak", path, now.UTC().Format("20060102-150405"))
	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("jsonfile: backup %q: %w", path, err)
	}
	return backup, nil
}

// IsNotExist reports whether err came from a missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
