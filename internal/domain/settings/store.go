package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/matiasleandrokruk/vocalis/internal/infra/eventbus"
	"github.com/matiasleandrokruk/vocalis/internal/infra/jsonfile"
)

const fileIndent = 4

// Store reads and writes the settings file. Writes are serialized; readers
// always see a whole document because writes go through a rename.
type Store struct {
	path   string
	logger *slog.Logger

	mu          sync.Mutex
	lastWritten []byte
}

// NewStore returns a store backed by path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path is the backing file.
func (s *Store) Path() string { return s.path }

// Load returns the persisted record with missing defaults filled in.
// A missing or unreadable file yields the defaults.
func (s *Store) Load() Settings {
	var st Settings
	if err := jsonfile.Read(s.path, &st); err != nil {
		if !jsonfile.IsNotExist(err) {
			s.logger.Error("could not read settings file, using defaults", "path", s.path, "error", err)
		}
		return Defaults()
	}
	if st == nil {
		return Defaults()
	}
	return st.Backfill()
}

// Save replaces the whole record on disk.
func (s *Store) Save(st Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(st)
}

func (s *Store) saveLocked(st Settings) error {
	if err := jsonfile.Write(s.path, st, fileIndent); err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	if data, err := os.ReadFile(s.path); err == nil {
		s.lastWritten = data
	}
	return nil
}

// Merge overlays patch on the persisted record and saves the result.
// The merged record is returned even when the write fails.
func (s *Store) Merge(patch map[string]any) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.Load()
	for k, v := range patch {
		st[k] = v
	}
	return st, s.saveLocked(st)
}

// Watch publishes eventbus.TopicSettingsChanged with the reloaded record
// whenever the file is changed by something other than this store. It
// blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, bus eventbus.EventBus) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings: watcher: %w", err)
	}
	defer w.Close() //nolint:errcheck

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("settings: watch dir: %w", err)
	}
	// Watch the directory: atomic renames replace the file's inode.
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("settings: watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	const settle = 150 * time.Millisecond
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("settings watcher error", "error", err)
		case <-pending:
			pending = nil
			if s.isOwnWrite() {
				continue
			}
			st := s.Load()
			s.logger.Info("settings file changed on disk", "path", s.path, "model", st.Model())
			bus.Publish(eventbus.TopicSettingsChanged, st)
		}
	}
}

func (s *Store) isOwnWrite() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWritten != nil && bytes.Equal(data, s.lastWritten)
}

// MarshalJSON keeps a nil record from encoding as null.
func (s Settings) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(s))
}
