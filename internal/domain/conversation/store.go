package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/matiasleandrokruk/vocalis/internal/infra/jsonfile"
)

const fileIndent = 2

var errCorrupt = errors.New("conversation: corrupt history file")

// Store is the whole-file conversation repository. Every mutation is a
// read-modify-write under one mutex.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewStore returns a store backed by path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger, now: time.Now}
}

// List returns every readable session in persisted order. A missing or
// corrupt file reads as empty.
func (s *Store) List() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, _ := s.load()
	return sessions(all)
}

// Insert prepends a new session. Ids are unique.
func (s *Store) Insert(sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("%w: empty id", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadForWrite()
	if err != nil {
		return err
	}
	if indexOf(all, sess.ID) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateID, sess.ID)
	}
	return s.save(append([]record{{sess: sess}}, all...))
}

// Update applies p to the session with id, refreshes its timestamp and moves
// it to the front.
func (s *Store) Update(id string, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadForWrite()
	if err != nil {
		return err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return ErrNotFound
	}
	if p.Empty() {
		return fmt.Errorf("%w: no update data", ErrValidation)
	}

	sess := all[idx].sess
	if p.HasContent {
		sess.History = p.History
		sess.Settings = p.Settings
	}
	if p.HasTitle {
		sess.Title = p.Title
	}
	now := s.now().UTC()
	if now.Before(sess.Timestamp) {
		now = sess.Timestamp
	}
	sess.Timestamp = now
	sess.rawTimestamp = nil

	reordered := make([]record, 0, len(all))
	reordered = append(reordered, record{sess: sess})
	reordered = append(reordered, all[:idx]...)
	reordered = append(reordered, all[idx+1:]...)
	return s.save(reordered)
}

// Delete removes the session with id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadForWrite()
	if err != nil {
		return err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return ErrNotFound
	}
	return s.save(append(all[:idx:idx], all[idx+1:]...))
}

// record is one element of the history array. Elements that do not decode
// as a Session are carried as raw JSON and written back unchanged.
type record struct {
	sess Session
	raw  json.RawMessage
}

func (r record) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	return r.sess.MarshalJSON()
}

func sessions(all []record) []Session {
	out := make([]Session, 0, len(all))
	for _, r := range all {
		if r.raw == nil {
			out = append(out, r.sess)
		}
	}
	return out
}

func indexOf(all []record, id string) int {
	for i, r := range all {
		if r.raw == nil && r.sess.ID == id {
			return i
		}
	}
	return -1
}

// load reads the file. A missing file is an empty history; a file that is
// not a JSON array yields an empty history plus errCorrupt.
func (s *Store) load() ([]record, error) {
	var items []json.RawMessage
	if err := jsonfile.Read(s.path, &items); err != nil {
		if jsonfile.IsNotExist(err) {
			return []record{}, nil
		}
		s.logger.Error("could not read conversation history, treating as empty", "path", s.path, "error", err)
		return []record{}, fmt.Errorf("%w: %v", errCorrupt, err)
	}

	all := make([]record, 0, len(items))
	for i, raw := range items {
		var sess Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			s.logger.Warn("skipping unreadable conversation record", "path", s.path, "index", i, "error", err)
			all = append(all, record{raw: raw})
			continue
		}
		all = append(all, record{sess: sess})
	}
	return all, nil
}

// loadForWrite is load for mutations. A corrupt file is moved aside before
// it gets replaced so its contents can still be recovered by hand.
func (s *Store) loadForWrite() ([]record, error) {
	all, err := s.load()
	if !errors.Is(err, errCorrupt) {
		return all, nil
	}
	backup, berr := jsonfile.Backup(s.path, s.now())
	if berr != nil {
		return nil, fmt.Errorf("conversation: keep corrupt history: %w", berr)
	}
	s.logger.Warn("moved corrupt conversation history aside", "path", s.path, "backup", backup)
	return all, nil
}

func (s *Store) save(all []record) error {
	if err := jsonfile.Write(s.path, all, fileIndent); err != nil {
		return fmt.Errorf("conversation: save: %w", err)
	}
	return nil
}
