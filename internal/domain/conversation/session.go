// Package conversation persists saved chat sessions as one JSON document,
// most recently modified first.
package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("conversation: not found")
	ErrValidation  = errors.New("conversation: invalid")
	ErrDuplicateID = errors.New("conversation: duplicate id")
)

// Roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat entry. Images hold data URIs.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Session is a saved conversation. Fields the client adds beyond the known
// ones survive a load/save cycle.
type Session struct {
	ID        string
	Timestamp time.Time
	Title     string
	History   []Message
	Settings  map[string]any

	extra map[string]json.RawMessage
	// rawTimestamp keeps a timestamp that did not parse ("", null, or an
	// unknown layout) so it is written back untouched until the session is
	// next updated.
	rawTimestamp json.RawMessage
}

var requiredFields = []string{"id", "timestamp", "title", "history", "settings"}

// DecodeSession parses a client-submitted session and requires every known
// field to be present.
func DecodeSession(data []byte) (Session, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Session{}, fmt.Errorf("%w: not a JSON object", ErrValidation)
	}
	for _, k := range requiredFields {
		if _, ok := fields[k]; !ok {
			return Session{}, fmt.Errorf("%w: missing %q", ErrValidation, k)
		}
	}
	var s Session
	if err := s.UnmarshalJSON(data); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if s.ID == "" {
		return Session{}, fmt.Errorf("%w: empty id", ErrValidation)
	}
	return s, nil
}

// UnmarshalJSON accepts string or numeric ids. ISO-8601 and Python
// str(datetime) timestamps are parsed; anything else is kept verbatim.
func (s *Session) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	out := Session{extra: map[string]json.RawMessage{}}
	for k, raw := range fields {
		var err error
		switch k {
		case "id":
			out.ID, err = decodeID(raw)
		case "timestamp":
			if ts, ok := decodeTimestamp(raw); ok {
				out.Timestamp = ts
			} else {
				out.rawTimestamp = append(json.RawMessage(nil), raw...)
			}
		case "title":
			err = decodeNullable(raw, &out.Title)
		case "history":
			err = decodeNullable(raw, &out.History)
		case "settings":
			err = decodeNullable(raw, &out.Settings)
		default:
			out.extra[k] = raw
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	*s = out
	return nil
}

// MarshalJSON writes the known fields followed by any preserved ones.
func (s Session) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.extra)+len(requiredFields))
	for k, v := range s.extra {
		m[k] = v
	}
	history := s.History
	if history == nil {
		history = []Message{}
	}
	settings := s.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	m["id"] = s.ID
	if s.rawTimestamp != nil && s.Timestamp.IsZero() {
		m["timestamp"] = s.rawTimestamp
	} else {
		m["timestamp"] = s.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	m["title"] = s.Title
	m["history"] = history
	m["settings"] = settings
	return json.Marshal(m)
}

func decodeNullable(raw json.RawMessage, v any) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func decodeID(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}
	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&num); err != nil {
		return "", errors.New("id must be a string or number")
	}
	if i, err := strconv.ParseInt(num.String(), 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return num.String(), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02 15:04:05.999999",
}

func decodeTimestamp(raw json.RawMessage) (time.Time, bool) {
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return time.Time{}, false
	}
	str = strings.TrimSpace(str)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Patch is a partial update. History and Settings only apply together.
type Patch struct {
	History    []Message
	Settings   map[string]any
	HasContent bool // both history and settings were supplied
	Title      string
	HasTitle   bool
}

// DecodePatch parses an update body.
func DecodePatch(data []byte) (Patch, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Patch{}, fmt.Errorf("%w: not a JSON object", ErrValidation)
	}
	var p Patch
	rawHistory, hasHistory := fields["history"]
	rawSettings, hasSettings := fields["settings"]
	if hasHistory && hasSettings {
		if err := decodeNullable(rawHistory, &p.History); err != nil {
			return Patch{}, fmt.Errorf("%w: history: %v", ErrValidation, err)
		}
		if err := decodeNullable(rawSettings, &p.Settings); err != nil {
			return Patch{}, fmt.Errorf("%w: settings: %v", ErrValidation, err)
		}
		p.HasContent = true
	}
	if rawTitle, ok := fields["title"]; ok {
		var title string
		if err := json.Unmarshal(rawTitle, &title); err == nil {
			p.Title = strings.TrimSpace(title)
			p.HasTitle = p.Title != ""
		}
	}
	return p, nil
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool { return !p.HasContent && !p.HasTitle }
