package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	ContextFile = "context.json"
	SessionsDir = "sessions"
	// SessionTTL is how long a session may stay idle before a new one starts.
	SessionTTL = 24 * time.Hour
)

// Session identifies the current history of a tools root. The ID is the
// creation time in Unix milliseconds.
type Session struct {
	ID         string    `json:"session_id"`
	LastActive time.Time `json:"last_active"`
}

func newSession(now time.Time) Session {
	return Session{ID: strconv.FormatInt(now.UnixMilli(), 10), LastActive: now}
}

// lastActivity falls back to the creation time encoded in the ID for
// context files written before activity was tracked.
func (s Session) lastActivity() time.Time {
	if !s.LastActive.IsZero() {
		return s.LastActive
	}
	ms, err := strconv.ParseInt(s.ID, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Expired reports whether the session has been idle longer than SessionTTL.
func (s Session) Expired(now time.Time) bool {
	return now.Sub(s.lastActivity()) > SessionTTL
}

// LoadSession reads <root>/context.json. A missing file yields a zero session.
func LoadSession(root string) (Session, error) {
	var s Session
	b, err := os.ReadFile(filepath.Join(root, ContextFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, errors.Wrap(err, "read session context")
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, errors.Wrap(err, "decode session context")
	}
	return s, nil
}

func SaveSession(root string, s Session) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session context")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(root, ContextFile), b, 0o644), "write session context")
}

// OpenSession returns the session to use at now. A new session is started
// when forceNew is set, when none exists, or when the current one expired.
// The returned session is saved with its activity time set to now.
func OpenSession(root string, forceNew bool, now time.Time) (Session, error) {
	s, err := LoadSession(root)
	if err != nil {
		return Session{}, err
	}
	switch {
	case forceNew || s.ID == "" || s.ID == "0":
		s = newSession(now)
	case s.Expired(now):
		next := newSession(now)
		log.Info().Str("previous", s.ID).Str("session", next.ID).Msg("session expired, starting a new one")
		s = next
	default:
		s.LastActive = now
	}
	if err := SaveSession(root, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// HistoryPath is where the turns of session id are stored.
func HistoryPath(root, id string) string {
	return filepath.Join(root, SessionsDir, id+".json")
}
