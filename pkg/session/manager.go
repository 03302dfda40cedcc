// Package session tracks the identity of one wake-to-response interaction.
//
// Exactly one session id is "current" at any time. A new wake event (or API
// call) replaces it, instantly making every older session inert: in-flight
// work for a stale session keeps running, but its externally visible effects
// (speech, cache writes) are suppressed at the last moment by an IsCurrent
// check. There is no preemption of in-flight calls, only suppression of
// their results.
package session

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// APISessionID is the reserved id used by HTTP-injected commands.
// It always takes priority over audio sessions: beginning it stops any
// running speech, and it is never considered stale, even after a newer
// audio session starts.
const APISessionID = "api"

// Session is the handle passed into a request worker.
type Session struct {
	// ID is the opaque session identifier.
	ID string

	// Started is the session creation time.
	Started time.Time

	m *Manager
}

// Current reports whether this session is still the active one.
// Workers must check this immediately before any externally visible side
// effect; a false result means the result is discarded.
func (s Session) Current() bool {
	if s.m == nil {
		return false
	}
	return s.m.IsCurrent(s.ID)
}

// Manager owns the single current-session id and the speaking flag.
type Manager struct {
	current  atomic.Value // string
	speaking atomic.Bool
	logger   *slog.Logger

	mu      sync.Mutex
	stopper func()
}

// NewManager creates a session manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{logger: logger.With("component", "session")}
	m.current.Store("")
	return m
}

// SetStopper registers the hook that silences any active speech output.
// It runs inside Begin, before the new id becomes current.
func (m *Manager) SetStopper(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopper = fn
}

// Begin starts a new audio session: stops any running speech, clears the
// speaking flag and installs a fresh id as current. Any older session
// becomes inert the instant this returns.
func (m *Manager) Begin() Session {
	return m.begin(uuid.NewString()[:8])
}

// BeginAPI starts (or re-enters) the reserved API session. Like Begin it
// stops running speech, but the API id is never superseded by itself.
func (m *Manager) BeginAPI() Session {
	return m.begin(APISessionID)
}

func (m *Manager) begin(id string) Session {
	m.mu.Lock()
	stopper := m.stopper
	m.mu.Unlock()
	if stopper != nil {
		stopper()
	}

	m.speaking.Store(false)
	m.current.Store(id)
	m.logger.Debug("session started", "id", id)

	return Session{ID: id, Started: time.Now(), m: m}
}

// IsCurrent reports whether id may still produce visible side effects.
// The reserved API id is always current; everything else must match the
// most recently begun session.
func (m *Manager) IsCurrent(id string) bool {
	if id == APISessionID {
		return true
	}
	return id != "" && id == m.current.Load().(string)
}

// CurrentID returns the current session id, for diagnostics.
func (m *Manager) CurrentID() string {
	return m.current.Load().(string)
}

// SetSpeaking records whether audio output is active. The wake-word
// detector suppresses scoring while this is set, so the assistant never
// hears itself.
func (m *Manager) SetSpeaking(v bool) {
	m.speaking.Store(v)
}

// Speaking reports whether audio output is active.
func (m *Manager) Speaking() bool {
	return m.speaking.Load()
}
