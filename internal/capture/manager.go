package capture

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind selects what the window is collecting and for how long. The
// server owns these durations; client-reported timing is only a hint.
type Kind string

const (
	// KindFaceVoiceSync is the high-security combined capture: the
	// subject speaks the challenge phrase on camera within 4 seconds.
	KindFaceVoiceSync Kind = "face_voice_sync"

	// KindVoiceOnly is the longer enrollment recording.
	KindVoiceOnly Kind = "voice_only"
)

// Status of a capture window.
type Status string

const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusSubmitted Status = "submitted"
	StatusTimedOut  Status = "timed_out"
)

var (
	ErrWindowConflict = errors.New("capture: another window is already open for this session")
	ErrWindowExpired  = errors.New("capture: window expired")
	ErrWindowNotFound = errors.New("capture: window not found")
	ErrUnknownKind    = errors.New("capture: unknown capture kind")
)

// Window is the bounded interval during which evidence must arrive.
type Window struct {
	WindowID  string
	SessionID string
	Kind      Kind
	OpenedAt  time.Time
	Duration  time.Duration
	Status    Status
	MediaRef  string // opaque handle, set on submission
}

// Deadline is the last instant a submission is accepted.
func (w *Window) Deadline() time.Time {
	return w.OpenedAt.Add(w.Duration)
}

// Manager enforces the bounded recording window. One open window per
// session; submissions after the deadline are rejected regardless of
// network arrival order. Only open windows are held: a window that
// reaches submitted, timed_out, or closed is dropped from both maps at
// that transition, so the maps stay bounded by the number of in-flight
// sessions.
type Manager struct {
	mu        sync.Mutex
	byID      map[string]*Window
	bySession map[string]string // session id -> open window id
	durations map[Kind]time.Duration
	now       func() time.Time
}

func NewManager(syncDuration, voiceDuration time.Duration) *Manager {
	if syncDuration <= 0 {
		syncDuration = 4 * time.Second
	}
	if voiceDuration <= 0 {
		voiceDuration = 10 * time.Second
	}
	return &Manager{
		byID:      make(map[string]*Window),
		bySession: make(map[string]string),
		durations: map[Kind]time.Duration{
			KindFaceVoiceSync: syncDuration,
			KindVoiceOnly:     voiceDuration,
		},
		now: time.Now,
	}
}

// Open starts a new capture window for the session. Opening while
// another window is still open fails with ErrWindowConflict; a stale
// open window past its deadline is timed out and replaced.
func (m *Manager) Open(sessionID string, kind Kind) (*Window, error) {
	duration, ok := m.durations[kind]
	if !ok {
		return nil, ErrUnknownKind
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if openID, ok := m.bySession[sessionID]; ok {
		existing := m.byID[openID]
		if now.After(existing.Deadline()) {
			existing.Status = StatusTimedOut
			m.evict(existing)
		} else {
			return nil, ErrWindowConflict
		}
	}

	w := &Window{
		WindowID:  uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		OpenedAt:  now,
		Duration:  duration,
		Status:    StatusOpen,
	}
	m.byID[w.WindowID] = w
	m.bySession[sessionID] = w.WindowID

	copy := *w
	return &copy, nil
}

// Submit records evidence against an open window. The deadline check
// reads the clock at decision time: a submission arriving after
// opened_at+duration transitions the window to timed_out and MUST NOT
// be forwarded to the matcher by the caller. Either way the window is
// terminal afterwards and dropped; the returned copy is the caller's
// only view of the outcome.
func (m *Manager) Submit(windowID, mediaRef string) (*Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.byID[windowID]
	if !ok {
		return nil, ErrWindowNotFound
	}

	if m.now().After(w.Deadline()) {
		w.Status = StatusTimedOut
		m.evict(w)
		return nil, ErrWindowExpired
	}

	w.Status = StatusSubmitted
	w.MediaRef = mediaRef
	m.evict(w)

	copy := *w
	return &copy, nil
}

// CloseSession closes any open window when the session terminates.
func (m *Manager) CloseSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if openID, ok := m.bySession[sessionID]; ok {
		w := m.byID[openID]
		w.Status = StatusClosed
		m.evict(w)
	}
}

// Get returns a copy of the window, if still open.
func (m *Manager) Get(windowID string) (*Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.byID[windowID]
	if !ok {
		return nil, false
	}
	copy := *w
	return &copy, true
}

// evict removes a terminal window from both maps. Callers hold the lock.
func (m *Manager) evict(w *Window) {
	delete(m.byID, w.WindowID)
	if m.bySession[w.SessionID] == w.WindowID {
		delete(m.bySession, w.SessionID)
	}
}
