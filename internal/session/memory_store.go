package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"medauth-service/internal/logger"
)

// EvictFunc is called by the sweeper for each session found past its
// expiry. The callee owns the transition and the audit write; it returns
// true once the record may be dropped from the store.
type EvictFunc func(ctx context.Context, sessionID string) bool

// MemoryStore keeps sessions in process memory. It is the default store
// because eviction must be observable: the sweep hands every expired
// session to an EvictFunc before dropping it, which a TTL-based backend
// cannot do.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(ctx context.Context, s Session) error {
	if s.SessionID == "" {
		return fmt.Errorf("session: missing session_id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.SessionID]; exists {
		return fmt.Errorf("session: id already exists")
	}

	m.sessions[s.SessionID] = s
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil // not found
	}

	copy := s
	return &copy, nil
}

func (m *MemoryStore) Update(ctx context.Context, s Session) error {
	if s.SessionID == "" {
		return fmt.Errorf("session: missing session_id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.SessionID]; !exists {
		return fmt.Errorf("session: not found")
	}

	m.sessions[s.SessionID] = s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

// expired returns the ids of sessions past their expiry at the time of
// the call. The clock is read once per scan, not cached across scans.
func (m *MemoryStore) expired() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var ids []string
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Sweep evicts expired sessions every interval until ctx is cancelled.
// Each eviction is routed through evict so the caller can serialize it
// against in-flight requests for the same session and write the audit
// entry before the record disappears.
func (m *MemoryStore) Sweep(ctx context.Context, interval time.Duration, evict EvictFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("session sweeper stopped", nil)
			return
		case <-ticker.C:
			for _, id := range m.expired() {
				if evict(ctx, id) {
					_ = m.Delete(ctx, id)
				}
			}
		}
	}
}
