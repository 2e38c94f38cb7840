package flow

import (
	"sync"
	"time"
)

// lockTable serializes work per session id while letting different
// sessions proceed fully in parallel. Acquisition waits are bounded so
// nothing can block the eviction sweep indefinitely.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{} // buffered 1: send acquires, receive releases
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// acquire takes the lock for the session id, waiting at most wait.
// It returns the release func, or ErrSessionBusy on timeout.
func (t *lockTable) acquire(sessionID string, wait time.Duration) (func(), error) {
	t.mu.Lock()
	e, ok := t.entries[sessionID]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		t.entries[sessionID] = e
	}
	e.refs++
	t.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			t.put(sessionID, e)
		}, nil
	case <-timer.C:
		t.put(sessionID, e)
		return nil, ErrSessionBusy
	}
}

func (t *lockTable) put(sessionID string, e *lockEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(t.entries, sessionID)
	}
}
