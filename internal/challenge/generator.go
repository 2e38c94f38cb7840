package challenge

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// DefaultTTL matches the rotation window the liveness prompt was
// designed around: long enough to read the phrase aloud on camera, short
// enough that a recorded replay goes stale.
const DefaultTTL = 120 * time.Second

// Challenge is a liveness phrase bound to a session.
type Challenge struct {
	Phrase    string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Generator issues rotating liveness phrases with a per-session TTL.
// At most one challenge is live per session; issuing a new one
// invalidates the previous phrase immediately.
type Generator struct {
	mu     sync.Mutex
	active map[string]*Challenge
	ttl    time.Duration
	now    func() time.Time
}

func NewGenerator(ttl time.Duration) *Generator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Generator{
		active: make(map[string]*Challenge),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue generates a fresh phrase for the session and replaces any
// previously issued one. State preconditions are the orchestrator's
// concern; the generator only owns phrase lifecycle.
func (g *Generator) Issue(sessionID string) (*Challenge, error) {
	phrase, err := newPhrase()
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	ch := &Challenge{
		Phrase:    phrase,
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.ttl),
	}
	g.active[sessionID] = ch

	copy := *ch
	return &copy, nil
}

// Current returns the live challenge for the session, if any. A phrase
// past its expiry is treated as absent.
func (g *Generator) Current(sessionID string) (*Challenge, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.active[sessionID]
	if !ok || g.now().After(ch.ExpiresAt) {
		return nil, false
	}

	copy := *ch
	return &copy, true
}

// IsValid checks phrase equality and that the challenge has not expired.
// It does not consume the challenge; consumption happens only on
// successful capture submission via Consume.
func (g *Generator) IsValid(sessionID, phrase string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.active[sessionID]
	if !ok {
		return false
	}
	return ch.Phrase == phrase && !g.now().After(ch.ExpiresAt)
}

// Consume discards the session's challenge after a successful capture.
func (g *Generator) Consume(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.active, sessionID)
}

// Drop discards any challenge state when the session terminates.
func (g *Generator) Drop(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.active, sessionID)
}

// newPhrase draws word-word-NN from the pool with crypto/rand.
func newPhrase() (string, error) {
	first, err := randomIndex(len(phraseWords))
	if err != nil {
		return "", err
	}
	second, err := randomIndex(len(phraseWords))
	if err != nil {
		return "", err
	}
	suffix, err := randomIndex(100)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s-%02d", phraseWords[first], phraseWords[second], suffix), nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("challenge: failed to generate phrase: %w", err)
	}
	return int(v.Int64()), nil
}
