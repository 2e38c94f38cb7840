package totp

import (
	"context"
	"sync"
	"time"
)

// Secret is a per-subject shared TOTP secret. It is created once at
// enrollment and never regenerated automatically; re-enrollment requires
// an explicit revoke first.
type Secret struct {
	SubjectID     string    `json:"subject_id"`
	Secret        string    `json:"secret"` // base32
	Algorithm     string    `json:"algorithm"`
	Digits        int       `json:"digits"`
	PeriodSeconds int       `json:"period_seconds"`
	URL           string    `json:"url"` // otpauth:// provisioning URI
	CreatedAt     time.Time `json:"created_at"`
}

// SecretStore persists enrolled secrets. Get returns nil when the
// subject is not enrolled.
type SecretStore interface {
	Get(ctx context.Context, subjectID string) (*Secret, error)
	Put(ctx context.Context, s Secret) error
	Delete(ctx context.Context, subjectID string) error
}

// MemoryStore keeps secrets in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]Secret
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]Secret)}
}

func (m *MemoryStore) Get(ctx context.Context, subjectID string) (*Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.secrets[subjectID]
	if !ok {
		return nil, nil
	}
	copy := s
	return &copy, nil
}

func (m *MemoryStore) Put(ctx context.Context, s Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.secrets[s.SubjectID] = s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.secrets, subjectID)
	return nil
}
