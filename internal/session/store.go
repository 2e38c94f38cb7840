package session

import (
	"context"
)

// Store defines how sessions are stored and retrieved. Implementations
// perform storage plus time-based eviction only; all business logic goes
// through the state machine.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}
