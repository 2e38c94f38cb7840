package session

import (
	"time"

	"medauth-service/internal/auth"
)

// State is the position of a session in its authentication flow.
type State string

const (
	StateCreated            State = "created"
	StateCredentialsPending State = "credentials_pending"
	StateAwaitingBiometric  State = "awaiting_biometric"
	StateBiometricSubmitted State = "biometric_submitted"
	StateAwaitingTOTP       State = "awaiting_totp"
	StateAccepted           State = "accepted"
	StateRejected           State = "rejected"
	StateExpired            State = "expired"
)

// Terminal reports whether no further transitions are permitted.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateRejected || s == StateExpired
}

// Session identifies one authentication attempt. It is mutated only by
// the state machine; stores treat it as an opaque record.
type Session struct {
	SessionID    string    `json:"session_id"`
	Role         auth.Role `json:"role"`
	SubjectID    string    `json:"subject_id,omitempty"` // empty until credentials verified
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	AttemptCount int       `json:"attempt_count"`

	// Seq advances on every state transition. Audit entries take their
	// ordering from it, so causal order survives wall-clock skew.
	Seq uint64 `json:"seq"`
}
