package audit

import (
	"context"
	"time"
)

// Event names the verification decisions and transitions worth keeping.
type Event string

const (
	EventCredentialOK    Event = "credential_ok"
	EventChallengeIssued Event = "challenge_issued"
	EventCaptureSubmit   Event = "capture_submitted"
	EventBiometricAccept Event = "biometric_accept"
	EventBiometricReject Event = "biometric_reject"
	EventTOTPAccept      Event = "totp_accept"
	EventTOTPReject      Event = "totp_reject"
	EventSessionExpired  Event = "session_expired"
)

// Entry is one immutable line of the verification trail. Seq carries the
// session's transition counter so ordering reflects causal event order,
// not wall-clock arrival order.
type Entry struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Event     Event     `json:"event"`
	Detail    string    `json:"detail,omitempty"`
}

// Log is an append-only sink. Append must not fail silently: callers
// block on it so an in-flight entry finishes its write before shutdown.
type Log interface {
	Append(ctx context.Context, e Entry) error
	Entries(ctx context.Context, sessionID string) ([]Entry, error)
}
