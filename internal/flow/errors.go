package flow

import "errors"

// Step-level failures are absorbed into state transitions; these
// sentinels are what callers see. Handlers map them to stable error
// codes and never expose internal adapter diagnostics.
var (
	// ErrInvalidState: operation not legal for the current session
	// state. Recoverable, client should re-fetch state.
	ErrInvalidState = errors.New("flow: operation invalid for session state")

	// ErrWindowConflict: a capture window is already open.
	ErrWindowConflict = errors.New("flow: capture window conflict")

	// ErrWindowExpired: evidence arrived after the window closed.
	// Recoverable by reopening.
	ErrWindowExpired = errors.New("flow: capture window expired")

	// ErrCredentialsInvalid: wrong password or TOTP code. Retry within
	// the budget.
	ErrCredentialsInvalid = errors.New("flow: invalid credentials")

	// ErrRetryBudgetExceeded: terminal, the session moved to rejected.
	ErrRetryBudgetExceeded = errors.New("flow: retry budget exceeded")

	// ErrAdapterUnavailable: matcher or verifier infrastructure failed.
	// The session-facing outcome is reject; the audit trail records the
	// distinction.
	ErrAdapterUnavailable = errors.New("flow: adapter unavailable")

	// ErrSessionTerminated: operation against a terminal session.
	ErrSessionTerminated = errors.New("flow: session terminated")

	// ErrSessionNotFound: no such session (never existed or evicted).
	ErrSessionNotFound = errors.New("flow: session not found")

	// ErrSessionBusy: the per-session lock could not be acquired within
	// the bounded wait.
	ErrSessionBusy = errors.New("flow: session busy")

	// ErrAlreadyEnrolled / ErrNotEnrolled: TOTP enrollment lifecycle.
	ErrAlreadyEnrolled = errors.New("flow: subject already enrolled")
	ErrNotEnrolled     = errors.New("flow: subject not enrolled")
)
