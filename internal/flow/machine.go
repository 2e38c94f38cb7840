package flow

import (
	"fmt"

	"medauth-service/internal/auth"
	"medauth-service/internal/session"
)

// Event is an input to the per-session state machine.
type Event string

const (
	EventRoleSelected     Event = "role_selected"
	EventCredentialsOK    Event = "credentials_ok"
	EventCredentialsBad   Event = "credentials_bad"
	EventChallengeIssued  Event = "challenge_issued"
	EventCaptureSubmitted Event = "capture_submitted"
	EventBiometricAccept  Event = "biometric_accept"
	EventBiometricReject  Event = "biometric_reject"
	EventCodeOK           Event = "code_ok"
	EventCodeBad          Event = "code_bad"
	EventTTLExceeded      Event = "ttl_exceeded"
)

// DefaultRetryBudget bounds consecutive credential and TOTP failures.
const DefaultRetryBudget = 5

// Machine validates and applies transitions. A session moves
// monotonically forward; terminal states accept no further events.
// The machine mutates only State, AttemptCount, and Seq; everything
// else belongs to the orchestrator.
type Machine struct {
	RetryBudget int
}

func NewMachine(retryBudget int) *Machine {
	if retryBudget <= 0 {
		retryBudget = DefaultRetryBudget
	}
	return &Machine{RetryBudget: retryBudget}
}

// Step applies ev to the session. Every accepted event advances Seq,
// which the audit log uses for causal ordering.
func (m *Machine) Step(s *session.Session, ev Event) error {
	if s.State.Terminal() {
		return ErrSessionTerminated
	}

	switch ev {
	case EventRoleSelected:
		if s.State != session.StateCreated {
			return m.invalid(s, ev)
		}
		s.State = session.StateCredentialsPending

	case EventCredentialsOK:
		if s.State != session.StateCredentialsPending {
			return m.invalid(s, ev)
		}
		if s.Role == auth.RoleStaff {
			s.State = session.StateAwaitingBiometric
		} else {
			s.State = session.StateAwaitingTOTP
		}

	case EventCredentialsBad:
		if s.State != session.StateCredentialsPending {
			return m.invalid(s, ev)
		}
		s.AttemptCount++
		if s.AttemptCount > m.RetryBudget {
			s.State = session.StateRejected
			s.Seq++
			return ErrRetryBudgetExceeded
		}

	case EventChallengeIssued:
		// self-loop on rotation
		if s.State != session.StateAwaitingBiometric {
			return m.invalid(s, ev)
		}

	case EventCaptureSubmitted:
		if s.State != session.StateAwaitingBiometric {
			return m.invalid(s, ev)
		}
		s.State = session.StateBiometricSubmitted

	case EventBiometricAccept:
		if s.State != session.StateBiometricSubmitted {
			return m.invalid(s, ev)
		}
		s.State = session.StateAccepted

	case EventBiometricReject:
		if s.State != session.StateBiometricSubmitted {
			return m.invalid(s, ev)
		}
		s.State = session.StateRejected

	case EventCodeOK:
		if s.State != session.StateAwaitingTOTP {
			return m.invalid(s, ev)
		}
		s.State = session.StateAccepted

	case EventCodeBad:
		if s.State != session.StateAwaitingTOTP {
			return m.invalid(s, ev)
		}
		s.AttemptCount++
		if s.AttemptCount > m.RetryBudget {
			s.State = session.StateRejected
			s.Seq++
			return ErrRetryBudgetExceeded
		}

	case EventTTLExceeded:
		s.State = session.StateExpired

	default:
		return m.invalid(s, ev)
	}

	s.Seq++
	return nil
}

func (m *Machine) invalid(s *session.Session, ev Event) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidState, ev, s.State)
}
