package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medauth-service/internal/audit"
	"medauth-service/internal/auth"
	"medauth-service/internal/biometric"
	"medauth-service/internal/capture"
	"medauth-service/internal/challenge"
	"medauth-service/internal/logger"
	"medauth-service/internal/session"
	"medauth-service/internal/totp"
)

// SubjectDirectory answers who a set of credentials belongs to. The
// credentials service implements it against postgres; tests use a fake.
type SubjectDirectory interface {
	Authenticate(ctx context.Context, role auth.Role, email, password string) (string, error)
	Subject(ctx context.Context, subjectID string) (*auth.Subject, error)
}

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	SessionTTL     time.Duration
	LockWait       time.Duration
	MatcherTimeout time.Duration
	RetryBudget    int
}

func (c Config) withDefaults() Config {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 10 * time.Minute
	}
	if c.LockWait <= 0 {
		c.LockWait = 2 * time.Second
	}
	if c.MatcherTimeout <= 0 {
		c.MatcherTimeout = 5 * time.Second
	}
	if c.RetryBudget <= 0 {
		c.RetryBudget = DefaultRetryBudget
	}
	return c
}

// Orchestrator sequences credential, biometric, and TOTP steps per
// session. Every operation runs under that session's lock; different
// sessions proceed in parallel.
type Orchestrator struct {
	sessions   session.Store
	machine    *Machine
	challenges *challenge.Generator
	captures   *capture.Manager
	matcher    biometric.Matcher
	totp       *totp.Service
	directory  SubjectDirectory
	audit      audit.Log
	locks      *lockTable
	cfg        Config
	now        func() time.Time
}

func New(
	sessions session.Store,
	directory SubjectDirectory,
	matcher biometric.Matcher,
	totpService *totp.Service,
	challenges *challenge.Generator,
	captures *capture.Manager,
	auditLog audit.Log,
	cfg Config,
) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		sessions:   sessions,
		machine:    NewMachine(cfg.RetryBudget),
		challenges: challenges,
		captures:   captures,
		matcher:    matcher,
		totp:       totpService,
		directory:  directory,
		audit:      auditLog,
		locks:      newLockTable(),
		cfg:        cfg,
		now:        time.Now,
	}
}

// StartSession creates a session for the selected role and moves it to
// credentials_pending.
func (o *Orchestrator) StartSession(ctx context.Context, role auth.Role) (*session.Session, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidState, role)
	}

	id, err := session.GenerateID()
	if err != nil {
		return nil, err
	}

	now := o.now()
	s := session.Session{
		SessionID: id,
		Role:      role,
		State:     session.StateCreated,
		CreatedAt: now,
		ExpiresAt: now.Add(o.cfg.SessionTTL),
	}

	if err := o.machine.Step(&s, EventRoleSelected); err != nil {
		return nil, err
	}

	if err := o.sessions.Create(ctx, s); err != nil {
		return nil, err
	}

	logger.Info("session started", map[string]any{
		"session_id": s.SessionID,
		"role":       string(role),
	})

	return &s, nil
}

// SubmitCredentials verifies email+password against the directory.
// Failures stay in credentials_pending until the retry budget runs out,
// then the session is rejected for good.
func (o *Orchestrator) SubmitCredentials(ctx context.Context, sessionID, email, password string) (*session.Session, error) {
	release, err := o.locks.acquire(sessionID, o.cfg.LockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := o.live(ctx, sessionID)
	if err != nil {
		return s, err
	}

	if s.State != session.StateCredentialsPending {
		return s, fmt.Errorf("%w: credentials in state %s", ErrInvalidState, s.State)
	}

	subjectID, authErr := o.directory.Authenticate(ctx, s.Role, email, password)
	if authErr != nil {
		return o.credentialsFailed(ctx, s)
	}

	s.SubjectID = subjectID
	if err := o.machine.Step(s, EventCredentialsOK); err != nil {
		return s, err
	}
	o.appendAudit(ctx, s, audit.EventCredentialOK, "password")

	if err := o.sessions.Update(ctx, *s); err != nil {
		return s, err
	}
	return s, nil
}

// AcceptIdentity satisfies the credentials step with an identity already
// verified by an external OIDC provider.
func (o *Orchestrator) AcceptIdentity(ctx context.Context, sessionID, subjectID string) (*session.Session, error) {
	release, err := o.locks.acquire(sessionID, o.cfg.LockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := o.live(ctx, sessionID)
	if err != nil {
		return s, err
	}

	if s.State != session.StateCredentialsPending {
		return s, fmt.Errorf("%w: credentials in state %s", ErrInvalidState, s.State)
	}

	if subjectID == "" {
		return o.credentialsFailed(ctx, s)
	}

	s.SubjectID = subjectID
	if err := o.machine.Step(s, EventCredentialsOK); err != nil {
		return s, err
	}
	o.appendAudit(ctx, s, audit.EventCredentialOK, "oidc")

	if err := o.sessions.Update(ctx, *s); err != nil {
		return s, err
	}
	return s, nil
}

func (o *Orchestrator) credentialsFailed(ctx context.Context, s *session.Session) (*session.Session, error) {
	stepErr := o.machine.Step(s, EventCredentialsBad)
	_ = o.sessions.Update(ctx, *s)

	if errors.Is(stepErr, ErrRetryBudgetExceeded) {
		o.teardown(s.SessionID)
		return s, ErrRetryBudgetExceeded
	}
	return s, ErrCredentialsInvalid
}

// IssueChallenge rotates the liveness phrase for a staff session in the
// biometric step. The new phrase invalidates the previous one
// immediately.
func (o *Orchestrator) IssueChallenge(ctx context.Context, sessionID string) (*session.Session, *challenge.Challenge, error) {
	release, err := o.locks.acquire(sessionID, o.cfg.LockWait)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	s, err := o.live(ctx, sessionID)
	if err != nil {
		return s, nil, err
	}

	if s.State != session.StateAwaitingBiometric {
		return s, nil, fmt.Errorf("%w: challenge in state %s", ErrInvalidState, s.State)
	}

	ch, err := o.challenges.Issue(sessionID)
	if err != nil {
		return s, nil, err
	}

	if err := o.machine.Step(s, EventChallengeIssued); err != nil {
		return s, nil, err
	}
	o.appendAudit(ctx, s, audit.EventChallengeIssued,
		fmt.Sprintf("expires_at=%s", ch.ExpiresAt.UTC().Format(time.RFC3339)))

	if err := o.sessions.Update(ctx, *s); err != nil {
		return s, nil, err
	}
	return s, ch, nil
}

// OpenCapture starts the bounded window during which evidence must be
// submitted. Only one window may be open per session.
func (o *Orchestrator) OpenCapture(ctx context.Context, sessionID string, kind capture.Kind) (*session.Session, *capture.Window, error) {
	release, err := o.locks.acquire(sessionID, o.cfg.LockWait)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	s, err := o.live(ctx, sessionID)
	if err != nil {
		return s, nil, err
	}

	if s.State != session.StateAwaitingBiometric {
		return s, nil, fmt.Errorf("%w: capture open in state %s", ErrInvalidState, s.State)
	}

	w, err := o.captures.Open(sessionID, kind)
	if err != nil {
		switch {
		case errors.Is(err, capture.ErrWindowConflict):
			return s, nil, ErrWindowConflict
		case errors.Is(err, capture.ErrUnknownKind):
			return s, nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		default:
			return s, nil, err
		}
	}

	return s, w, nil
}

// SubmitCapture accepts evidence for an open window and runs the
// biometric decision. An expired window is a hard boundary: the matcher
// is never called and the session state is unchanged. Matcher failure
// resolves to reject, never to an unresolved session.
func (o *Orchestrator) SubmitCapture(ctx context.Context, sessionID, windowID, mediaRef string) (*session.Session, *biometric.Result, error) {
	release, err := o.locks.acquire(sessionID, o.cfg.LockWait)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	s, err := o.live(ctx, sessionID)
	if err != nil {
		return s, nil, err
	}

	if s.State != session.StateAwaitingBiometric {
		return s, nil, fmt.Errorf("%w: capture submit in state %s", ErrInvalidState, s.State)
	}

	ch, ok := o.challenges.Current(sessionID)
	if !ok {
		return s, nil, fmt.Errorf("%w: no live challenge, fetch a new one", ErrInvalidState)
	}

	w, ok := o.captures.Get(windowID)
	if !ok || w.SessionID != sessionID {
		return s, nil, fmt.Errorf("%w: unknown capture window", ErrInvalidState)
	}

	if _, err := o.captures.Submit(windowID, mediaRef); err != nil {
		switch {
		case errors.Is(err, capture.ErrWindowExpired):
			return s, nil, ErrWindowExpired
		default:
			return s, nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
	}

	if err := o.machine.Step(s, EventCaptureSubmitted); err != nil {
		return s, nil, err
	}
	o.appendAudit(ctx, s, audit.EventCaptureSubmit, "window="+windowID)
	o.challenges.Consume(sessionID)

	mctx, cancel := context.WithTimeout(ctx, o.cfg.MatcherTimeout)
	defer cancel()

	res, matchErr := o.matcher.Verify(mctx, s.SubjectID, mediaRef, ch.Phrase)
	if matchErr != nil {
		// fail closed: infrastructure failure is a reject, audited
		// distinctly so operators can tell it from a real mismatch
		logger.Error("matcher unavailable", map[string]any{
			"session_id": sessionID,
			"error":      matchErr.Error(),
		})
		_ = o.machine.Step(s, EventBiometricReject)
		o.appendAudit(ctx, s, audit.EventBiometricReject, "adapter_unavailable")
		o.finishSession(ctx, s)
		return s, nil, nil
	}

	if res.Matched && res.LivenessOk {
		if err := o.machine.Step(s, EventBiometricAccept); err != nil {
			return s, nil, err
		}
		o.appendAudit(ctx, s, audit.EventBiometricAccept,
			fmt.Sprintf("score=%.3f", res.Score))
	} else {
		detail := "mismatch"
		if res.Matched && !res.LivenessOk {
			detail = "liveness_failed"
		}
		_ = o.machine.Step(s, EventBiometricReject)
		o.appendAudit(ctx, s, audit.EventBiometricReject,
			fmt.Sprintf("%s score=%.3f", detail, res.Score))
	}

	o.finishSession(ctx, s)
	return s, &res, nil
}

// SetupTOTP provisions a secret for a patient session that has passed
// credentials. The provisioning URI in the returned secret is what the
// client renders as a QR code.
func (o *Orchestrator) SetupTOTP(ctx context.Context, sessionID string) (*session.Session, *totp.Secret, error) {
	release, err := o.locks.acquire(sessionID, o.cfg.LockWait)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	s, err := o.live(ctx, sessionID)
	if err != nil {
		return s, nil, err
	}

	if s.State != session.StateAwaitingTOTP {
		return s, nil, fmt.Errorf("%w: totp setup in state %s", ErrInvalidState, s.State)
	}

	account := s.SubjectID
	if sub, err := o.directory.Subject(ctx, s.SubjectID); err == nil && sub != nil && sub.Email != "" {
		account = sub.Email
	}

	secret, err := o.totp.Enroll(ctx, s.SubjectID, account)
	if err != nil {
		if errors.Is(err, totp.ErrAlreadyEnrolled) {
			return s, nil, ErrAlreadyEnrolled
		}
		return s, nil, fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
	}

	return s, secret, nil
}

// VerifyTOTP checks a patient's code. Wrong codes burn the retry budget;
// verifier infrastructure failure also counts as a failed attempt, never
// as an accept.
func (o *Orchestrator) VerifyTOTP(ctx context.Context, sessionID, code string) (*session.Session, error) {
	release, err := o.locks.acquire(sessionID, o.cfg.LockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := o.live(ctx, sessionID)
	if err != nil {
		return s, err
	}

	if s.State != session.StateAwaitingTOTP {
		return s, fmt.Errorf("%w: totp verify in state %s", ErrInvalidState, s.State)
	}

	vctx, cancel := context.WithTimeout(ctx, o.cfg.MatcherTimeout)
	defer cancel()

	ok, verifyErr := o.totp.Verify(vctx, s.SubjectID, code)
	if verifyErr != nil {
		if errors.Is(verifyErr, totp.ErrNotEnrolled) {
			return s, ErrNotEnrolled
		}
		logger.Error("totp verifier unavailable", map[string]any{
			"session_id": sessionID,
			"error":      verifyErr.Error(),
		})
		return o.codeFailed(ctx, s, "adapter_unavailable")
	}

	if !ok {
		return o.codeFailed(ctx, s, "code_invalid")
	}

	if err := o.machine.Step(s, EventCodeOK); err != nil {
		return s, err
	}
	o.appendAudit(ctx, s, audit.EventTOTPAccept, "")

	if err := o.sessions.Update(ctx, *s); err != nil {
		return s, err
	}
	return s, nil
}

func (o *Orchestrator) codeFailed(ctx context.Context, s *session.Session, detail string) (*session.Session, error) {
	stepErr := o.machine.Step(s, EventCodeBad)
	o.appendAudit(ctx, s, audit.EventTOTPReject, detail)
	_ = o.sessions.Update(ctx, *s)

	if errors.Is(stepErr, ErrRetryBudgetExceeded) {
		o.teardown(s.SessionID)
		return s, ErrRetryBudgetExceeded
	}
	return s, ErrCredentialsInvalid
}

// Logout destroys the session regardless of its state. Idempotent.
func (o *Orchestrator) Logout(ctx context.Context, sessionID string) error {
	release, err := o.locks.acquire(sessionID, o.cfg.LockWait)
	if err != nil {
		return err
	}
	defer release()

	o.teardown(sessionID)
	if err := o.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}

	logger.Info("session logged out", map[string]any{
		"session_id": sessionID,
	})
	return nil
}

// HandleExpiry is the sweep's eviction hook. It returns true once the
// record may be dropped. A session whose lock is busy is skipped this
// cycle; the sweep never blocks on one session.
func (o *Orchestrator) HandleExpiry(ctx context.Context, sessionID string) bool {
	release, err := o.locks.acquire(sessionID, o.cfg.LockWait)
	if err != nil {
		return false
	}
	defer release()

	s, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return false
	}
	if s == nil {
		return true
	}

	// re-check at decision time: an in-flight request may have raced
	if !o.now().After(s.ExpiresAt) {
		return false
	}

	if !s.State.Terminal() {
		_ = o.machine.Step(s, EventTTLExceeded)
		o.appendAudit(ctx, s, audit.EventSessionExpired, "sweep")
	}

	o.teardown(sessionID)
	return true
}

// AuditTrail returns the recorded entries for a session in causal order.
func (o *Orchestrator) AuditTrail(ctx context.Context, sessionID string) ([]audit.Entry, error) {
	return o.audit.Entries(ctx, sessionID)
}

// live loads the session and settles its expiry at decision time.
// Expired sessions transition and are reported terminated; eviction is
// left to the sweep.
func (o *Orchestrator) live(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}

	if s.State.Terminal() {
		return s, ErrSessionTerminated
	}

	if o.now().After(s.ExpiresAt) {
		_ = o.machine.Step(s, EventTTLExceeded)
		o.appendAudit(ctx, s, audit.EventSessionExpired, "on_demand")
		_ = o.sessions.Update(ctx, *s)
		o.teardown(sessionID)
		return s, ErrSessionTerminated
	}

	return s, nil
}

// finishSession persists a terminal biometric outcome and releases the
// session's challenge and window resources.
func (o *Orchestrator) finishSession(ctx context.Context, s *session.Session) {
	o.teardown(s.SessionID)
	if err := o.sessions.Update(ctx, *s); err != nil {
		logger.Error("failed to persist session outcome", map[string]any{
			"session_id": s.SessionID,
			"error":      err.Error(),
		})
	}
}

func (o *Orchestrator) teardown(sessionID string) {
	o.challenges.Drop(sessionID)
	o.captures.CloseSession(sessionID)
}

func (o *Orchestrator) appendAudit(ctx context.Context, s *session.Session, event audit.Event, detail string) {
	entry := audit.Entry{
		SessionID: s.SessionID,
		Seq:       s.Seq,
		Timestamp: o.now(),
		Event:     event,
		Detail:    detail,
	}
	if err := o.audit.Append(ctx, entry); err != nil {
		logger.Error("audit append failed", map[string]any{
			"session_id": s.SessionID,
			"event":      string(event),
			"error":      err.Error(),
		})
	}
}
