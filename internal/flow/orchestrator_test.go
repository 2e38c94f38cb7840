package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	ptotp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"medauth-service/internal/audit"
	"medauth-service/internal/auth"
	"medauth-service/internal/biometric"
	"medauth-service/internal/capture"
	"medauth-service/internal/challenge"
	"medauth-service/internal/session"
	itotp "medauth-service/internal/totp"
)

const (
	staffEmail    = "dr.adams@clinic.test"
	staffPassword = "correct-horse-battery"

	patientEmail    = "rios@patient.test"
	patientPassword = "staple-oxide-seven"
)

type fakeDirectory struct{}

func (f *fakeDirectory) Authenticate(ctx context.Context, role auth.Role, email, password string) (string, error) {
	if role == auth.RoleStaff && email == staffEmail && password == staffPassword {
		return "staff-1", nil
	}
	if role == auth.RolePatient && email == patientEmail && password == patientPassword {
		return "patient-1", nil
	}
	return "", errors.New("bad credentials")
}

func (f *fakeDirectory) Subject(ctx context.Context, subjectID string) (*auth.Subject, error) {
	return &auth.Subject{ID: subjectID, Email: subjectID + "@clinic.test"}, nil
}

type fakeMatcher struct {
	res        biometric.Result
	err        error
	calls      int
	lastPhrase string
}

func (f *fakeMatcher) Verify(ctx context.Context, subjectID, mediaRef, expectedPhrase string) (biometric.Result, error) {
	f.calls++
	f.lastPhrase = expectedPhrase
	return f.res, f.err
}

func (f *fakeMatcher) Enroll(ctx context.Context, subjectID, mediaRef string) (string, error) {
	return "tpl-" + subjectID, nil
}

type testRig struct {
	orch    *Orchestrator
	store   *session.MemoryStore
	log     *audit.MemoryLog
	matcher *fakeMatcher
	totp    *itotp.Service
}

func newRig(matcher *fakeMatcher, captureSync time.Duration, cfg Config) *testRig {
	store := session.NewMemoryStore()
	log := audit.NewMemoryLog()
	totpService := itotp.NewService(itotp.NewMemoryStore(), "medauth-test")

	orch := New(
		store,
		&fakeDirectory{},
		matcher,
		totpService,
		challenge.NewGenerator(0),
		capture.NewManager(captureSync, 0),
		log,
		cfg,
	)

	return &testRig{orch: orch, store: store, log: log, matcher: matcher, totp: totpService}
}

func (r *testRig) staffAtBiometric(t *testing.T) *session.Session {
	t.Helper()
	ctx := context.Background()

	s, err := r.orch.StartSession(ctx, auth.RoleStaff)
	require.NoError(t, err)
	require.Equal(t, session.StateCredentialsPending, s.State)

	s, err = r.orch.SubmitCredentials(ctx, s.SessionID, staffEmail, staffPassword)
	require.NoError(t, err)
	require.Equal(t, session.StateAwaitingBiometric, s.State)
	return s
}

func TestOrchestrator_StaffAcceptedFlow(t *testing.T) {
	matcher := &fakeMatcher{res: biometric.Result{Matched: true, Score: 0.93, LivenessOk: true}}
	rig := newRig(matcher, time.Second, Config{})
	ctx := context.Background()

	s := rig.staffAtBiometric(t)

	s, ch, err := rig.orch.IssueChallenge(ctx, s.SessionID)
	require.NoError(t, err)
	require.NotEmpty(t, ch.Phrase)

	s, w, err := rig.orch.OpenCapture(ctx, s.SessionID, capture.KindFaceVoiceSync)
	require.NoError(t, err)

	s, res, err := rig.orch.SubmitCapture(ctx, s.SessionID, w.WindowID, "media-001")
	require.NoError(t, err)
	require.Equal(t, session.StateAccepted, s.State)
	require.True(t, res.Matched)

	// the matcher saw exactly the issued phrase
	require.Equal(t, 1, matcher.calls)
	require.Equal(t, ch.Phrase, matcher.lastPhrase)

	entries, err := rig.log.Entries(ctx, s.SessionID)
	require.NoError(t, err)

	var events []audit.Event
	for i, e := range entries {
		events = append(events, e.Event)
		if i > 0 {
			require.Greater(t, e.Seq, entries[i-1].Seq)
		}
	}
	require.Equal(t, []audit.Event{
		audit.EventCredentialOK,
		audit.EventChallengeIssued,
		audit.EventCaptureSubmit,
		audit.EventBiometricAccept,
	}, events)
}

func TestOrchestrator_ExpiredCaptureNeverReachesMatcher(t *testing.T) {
	matcher := &fakeMatcher{res: biometric.Result{Matched: true, Score: 0.99, LivenessOk: true}}
	rig := newRig(matcher, 60*time.Millisecond, Config{})
	ctx := context.Background()

	s := rig.staffAtBiometric(t)

	_, _, err := rig.orch.IssueChallenge(ctx, s.SessionID)
	require.NoError(t, err)

	_, w, err := rig.orch.OpenCapture(ctx, s.SessionID, capture.KindFaceVoiceSync)
	require.NoError(t, err)

	time.Sleep(90 * time.Millisecond) // past the window deadline

	_, _, err = rig.orch.SubmitCapture(ctx, s.SessionID, w.WindowID, "media-late")
	require.ErrorIs(t, err, ErrWindowExpired)

	// matcher never called, state unchanged
	require.Zero(t, matcher.calls)
	got, gerr := rig.store.Get(ctx, s.SessionID)
	require.NoError(t, gerr)
	require.Equal(t, session.StateAwaitingBiometric, got.State)

	// recoverable by reopening
	_, _, err = rig.orch.OpenCapture(ctx, s.SessionID, capture.KindFaceVoiceSync)
	require.NoError(t, err)
}

func TestOrchestrator_WindowConflict(t *testing.T) {
	matcher := &fakeMatcher{}
	rig := newRig(matcher, time.Second, Config{})
	ctx := context.Background()

	s := rig.staffAtBiometric(t)

	_, _, err := rig.orch.OpenCapture(ctx, s.SessionID, capture.KindFaceVoiceSync)
	require.NoError(t, err)

	_, _, err = rig.orch.OpenCapture(ctx, s.SessionID, capture.KindFaceVoiceSync)
	require.ErrorIs(t, err, ErrWindowConflict)
}

func TestOrchestrator_BiometricMismatchRejects(t *testing.T) {
	matcher := &fakeMatcher{res: biometric.Result{Matched: false, Score: 0.21, LivenessOk: true}}
	rig := newRig(matcher, time.Second, Config{})
	ctx := context.Background()

	s := rig.staffAtBiometric(t)

	_, _, err := rig.orch.IssueChallenge(ctx, s.SessionID)
	require.NoError(t, err)
	_, w, err := rig.orch.OpenCapture(ctx, s.SessionID, capture.KindFaceVoiceSync)
	require.NoError(t, err)

	s, res, err := rig.orch.SubmitCapture(ctx, s.SessionID, w.WindowID, "media-002")
	require.NoError(t, err)
	require.Equal(t, session.StateRejected, s.State)
	require.False(t, res.Matched)

	// terminal: nothing else is accepted
	_, _, err = rig.orch.IssueChallenge(ctx, s.SessionID)
	require.ErrorIs(t, err, ErrSessionTerminated)
}

func TestOrchestrator_AdapterFailureFailsClosed(t *testing.T) {
	matcher := &fakeMatcher{err: biometric.ErrUnavailable}
	rig := newRig(matcher, time.Second, Config{})
	ctx := context.Background()

	s := rig.staffAtBiometric(t)

	_, _, err := rig.orch.IssueChallenge(ctx, s.SessionID)
	require.NoError(t, err)
	_, w, err := rig.orch.OpenCapture(ctx, s.SessionID, capture.KindFaceVoiceSync)
	require.NoError(t, err)

	s, res, err := rig.orch.SubmitCapture(ctx, s.SessionID, w.WindowID, "media-003")
	require.NoError(t, err)
	require.Nil(t, res)
	require.Equal(t, session.StateRejected, s.State)

	// audited distinctly from a genuine mismatch
	entries, err := rig.log.Entries(ctx, s.SessionID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	require.Equal(t, audit.EventBiometricReject, last.Event)
	require.Equal(t, "adapter_unavailable", last.Detail)
}

func TestOrchestrator_ChallengeRotationInvalidatesPrior(t *testing.T) {
	matcher := &fakeMatcher{}
	rig := newRig(matcher, time.Second, Config{})
	ctx := context.Background()

	s := rig.staffAtBiometric(t)

	_, first, err := rig.orch.IssueChallenge(ctx, s.SessionID)
	require.NoError(t, err)
	_, second, err := rig.orch.IssueChallenge(ctx, s.SessionID)
	require.NoError(t, err)

	require.False(t, rig.orch.challenges.IsValid(s.SessionID, first.Phrase))
	require.True(t, rig.orch.challenges.IsValid(s.SessionID, second.Phrase))
}

func TestOrchestrator_SubmitCaptureWithoutChallenge(t *testing.T) {
	matcher := &fakeMatcher{}
	rig := newRig(matcher, time.Second, Config{})
	ctx := context.Background()

	s := rig.staffAtBiometric(t)

	_, w, err := rig.orch.OpenCapture(ctx, s.SessionID, capture.KindFaceVoiceSync)
	require.NoError(t, err)

	_, _, err = rig.orch.SubmitCapture(ctx, s.SessionID, w.WindowID, "media-004")
	require.ErrorIs(t, err, ErrInvalidState)
	require.Zero(t, matcher.calls)
}

func TestOrchestrator_PatientTOTPFlowAndReplay(t *testing.T) {
	rig := newRig(&fakeMatcher{}, time.Second, Config{})
	ctx := context.Background()

	s, err := rig.orch.StartSession(ctx, auth.RolePatient)
	require.NoError(t, err)

	s, err = rig.orch.SubmitCredentials(ctx, s.SessionID, patientEmail, patientPassword)
	require.NoError(t, err)
	require.Equal(t, session.StateAwaitingTOTP, s.State)

	s, secret, err := rig.orch.SetupTOTP(ctx, s.SessionID)
	require.NoError(t, err)
	require.NotEmpty(t, secret.Secret)
	require.Contains(t, secret.URL, "otpauth://")

	code, err := ptotp.GenerateCode(secret.Secret, time.Now())
	require.NoError(t, err)

	s, err = rig.orch.VerifyTOTP(ctx, s.SessionID, code)
	require.NoError(t, err)
	require.Equal(t, session.StateAccepted, s.State)

	// a second session for the same subject cannot replay the code
	s2, err := rig.orch.StartSession(ctx, auth.RolePatient)
	require.NoError(t, err)
	s2, err = rig.orch.SubmitCredentials(ctx, s2.SessionID, patientEmail, patientPassword)
	require.NoError(t, err)

	// secret survives; re-enrollment is refused
	_, _, err = rig.orch.SetupTOTP(ctx, s2.SessionID)
	require.ErrorIs(t, err, ErrAlreadyEnrolled)

	s2, err = rig.orch.VerifyTOTP(ctx, s2.SessionID, code)
	require.ErrorIs(t, err, ErrCredentialsInvalid)
	require.Equal(t, session.StateAwaitingTOTP, s2.State)

	entries, err := rig.log.Entries(ctx, s2.SessionID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	require.Equal(t, audit.EventTOTPReject, last.Event)
}

func TestOrchestrator_RetryBudgetTerminatesSession(t *testing.T) {
	rig := newRig(&fakeMatcher{}, time.Second, Config{RetryBudget: 5})
	ctx := context.Background()

	s, err := rig.orch.StartSession(ctx, auth.RoleStaff)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = rig.orch.SubmitCredentials(ctx, s.SessionID, staffEmail, "wrong-password")
		require.ErrorIs(t, err, ErrCredentialsInvalid)
	}

	_, err = rig.orch.SubmitCredentials(ctx, s.SessionID, staffEmail, "wrong-password")
	require.ErrorIs(t, err, ErrRetryBudgetExceeded)

	// even the right password cannot resurrect the session
	_, err = rig.orch.SubmitCredentials(ctx, s.SessionID, staffEmail, staffPassword)
	require.ErrorIs(t, err, ErrSessionTerminated)
}

func TestOrchestrator_ExpiredSessionIsTerminated(t *testing.T) {
	rig := newRig(&fakeMatcher{}, time.Second, Config{SessionTTL: 40 * time.Millisecond})
	ctx := context.Background()

	s, err := rig.orch.StartSession(ctx, auth.RoleStaff)
	require.NoError(t, err)

	time.Sleep(70 * time.Millisecond)

	_, err = rig.orch.SubmitCredentials(ctx, s.SessionID, staffEmail, staffPassword)
	require.ErrorIs(t, err, ErrSessionTerminated)

	entries, err := rig.log.Entries(ctx, s.SessionID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.Equal(t, audit.EventSessionExpired, entries[len(entries)-1].Event)
}

func TestOrchestrator_SweepEvictsAndAudits(t *testing.T) {
	rig := newRig(&fakeMatcher{}, time.Second, Config{SessionTTL: 30 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := rig.orch.StartSession(ctx, auth.RoleStaff)
	require.NoError(t, err)

	go rig.store.Sweep(ctx, 20*time.Millisecond, rig.orch.HandleExpiry)

	require.Eventually(t, func() bool {
		got, gerr := rig.store.Get(context.Background(), s.SessionID)
		return gerr == nil && got == nil
	}, time.Second, 10*time.Millisecond)

	entries, err := rig.log.Entries(context.Background(), s.SessionID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, audit.EventSessionExpired, entries[0].Event)
}

func TestOrchestrator_AcceptIdentity(t *testing.T) {
	rig := newRig(&fakeMatcher{}, time.Second, Config{})
	ctx := context.Background()

	s, err := rig.orch.StartSession(ctx, auth.RolePatient)
	require.NoError(t, err)

	s, err = rig.orch.AcceptIdentity(ctx, s.SessionID, "patient-7")
	require.NoError(t, err)
	require.Equal(t, session.StateAwaitingTOTP, s.State)
	require.Equal(t, "patient-7", s.SubjectID)
}

func TestOrchestrator_AcceptIdentityUnresolvedCountsAsFailure(t *testing.T) {
	rig := newRig(&fakeMatcher{}, time.Second, Config{})
	ctx := context.Background()

	s, err := rig.orch.StartSession(ctx, auth.RolePatient)
	require.NoError(t, err)

	s, err = rig.orch.AcceptIdentity(ctx, s.SessionID, "")
	require.ErrorIs(t, err, ErrCredentialsInvalid)
	require.Equal(t, session.StateCredentialsPending, s.State)
	require.Equal(t, 1, s.AttemptCount)
}

func TestOrchestrator_LogoutIsIdempotent(t *testing.T) {
	rig := newRig(&fakeMatcher{}, time.Second, Config{})
	ctx := context.Background()

	s, err := rig.orch.StartSession(ctx, auth.RoleStaff)
	require.NoError(t, err)

	require.NoError(t, rig.orch.Logout(ctx, s.SessionID))

	got, err := rig.store.Get(ctx, s.SessionID)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, rig.orch.Logout(ctx, s.SessionID))
}

func TestOrchestrator_ChallengeRequiresBiometricStep(t *testing.T) {
	rig := newRig(&fakeMatcher{}, time.Second, Config{})
	ctx := context.Background()

	s, err := rig.orch.StartSession(ctx, auth.RoleStaff)
	require.NoError(t, err)

	_, _, err = rig.orch.IssueChallenge(ctx, s.SessionID)
	require.ErrorIs(t, err, ErrInvalidState)

	// a patient session never sees the biometric step at all
	p, err := rig.orch.StartSession(ctx, auth.RolePatient)
	require.NoError(t, err)
	p, err = rig.orch.SubmitCredentials(ctx, p.SessionID, patientEmail, patientPassword)
	require.NoError(t, err)
	_, _, err = rig.orch.IssueChallenge(ctx, p.SessionID)
	require.ErrorIs(t, err, ErrInvalidState)
}
