package totp

import (
	"context"
	"testing"
	"time"

	ptotp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(NewMemoryStore(), "medauth-test")
}

func TestService_EnrollOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	secret, err := svc.Enroll(ctx, "patient-1", "rios@patient.test")
	require.NoError(t, err)
	require.NotEmpty(t, secret.Secret)
	require.Contains(t, secret.URL, "otpauth://totp/")
	require.Contains(t, secret.URL, "medauth-test")
	require.Equal(t, 6, secret.Digits)
	require.Equal(t, 30, secret.PeriodSeconds)

	_, err = svc.Enroll(ctx, "patient-1", "rios@patient.test")
	require.ErrorIs(t, err, ErrAlreadyEnrolled)

	enrolled, err := svc.Enrolled(ctx, "patient-1")
	require.NoError(t, err)
	require.True(t, enrolled)
}

func TestService_RevokeEnablesReEnrollment(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.Enroll(ctx, "patient-1", "rios@patient.test")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, "patient-1"))
	require.ErrorIs(t, svc.Revoke(ctx, "patient-1"), ErrNotEnrolled)

	second, err := svc.Enroll(ctx, "patient-1", "rios@patient.test")
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)
}

func TestService_VerifyValidCode(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return at }

	secret, err := svc.Enroll(ctx, "patient-1", "rios@patient.test")
	require.NoError(t, err)

	code, err := ptotp.GenerateCode(secret.Secret, at)
	require.NoError(t, err)

	ok, err := svc.Verify(ctx, "patient-1", code)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestService_VerifyRejectsReplay(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return at }

	secret, err := svc.Enroll(ctx, "patient-1", "rios@patient.test")
	require.NoError(t, err)

	code, err := ptotp.GenerateCode(secret.Secret, at)
	require.NoError(t, err)

	ok, err := svc.Verify(ctx, "patient-1", code)
	require.NoError(t, err)
	require.True(t, ok)

	// same code inside the same period reads as spent
	ok, err = svc.Verify(ctx, "patient-1", code)
	require.NoError(t, err)
	require.False(t, ok)

	// the next period's code goes through
	next := at.Add(30 * time.Second)
	svc.now = func() time.Time { return next }

	code, err = ptotp.GenerateCode(secret.Secret, next)
	require.NoError(t, err)

	ok, err = svc.Verify(ctx, "patient-1", code)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestService_VerifyAcceptsOnePeriodOfSkew(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return at }

	secret, err := svc.Enroll(ctx, "patient-1", "rios@patient.test")
	require.NoError(t, err)

	// client clock one period behind
	behind, err := ptotp.GenerateCode(secret.Secret, at.Add(-30*time.Second))
	require.NoError(t, err)
	ok, err := svc.Verify(ctx, "patient-1", behind)
	require.NoError(t, err)
	require.True(t, ok)

	// and one period ahead, for a different subject
	secret2, err := svc.Enroll(ctx, "patient-2", "chen@patient.test")
	require.NoError(t, err)
	ahead, err := ptotp.GenerateCode(secret2.Secret, at.Add(30*time.Second))
	require.NoError(t, err)
	ok, err = svc.Verify(ctx, "patient-2", ahead)
	require.NoError(t, err)
	require.True(t, ok)

	// two periods out is too far
	far, err := ptotp.GenerateCode(secret2.Secret, at.Add(90*time.Second))
	require.NoError(t, err)
	ok, err = svc.Verify(ctx, "patient-2", far)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestService_VerifyWrongCodeAndUnknownSubject(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Verify(ctx, "nobody", "123456")
	require.ErrorIs(t, err, ErrNotEnrolled)

	_, err = svc.Enroll(ctx, "patient-1", "rios@patient.test")
	require.NoError(t, err)

	ok, err := svc.Verify(ctx, "patient-1", "000000")
	require.NoError(t, err)
	require.False(t, ok)
}
