package totp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	period = 30 // seconds per time step, matches authenticator apps
	digits = otp.DigitsSix
)

var (
	ErrAlreadyEnrolled = errors.New("totp: subject already enrolled")
	ErrNotEnrolled     = errors.New("totp: subject not enrolled")
)

// Service provisions per-subject secrets and validates codes with one
// period of clock-skew tolerance. A code is never accepted twice for the
// same period for the same subject.
type Service struct {
	store  SecretStore
	issuer string

	mu           sync.Mutex
	lastAccepted map[string]uint64 // subject id -> last accepted time step

	now func() time.Time
}

func NewService(store SecretStore, issuer string) *Service {
	return &Service{
		store:        store,
		issuer:       issuer,
		lastAccepted: make(map[string]uint64),
		now:          time.Now,
	}
}

// Enroll generates a secret for the subject once. Enrolling a subject
// that already holds a live secret fails with ErrAlreadyEnrolled;
// re-enrollment requires an explicit Revoke first.
func (s *Service) Enroll(ctx context.Context, subjectID, account string) (*Secret, error) {
	existing, err := s.store.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyEnrolled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: account,
		Period:      period,
		Digits:      digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	secret := Secret{
		SubjectID:     subjectID,
		Secret:        key.Secret(),
		Algorithm:     "SHA1",
		Digits:        6,
		PeriodSeconds: period,
		URL:           key.String(),
		CreatedAt:     s.now(),
	}

	if err := s.store.Put(ctx, secret); err != nil {
		return nil, err
	}

	copy := secret
	return &copy, nil
}

// Revoke deletes the subject's secret, enabling re-enrollment.
func (s *Service) Revoke(ctx context.Context, subjectID string) error {
	existing, err := s.store.Get(ctx, subjectID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotEnrolled
	}

	s.mu.Lock()
	delete(s.lastAccepted, subjectID)
	s.mu.Unlock()

	return s.store.Delete(ctx, subjectID)
}

// Enrolled reports whether the subject holds a live secret.
func (s *Service) Enrolled(ctx context.Context, subjectID string) (bool, error) {
	existing, err := s.store.Get(ctx, subjectID)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

// Verify checks the code against the current time step and the one
// immediately before and after it. The accepted step is tracked per
// subject so a replayed code within the same step is rejected even
// though it would still validate.
func (s *Service) Verify(ctx context.Context, subjectID, code string) (bool, error) {
	secret, err := s.store.Get(ctx, subjectID)
	if err != nil {
		return false, err
	}
	if secret == nil {
		return false, ErrNotEnrolled
	}

	now := s.now()
	step, ok := matchStep(code, secret.Secret, now)
	if !ok {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, seen := s.lastAccepted[subjectID]; seen && step <= last {
		return false, nil // replay within an already-consumed step
	}
	s.lastAccepted[subjectID] = step

	return true, nil
}

// matchStep reports which time step the code belongs to, checking the
// current step and its two neighbors.
func matchStep(code, secret string, now time.Time) (uint64, bool) {
	opts := totp.ValidateOpts{
		Period:    period,
		Skew:      0,
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	}

	for _, offset := range []time.Duration{0, -period * time.Second, period * time.Second} {
		t := now.Add(offset)
		ok, err := totp.ValidateCustom(code, secret, t, opts)
		if err == nil && ok {
			return uint64(t.Unix()) / period, true
		}
	}

	return 0, false
}
