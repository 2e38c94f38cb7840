package credentials

import (
	"context"
	"database/sql"
	"errors"

	"medauth-service/internal/auth"
	"medauth-service/internal/biometric"
	"medauth-service/internal/db"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("credentials already exist")
)

type Service struct {
	db *db.DB
}

func NewService(db *db.DB) *Service {
	return &Service{db: db}
}

// RegisterStaff creates a staff subject plus password credentials.
// Duplicate emails fail with ErrAlreadyRegistered.
func (s *Service) RegisterStaff(
	ctx context.Context,
	signup StaffSignup,
) (string, error) {

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subjects WHERE LOWER(email) = LOWER($1)
		)
	`, signup.Email).Scan(&exists)

	if err != nil {
		return "", err
	}

	if exists {
		return "", ErrAlreadyRegistered
	}

	hash, version, err := HashPassword(signup.Password)
	if err != nil {
		return "", err
	}

	var subjectID uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO subjects (role, name, email, license_number, department)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		string(auth.RoleStaff),
		signup.Name,
		signup.Email,
		signup.LicenseNumber,
		signup.Department,
	).Scan(&subjectID)

	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (subject_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
	`, subjectID, hash, version)

	if err != nil {
		return "", err
	}

	return subjectID.String(), nil
}

// RegisterPatient creates a patient subject plus password credentials.
func (s *Service) RegisterPatient(
	ctx context.Context,
	name string,
	email string,
	password string,
) (string, error) {

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subjects WHERE LOWER(email) = LOWER($1)
		)
	`, email).Scan(&exists)

	if err != nil {
		return "", err
	}

	if exists {
		return "", ErrAlreadyRegistered
	}

	hash, version, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	var subjectID uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO subjects (role, name, email)
		VALUES ($1, $2, $3)
		RETURNING id
	`, string(auth.RolePatient), name, email).Scan(&subjectID)

	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (subject_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
	`, subjectID, hash, version)

	if err != nil {
		return "", err
	}

	return subjectID.String(), nil
}

// Authenticate verifies email+password for the given role and returns
// the subject id. Failures are indistinguishable: a missing subject, a
// role mismatch, and a wrong password all come back ErrInvalidCredentials.
func (s *Service) Authenticate(
	ctx context.Context,
	role auth.Role,
	email string,
	password string,
) (string, error) {

	var (
		subjectID    uuid.UUID
		passwordHash string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT sub.id, c.password_hash
		FROM subjects sub
		JOIN credentials c ON c.subject_id = sub.id
		WHERE LOWER(sub.email) = LOWER($1)
		  AND sub.role = $2
	`, email, string(role)).Scan(&subjectID, &passwordHash)

	if err != nil {
		// hide whether subject exists or not
		return "", ErrInvalidCredentials
	}

	if err := VerifyPassword(passwordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	return subjectID.String(), nil
}

// SaveBiometricRef records the matcher's template reference for a staff
// subject, replacing any previous enrollment.
func (s *Service) SaveBiometricRef(
	ctx context.Context,
	subjectID string,
	templateRef string,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO biometric_refs (subject_id, template_ref)
		VALUES ($1, $2)
		ON CONFLICT (subject_id)
		DO UPDATE SET template_ref = $2, enrolled_at = NOW()
	`, subjectID, templateRef)

	return err
}

// BiometricRef returns the subject's enrolled template record, or nil
// when the subject has no biometric enrollment.
func (s *Service) BiometricRef(ctx context.Context, subjectID string) (*biometric.Record, error) {
	var rec biometric.Record

	err := s.db.QueryRowContext(ctx, `
		SELECT subject_id, template_ref, enrolled_at
		FROM biometric_refs
		WHERE subject_id = $1
	`, subjectID).Scan(&rec.SubjectID, &rec.TemplateRef, &rec.EnrolledAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// Subject loads subject facts by id.
func (s *Service) Subject(ctx context.Context, subjectID string) (*auth.Subject, error) {
	var sub auth.Subject
	var role string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, role, name, email, license_number, department, created_at
		FROM subjects
		WHERE id = $1
	`, subjectID).Scan(
		&sub.ID,
		&role,
		&sub.Name,
		&sub.Email,
		&sub.LicenseNumber,
		&sub.Department,
		&sub.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sub.Role = auth.Role(role)
	return &sub, nil
}
