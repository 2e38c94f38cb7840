package resolver

import (
	"context"
	"database/sql"
	"errors"

	"medauth-service/internal/auth"
	"medauth-service/internal/db"

	"github.com/google/uuid"
)

// DBResolver resolves identities against the subjects table. A brand-new
// identity creates a patient subject: the OIDC entry is the patient
// sign-in path, staff are registered by an operator with credentials.
type DBResolver struct {
	db *db.DB
}

func NewDBResolver(db *db.DB) *DBResolver {
	return &DBResolver{db: db}
}

func (r *DBResolver) Resolve(
	ctx context.Context,
	identity *auth.Identity,
) (string, error) {

	if identity == nil {
		return "", errors.New("identity is nil")
	}

	// 1. Try identity lookup (provider + provider_user_id)
	var subjectID uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		SELECT subject_id
		FROM identities
		WHERE provider = $1
		  AND provider_user_id = $2
	`,
		identity.Provider,
		identity.ProviderUserID,
	).Scan(&subjectID)

	if err == nil {
		return subjectID.String(), nil
	}

	if err != sql.ErrNoRows {
		return "", err
	}

	// 2. Try email-based linking (existing subject, new provider)
	err = r.db.QueryRowContext(ctx, `
		SELECT id
		FROM subjects
		WHERE LOWER(email) = LOWER($1)
	`,
		identity.Email,
	).Scan(&subjectID)

	if err == nil {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO identities (subject_id, provider, provider_user_id)
			VALUES ($1, $2, $3)
		`,
			subjectID,
			identity.Provider,
			identity.ProviderUserID,
		)
		if err != nil {
			return "", err
		}

		return subjectID.String(), nil
	}

	if err != sql.ErrNoRows {
		return "", err
	}

	// 3. Create new patient subject
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO subjects (role, email)
		VALUES ($1, $2)
		RETURNING id
	`,
		string(auth.RolePatient),
		identity.Email,
	).Scan(&subjectID)

	if err != nil {
		return "", err
	}

	// 4. Create identity mapping
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO identities (subject_id, provider, provider_user_id)
		VALUES ($1, $2, $3)
	`,
		subjectID,
		identity.Provider,
		identity.ProviderUserID,
	)

	if err != nil {
		return "", err
	}

	return subjectID.String(), nil
}
