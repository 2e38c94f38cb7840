package resolver

import (
	"context"

	"medauth-service/internal/auth"
)

// Resolver determines which enrolled subject an external identity
// belongs to. It is the ONLY place where identity-to-subject mapping
// logic lives.
type Resolver interface {
	Resolve(
		ctx context.Context,
		identity *auth.Identity,
	) (subjectID string, err error)
}
