package ports

import (
	"context"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

// IdentityResolver turns verified claims into the local identity,
// provisioning it on first sight.
type IdentityResolver interface {
	Resolve(ctx context.Context, claims domain.Claims) (domain.Identity, error)
}

// ProvisionInput is what an administrator supplies to pre-create a
// subject before its first login.
type ProvisionInput struct {
	SubjectID  string
	Email      string
	Role       domain.Role
	Department string
	FirstName  string
	LastName   string
}

// UserService is the full identity use-case surface used by HTTP handlers.
type UserService interface {
	IdentityResolver
	Profile(ctx context.Context, subjectID string) (domain.Identity, error)
	UpdateRole(ctx context.Context, subjectID string, role domain.Role) (domain.Identity, error)
	Provision(ctx context.Context, in ProvisionInput) (domain.Identity, error)
}
