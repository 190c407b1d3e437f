package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
	"github.com/pipelinecrm/leadhub/internal/pkg/metrics"
)

// IdentityService keeps the local user directory in step with the
// identity provider.
type IdentityService struct {
	dir ports.UserDirectory
	log zerolog.Logger
	now func() time.Time
}

func NewIdentityService(dir ports.UserDirectory, log zerolog.Logger) *IdentityService {
	return &IdentityService{
		dir: dir,
		log: log.With().Str("component", "identity").Logger(),
		now: time.Now,
	}
}

// Resolve returns the identity for claims, creating it with the default
// role on first sight. An existing identity only has lastLogin refreshed;
// its role is never touched here.
func (s *IdentityService) Resolve(ctx context.Context, c domain.Claims) (domain.Identity, error) {
	if c.SubjectID == "" {
		return domain.Identity{}, fmt.Errorf("resolve identity: %w: missing subject", domain.ErrInvalidToken)
	}
	if domain.NormalizeEmail(c.Email) == "" {
		return domain.Identity{}, fmt.Errorf("resolve identity: %w: missing email", domain.ErrInvalidToken)
	}

	now := s.now().UTC()

	id, err := s.dir.TouchLogin(ctx, c.SubjectID, now)
	if err == nil {
		metrics.IdentitySyncTotal.WithLabelValues("existing").Inc()
		return id, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		metrics.IdentitySyncTotal.WithLabelValues("error").Inc()
		return domain.Identity{}, directoryErr("resolve identity", err)
	}

	id, created, err := s.dir.InsertOrGet(ctx, domain.NewIdentity(c, now))
	if err != nil {
		metrics.IdentitySyncTotal.WithLabelValues("error").Inc()
		return domain.Identity{}, directoryErr("provision identity", err)
	}

	if created {
		metrics.IdentitySyncTotal.WithLabelValues("created").Inc()
		s.log.Info().Str("subject_id", id.SubjectID).Str("role", string(id.Role)).Msg("identity provisioned")
	} else {
		// Lost the insert race to a concurrent first login.
		metrics.IdentitySyncTotal.WithLabelValues("existing").Inc()
		s.log.Debug().Str("subject_id", id.SubjectID).Msg("identity created concurrently, using stored row")
	}
	return id, nil
}

// Profile returns the stored identity for subjectID.
func (s *IdentityService) Profile(ctx context.Context, subjectID string) (domain.Identity, error) {
	id, err := s.dir.FindBySubject(ctx, subjectID)
	if err != nil {
		return domain.Identity{}, directoryErr("profile", err)
	}
	return id, nil
}

// UpdateRole changes the role of an existing identity.
func (s *IdentityService) UpdateRole(ctx context.Context, subjectID string, role domain.Role) (domain.Identity, error) {
	if !role.Valid() {
		return domain.Identity{}, fmt.Errorf("update role: %w: unknown role %q", domain.ErrValidation, role)
	}

	id, err := s.dir.UpdateRole(ctx, subjectID, role, s.now().UTC())
	if err != nil {
		return domain.Identity{}, directoryErr("update role", err)
	}

	s.log.Info().Str("subject_id", subjectID).Str("role", string(role)).Msg("role updated")
	return id, nil
}

// Provision pre-creates an identity so that role and department are in
// place before the subject's first login.
func (s *IdentityService) Provision(ctx context.Context, in ports.ProvisionInput) (domain.Identity, error) {
	subject := strings.TrimSpace(in.SubjectID)
	email := domain.NormalizeEmail(in.Email)
	if subject == "" || email == "" {
		return domain.Identity{}, fmt.Errorf("provision: %w: subjectId and email are required", domain.ErrValidation)
	}
	role := in.Role
	if role == "" {
		role = domain.DefaultRole
	}
	if !role.Valid() {
		return domain.Identity{}, fmt.Errorf("provision: %w: unknown role %q", domain.ErrValidation, role)
	}

	now := s.now().UTC()
	seed := domain.Identity{
		SubjectID:  subject,
		Email:      email,
		Role:       role,
		Department: strings.TrimSpace(in.Department),
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	id, created, err := s.dir.InsertOrGet(ctx, seed)
	if err != nil {
		return domain.Identity{}, directoryErr("provision", err)
	}
	if !created {
		return domain.Identity{}, fmt.Errorf("provision: %w: subject %s", domain.ErrIdentityConflict, subject)
	}

	s.log.Info().Str("subject_id", subject).Str("role", string(role)).Msg("identity pre-provisioned")
	return id, nil
}

// directoryErr keeps known domain outcomes and classifies anything else
// as the directory being unavailable.
func directoryErr(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrIdentityConflict),
		errors.Is(err, domain.ErrDirectoryUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrDirectoryUnavailable, err)
}
