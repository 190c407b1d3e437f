package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type LeadService struct {
	repo   ports.LeadRepository
	logger zerolog.Logger
}

func NewLeadService(repo ports.LeadRepository, logger zerolog.Logger) *LeadService {
	return &LeadService{repo: repo, logger: logger.With().Str("component", "leads").Logger()}
}

// Create stores a new lead owned by actor. The department defaults to the
// actor's own so that the lead shows up in their manager's scope.
func (s *LeadService) Create(ctx context.Context, actor domain.Identity, in ports.CreateLeadInput) (*domain.Lead, error) {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" || strings.TrimSpace(in.Email) == "" {
		return nil, fmt.Errorf("create lead: %w: firstName, lastName and email are required", domain.ErrValidation)
	}

	department := strings.TrimSpace(in.Department)
	if department == "" {
		department = actor.Department
	}
	// A manager may only file leads into the department they can see, and
	// a manager without a department sees none.
	if actor.Role == domain.RoleManager && (department == "" || department != actor.Department) {
		return nil, fmt.Errorf("create lead: %w: department %q outside manager scope", domain.ErrForbidden, department)
	}

	now := time.Now().UTC()
	lead := &domain.Lead{
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Email:          domain.NormalizeEmail(in.Email),
		Phone:          in.Phone,
		Source:         in.Source,
		Status:         domain.LeadNew,
		OwnerSubjectID: actor.SubjectID,
		AssignedTo:     in.AssignedTo,
		Department:     department,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, lead); err != nil {
		s.logger.Error().Err(err).Msg("failed to create lead")
		return nil, fmt.Errorf("create lead: %w", err)
	}

	s.logger.Info().Str("lead_id", lead.ID).Str("owner", actor.SubjectID).Msg("lead created")
	return lead, nil
}

// List returns the page of leads visible to actor under RoleScopePolicy.
func (s *LeadService) List(ctx context.Context, actor domain.Identity, page, limit int) (*ports.ListLeadsResult, error) {
	scope, err := domain.ScopeFor(actor)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	items, total, err := s.repo.List(ctx, scope, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &ports.ListLeadsResult{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}
