package ports

import (
	"context"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

// LeadRepository stores leads. List must apply scope in the query itself.
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	List(ctx context.Context, scope domain.Scope, page, limit int) ([]domain.Lead, int64, error)
}

// CreateLeadInput is the DTO passed from the transport layer to LeadService.
type CreateLeadInput struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Source     string
	AssignedTo string
	Department string
	Notes      string
}

// ListLeadsResult is a page of leads visible to the caller.
type ListLeadsResult struct {
	Items      []domain.Lead
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// LeadService holds the lead use-cases that depend on access scope.
type LeadService interface {
	Create(ctx context.Context, actor domain.Identity, in CreateLeadInput) (*domain.Lead, error)
	List(ctx context.Context, actor domain.Identity, page, limit int) (*ListLeadsResult, error)
}
