package handler

import (
	"time"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
)

// errorResponse documents the envelope rendered by the API error handler.
type errorResponse struct {
	Error         string        `json:"error"`
	Message       string        `json:"message,omitempty"`
	RequiredRoles []domain.Role `json:"requiredRoles,omitempty"`
}

// --- Users ---

type provisionUserRequest struct {
	SubjectID  string `json:"subjectId"  validate:"required,max=128"`
	Email      string `json:"email"      validate:"required,email"`
	Role       string `json:"role"       validate:"omitempty,role"`
	Department string `json:"department" validate:"max=64"`
	FirstName  string `json:"firstName"  validate:"max=100"`
	LastName   string `json:"lastName"   validate:"max=100"`
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

type userResponse struct {
	User domain.Identity `json:"user"`
}

// --- Leads ---

type createLeadRequest struct {
	FirstName  string `json:"firstName"  validate:"required,max=100"`
	LastName   string `json:"lastName"   validate:"required,max=100"`
	Email      string `json:"email"      validate:"required,email"`
	Phone      string `json:"phone"      validate:"max=32"`
	Source     string `json:"source"     validate:"max=64"`
	AssignedTo string `json:"assignedTo" validate:"max=128"`
	Department string `json:"department" validate:"max=64"`
	Notes      string `json:"notes"      validate:"max=2000"`
}

type leadResponse struct {
	ID         string            `json:"id"`
	FirstName  string            `json:"firstName"`
	LastName   string            `json:"lastName"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone,omitempty"`
	Source     string            `json:"source,omitempty"`
	Status     domain.LeadStatus `json:"status"`
	CreatedBy  string            `json:"createdBy"`
	AssignedTo string            `json:"assignedTo,omitempty"`
	Department string            `json:"department,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type listLeadsResponse struct {
	Leads      []leadResponse `json:"leads"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
}

func toCreateLeadInput(req createLeadRequest) ports.CreateLeadInput {
	return ports.CreateLeadInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Source:     req.Source,
		AssignedTo: req.AssignedTo,
		Department: req.Department,
		Notes:      req.Notes,
	}
}

func toLeadResponse(l domain.Lead) leadResponse {
	return leadResponse{
		ID:         l.ID,
		FirstName:  l.FirstName,
		LastName:   l.LastName,
		Email:      l.Email,
		Phone:      l.Phone,
		Source:     l.Source,
		Status:     l.Status,
		CreatedBy:  l.OwnerSubjectID,
		AssignedTo: l.AssignedTo,
		Department: l.Department,
		Notes:      l.Notes,
		CreatedAt:  l.CreatedAt.UTC(),
		UpdatedAt:  l.UpdatedAt.UTC(),
	}
}

func toListLeadsResponse(r *ports.ListLeadsResult) listLeadsResponse {
	leads := make([]leadResponse, 0, len(r.Items))
	for _, l := range r.Items {
		leads = append(leads, toLeadResponse(l))
	}
	return listLeadsResponse{
		Leads:      leads,
		Total:      r.Total,
		Page:       r.Page,
		Limit:      r.Limit,
		TotalPages: r.TotalPages,
	}
}
