package domain

import "time"

// LeadStatus is the sales pipeline stage of a lead.
type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadConverted LeadStatus = "converted"
	LeadLost      LeadStatus = "lost"
)

// Lead carries only what access control and the list view need.
type Lead struct {
	ID             string     `json:"id" bson:"_id,omitempty"`
	FirstName      string     `json:"firstName" bson:"first_name"`
	LastName       string     `json:"lastName" bson:"last_name"`
	Email          string     `json:"email" bson:"email"`
	Phone          string     `json:"phone,omitempty" bson:"phone,omitempty"`
	Source         string     `json:"source,omitempty" bson:"source,omitempty"`
	Status         LeadStatus `json:"status" bson:"status"`
	OwnerSubjectID string     `json:"createdBy" bson:"owner"`
	AssignedTo     string     `json:"assignedTo,omitempty" bson:"assigned_to,omitempty"`
	Department     string     `json:"department,omitempty" bson:"department,omitempty"`
	Notes          string     `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" bson:"updated_at"`
}
