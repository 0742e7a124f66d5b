package models

import (
	"time"

	"aqarmatch/server/internal/domain"
)

// MarketingRequest is a property owner's posted solicitation for agent
// representation/marketing services.
type MarketingRequest struct {
	Base `bson:",inline"`

	// Descriptive
	Title                 string                 `bson:"title" json:"title"`
	Summary               string                 `bson:"summary" json:"summary"`
	Requirements          string                 `bson:"requirements,omitempty" json:"requirements,omitempty"`
	PropertyType          string                 `bson:"property_type" json:"property_type"`
	ListingType           string                 `bson:"listing_type,omitempty" json:"listing_type,omitempty"`
	City                  string                 `bson:"city" json:"city"`
	District              string                 `bson:"district,omitempty" json:"district,omitempty"`
	Region                string                 `bson:"region,omitempty" json:"region,omitempty"`
	BudgetMin             *float64               `bson:"budget_min,omitempty" json:"budget_min,omitempty"`
	BudgetMax             *float64               `bson:"budget_max,omitempty" json:"budget_max,omitempty"`
	CommissionExpectation *float64               `bson:"commission_expectation,omitempty" json:"commission_expectation,omitempty"`
	SeriousnessTier       domain.SeriousnessTier `bson:"seriousness_tier" json:"seriousness_tier"`
	PreferredStartDate    *time.Time             `bson:"preferred_start,omitempty" json:"preferred_start,omitempty"`
	PreferredEndDate      *time.Time             `bson:"preferred_end,omitempty" json:"preferred_end,omitempty"`

	// Contact
	ContactName  string `bson:"contact_name" json:"contact_name"`
	ContactPhone string `bson:"contact_phone,omitempty" json:"contact_phone,omitempty"`
	ContactEmail string `bson:"contact_email,omitempty" json:"contact_email,omitempty"`

	// Relations
	OwnerID    string `bson:"owner_id" json:"owner_id"`
	PropertyID string `bson:"property_id,omitempty" json:"property_id,omitempty"`

	// Workflow
	Status            domain.RequestStatus `bson:"status" json:"status"`
	ModerationNotes   string               `bson:"moderation_notes,omitempty" json:"moderation_notes,omitempty"`
	ApprovedAt        *time.Time           `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	ClosedAt          *time.Time           `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
	AwardedProposalID string               `bson:"awarded_proposal_id,omitempty" json:"awarded_proposal_id,omitempty"`

	Timestamps `bson:",inline"`
	Deleted    bool `bson:"deleted" json:"-"` // Soft delete flag

	// Populated on request, never persisted.
	Owner     *User               `bson:"-" json:"owner,omitempty"`
	Proposals []MarketingProposal `bson:"-" json:"proposals,omitempty"`
}
