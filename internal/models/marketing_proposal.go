package models

import (
	"time"

	"aqarmatch/server/internal/domain"
)

// MarketingProposal is an agent's bid in response to a marketing request.
// Many proposals may exist per request, but at most one PENDING proposal
// per (request, agent) pair.
type MarketingProposal struct {
	Base `bson:",inline"`

	RequestID string `bson:"request_id" json:"request_id"`
	AgentID   string `bson:"agent_id" json:"agent_id"`

	Message           string   `bson:"message,omitempty" json:"message,omitempty"`
	CommissionRate    *float64 `bson:"commission_rate,omitempty" json:"commission_rate,omitempty"`
	MarketingBudget   *float64 `bson:"marketing_budget,omitempty" json:"marketing_budget,omitempty"`
	EstimatedTimeline string   `bson:"estimated_timeline,omitempty" json:"estimated_timeline,omitempty"`
	Attachments       []string `bson:"attachments" json:"attachments"` // S3 keys

	Status    domain.ProposalStatus `bson:"status" json:"status"`
	DecidedAt *time.Time            `bson:"decided_at,omitempty" json:"decided_at,omitempty"`

	Timestamps `bson:",inline"`
	Deleted    bool `bson:"deleted" json:"-"` // Soft delete flag
}
