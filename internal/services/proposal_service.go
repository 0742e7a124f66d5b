package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aqarmatch/server/internal/config"
	"aqarmatch/server/internal/db"
	"aqarmatch/server/internal/domain"
	"aqarmatch/server/internal/models"
)

// CreateProposalInput carries the agent-supplied fields for a new proposal.
type CreateProposalInput struct {
	Message           string   `json:"message"`
	CommissionRate    *float64 `json:"commission_rate"`
	MarketingBudget   *float64 `json:"marketing_budget"`
	EstimatedTimeline string   `json:"estimated_timeline"`
}

// IProposalService defines the interface for proposal operations.
type IProposalService interface {
	CreateProposal(ctx context.Context, requestID, agentID string, input CreateProposalInput) (*models.MarketingProposal, error)
	FindProposalByID(ctx context.Context, requestID, proposalID string) (*models.MarketingProposal, error)
	ListProposalsByRequest(ctx context.Context, requestID, actorID string, isStaff bool) ([]models.MarketingProposal, error)
	DecideProposal(ctx context.Context, requestID, proposalID, actorID string, isStaff bool, newStatus domain.ProposalStatus) (*models.MarketingProposal, error)
	AddAttachmentKey(ctx context.Context, proposalID, key string) error
	ExpireStaleProposals(ctx context.Context, olderThan time.Time) (int64, error)
}

// proposalService implements IProposalService.
type proposalService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewProposalService creates a new ProposalService.
func NewProposalService(db *mongo.Database, cfg *config.Config) IProposalService {
	return &proposalService{db: db, cfg: cfg}
}

func validateCreateProposal(input CreateProposalInput) *domain.Error {
	fields := map[string]string{}
	if input.CommissionRate != nil && (*input.CommissionRate < 0 || *input.CommissionRate > 100) {
		fields["commission_rate"] = "must be between 0 and 100"
	}
	if input.MarketingBudget != nil && *input.MarketingBudget < 0 {
		fields["marketing_budget"] = "must be non-negative"
	}
	if len(fields) > 0 {
		return domain.ValidationError(fields)
	}
	return nil
}

// CreateProposal submits a bid against a request. The request must still be
// accepting proposals, and the agent may hold at most one PENDING proposal
// per request.
func (s *proposalService) CreateProposal(ctx context.Context, requestID, agentID string, input CreateProposalInput) (*models.MarketingProposal, error) {
	if verr := validateCreateProposal(input); verr != nil {
		return nil, verr
	}

	var request models.MarketingRequest
	err := s.db.Collection(requestsCollection).
		FindOne(ctx, bson.M{"_id": requestID, "deleted": false}).
		Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundError("marketing request")
		}
		return nil, fmt.Errorf("error finding marketing request %s: %w", requestID, err)
	}

	if request.Status != domain.RequestOpen && request.Status != domain.RequestPendingReview {
		return nil, domain.StateError(fmt.Sprintf("request is %s and not accepting proposals", request.Status))
	}
	if request.OwnerID == agentID {
		return nil, domain.AuthorizationError("cannot propose on your own request")
	}

	count, err := s.db.Collection(proposalsCollection).CountDocuments(ctx, bson.M{
		"request_id": requestID,
		"agent_id":   agentID,
		"status":     domain.ProposalPending,
		"deleted":    false,
	})
	if err != nil {
		return nil, fmt.Errorf("error checking existing proposals for agent %s: %w", agentID, err)
	}
	if count > 0 {
		return nil, domain.ConflictError("a pending proposal for this request already exists")
	}

	now := time.Now().UTC()
	var proposal *models.MarketingProposal
	operation := func() error {
		proposal = &models.MarketingProposal{
			Base:              models.NewBase(),
			RequestID:         requestID,
			AgentID:           agentID,
			Message:           input.Message,
			CommissionRate:    input.CommissionRate,
			MarketingBudget:   input.MarketingBudget,
			EstimatedTimeline: input.EstimatedTimeline,
			Attachments:       []string{},
			Status:            domain.ProposalPending,
			Timestamps:        models.Timestamps{CreatedAt: now, UpdatedAt: now},
		}
		_, insertErr := s.db.Collection(proposalsCollection).InsertOne(ctx, proposal)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert proposal for request %s: %w", requestID, err)
	}
	return proposal, nil
}

// FindProposalByID fetches a proposal scoped to its request.
func (s *proposalService) FindProposalByID(ctx context.Context, requestID, proposalID string) (*models.MarketingProposal, error) {
	var proposal models.MarketingProposal
	err := s.db.Collection(proposalsCollection).
		FindOne(ctx, bson.M{"_id": proposalID, "request_id": requestID, "deleted": false}).
		Decode(&proposal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundError("proposal")
		}
		return nil, fmt.Errorf("error finding proposal %s: %w", proposalID, err)
	}
	return &proposal, nil
}

// ListProposalsByRequest returns the proposals on a request, newest first.
// The request owner and staff see all proposals; an agent sees only their own.
func (s *proposalService) ListProposalsByRequest(ctx context.Context, requestID, actorID string, isStaff bool) ([]models.MarketingProposal, error) {
	var request models.MarketingRequest
	err := s.db.Collection(requestsCollection).
		FindOne(ctx, bson.M{"_id": requestID, "deleted": false}).
		Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundError("marketing request")
		}
		return nil, fmt.Errorf("error finding marketing request %s: %w", requestID, err)
	}

	query := bson.M{"request_id": requestID, "deleted": false}
	if request.OwnerID != actorID && !isStaff {
		query["agent_id"] = actorID
	}

	cursor, err := s.db.Collection(proposalsCollection).Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("error listing proposals for request %s: %w", requestID, err)
	}
	defer cursor.Close(ctx)

	proposals := []models.MarketingProposal{}
	if err := cursor.All(ctx, &proposals); err != nil {
		return nil, fmt.Errorf("error decoding proposals for request %s: %w", requestID, err)
	}
	return proposals, nil
}

// decisionAllowed enforces who may move a proposal into each status.
func decisionAllowed(newStatus domain.ProposalStatus, request *models.MarketingRequest, proposal *models.MarketingProposal, actorID string, isStaff bool) bool {
	switch newStatus {
	case domain.ProposalAccepted, domain.ProposalDeclined:
		return actorID == request.OwnerID || isStaff
	case domain.ProposalWithdrawn:
		return actorID == proposal.AgentID || isStaff
	case domain.ProposalExpired:
		return isStaff
	default:
		return false
	}
}

// DecideProposal moves a proposal to a decided status and keeps the parent
// request consistent with the award:
//
//   - ACCEPTED marks the request AWARDED and records the winning proposal.
//   - WITHDRAWN/DECLINED of the awarded proposal reopens the request.
//
// Both the proposal and request writes are conditional on the status values
// read during the guard phase, so a concurrent decision loses cleanly with a
// conflict instead of corrupting the award.
func (s *proposalService) DecideProposal(ctx context.Context, requestID, proposalID, actorID string, isStaff bool, newStatus domain.ProposalStatus) (*models.MarketingProposal, error) {
	if !domain.ValidProposalStatus(newStatus) || newStatus == domain.ProposalPending {
		return nil, domain.ValidationError(map[string]string{"status": "unknown decision"})
	}

	var request models.MarketingRequest
	err := s.db.Collection(requestsCollection).
		FindOne(ctx, bson.M{"_id": requestID, "deleted": false}).
		Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundError("marketing request")
		}
		return nil, fmt.Errorf("error finding marketing request %s: %w", requestID, err)
	}

	proposal, err := s.FindProposalByID(ctx, requestID, proposalID)
	if err != nil {
		return nil, err
	}

	if !decisionAllowed(newStatus, &request, proposal, actorID, isStaff) {
		return nil, domain.AuthorizationError("not authorized to decide this proposal")
	}
	if !domain.CanTransitionProposal(proposal.Status, newStatus) {
		return nil, domain.StateError(fmt.Sprintf("cannot transition proposal from %s to %s", proposal.Status, newStatus))
	}
	if newStatus == domain.ProposalAccepted && !domain.CanTransitionRequest(request.Status, domain.RequestAwarded) {
		return nil, domain.StateError(fmt.Sprintf("request is %s and cannot be awarded", request.Status))
	}

	now := time.Now().UTC()
	priorStatus := proposal.Status

	result, err := s.db.Collection(proposalsCollection).UpdateOne(ctx,
		bson.M{"_id": proposalID, "status": priorStatus, "deleted": false},
		bson.M{"$set": bson.M{"status": newStatus, "decided_at": now, "updated_at": now}})
	if err != nil {
		return nil, fmt.Errorf("db error deciding proposal %s: %w", proposalID, err)
	}
	if result.MatchedCount == 0 {
		return nil, domain.ConflictError("proposal was decided concurrently, retry")
	}

	switch newStatus {
	case domain.ProposalAccepted:
		// Award the request, conditional on the status we guarded against.
		res, err := s.db.Collection(requestsCollection).UpdateOne(ctx,
			bson.M{"_id": requestID, "status": request.Status, "deleted": false},
			bson.M{
				"$set":   bson.M{"status": domain.RequestAwarded, "awarded_proposal_id": proposalID, "updated_at": now},
				"$unset": bson.M{"closed_at": ""},
			})
		if err == nil && res.MatchedCount == 0 {
			err = domain.ConflictError("request was awarded concurrently")
		}
		if err != nil {
			s.rollbackProposal(ctx, proposalID, newStatus, priorStatus)
			if _, ok := domain.AsError(err); ok {
				return nil, err
			}
			return nil, fmt.Errorf("db error awarding request %s: %w", requestID, err)
		}

	case domain.ProposalWithdrawn, domain.ProposalDeclined:
		// Losing the award reopens the request. Filtering on the awarded
		// proposal id makes this a no-op for non-awarded proposals.
		_, err := s.db.Collection(requestsCollection).UpdateOne(ctx,
			bson.M{"_id": requestID, "awarded_proposal_id": proposalID, "status": domain.RequestAwarded, "deleted": false},
			bson.M{
				"$set":   bson.M{"status": domain.RequestOpen, "updated_at": now},
				"$unset": bson.M{"awarded_proposal_id": ""},
			})
		if err != nil {
			return nil, fmt.Errorf("db error reopening request %s: %w", requestID, err)
		}
	}

	return s.FindProposalByID(ctx, requestID, proposalID)
}

func (s *proposalService) rollbackProposal(ctx context.Context, proposalID string, from, to domain.ProposalStatus) {
	_, err := s.db.Collection(proposalsCollection).UpdateOne(ctx,
		bson.M{"_id": proposalID, "status": from},
		bson.M{
			"$set":   bson.M{"status": to, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"decided_at": ""},
		})
	if err != nil {
		log.Printf("ERROR: failed to roll back proposal %s to %s: %v", proposalID, to, err)
	}
}

// AddAttachmentKey records a processed attachment key on a proposal.
func (s *proposalService) AddAttachmentKey(ctx context.Context, proposalID, key string) error {
	result, err := s.db.Collection(proposalsCollection).UpdateOne(ctx,
		bson.M{"_id": proposalID, "deleted": false},
		bson.M{
			"$addToSet": bson.M{"attachments": key},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return fmt.Errorf("db error attaching %s to proposal %s: %w", key, proposalID, err)
	}
	if result.MatchedCount == 0 {
		return domain.NotFoundError("proposal")
	}
	return nil
}

// ExpireStaleProposals moves PENDING proposals older than the cutoff to
// EXPIRED. Pending proposals are never awarded, so no request cleanup is
// needed. Returns the number of proposals expired.
func (s *proposalService) ExpireStaleProposals(ctx context.Context, olderThan time.Time) (int64, error) {
	now := time.Now().UTC()
	result, err := s.db.Collection(proposalsCollection).UpdateMany(ctx,
		bson.M{
			"status":     domain.ProposalPending,
			"created_at": bson.M{"$lt": olderThan},
			"deleted":    false,
		},
		bson.M{"$set": bson.M{"status": domain.ProposalExpired, "decided_at": now, "updated_at": now}})
	if err != nil {
		return 0, fmt.Errorf("db error expiring stale proposals: %w", err)
	}
	return result.ModifiedCount, nil
}
