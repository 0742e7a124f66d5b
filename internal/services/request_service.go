package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aqarmatch/server/internal/config"
	"aqarmatch/server/internal/db"
	"aqarmatch/server/internal/domain"
	"aqarmatch/server/internal/models"
)

// CreateRequestInput carries the owner-supplied fields for a new marketing request.
type CreateRequestInput struct {
	Title                 string                 `json:"title"`
	Summary               string                 `json:"summary"`
	Requirements          string                 `json:"requirements"`
	PropertyType          string                 `json:"property_type"`
	ListingType           string                 `json:"listing_type"`
	City                  string                 `json:"city"`
	District              string                 `json:"district"`
	Region                string                 `json:"region"`
	BudgetMin             *float64               `json:"budget_min"`
	BudgetMax             *float64               `json:"budget_max"`
	CommissionExpectation *float64               `json:"commission_expectation"`
	SeriousnessTier       domain.SeriousnessTier `json:"seriousness_tier"`
	PreferredStartDate    *time.Time             `json:"preferred_start"`
	PreferredEndDate      *time.Time             `json:"preferred_end"`
	ContactName           string                 `json:"contact_name"`
	ContactPhone          string                 `json:"contact_phone"`
	ContactEmail          string                 `json:"contact_email"`
	PropertyID            string                 `json:"property_id"`
}

// RequestFilter narrows ListRequests results.
type RequestFilter struct {
	Status           string
	City             string
	SeriousnessTier  string
	OwnerID          string // "mine=owner" scope
	AgentID          string // requests the agent has proposed on
	Search           string
	IncludeOwner     bool
	IncludeProposals bool
	Limit            int
}

// RequestInclude controls relation population on a single fetch.
type RequestInclude struct {
	Owner     bool
	Proposals bool
}

// IRequestService defines the interface for marketing-request operations.
type IRequestService interface {
	CreateRequest(ctx context.Context, ownerID string, input CreateRequestInput) (*models.MarketingRequest, error)
	FindRequestByID(ctx context.Context, id string, include RequestInclude) (*models.MarketingRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.MarketingRequest, error)
	UpdateStatus(ctx context.Context, id, actorID string, isStaff bool, newStatus domain.RequestStatus, notes string) (*models.MarketingRequest, error)
}

const (
	requestsCollection  = "marketing_requests"
	proposalsCollection = "marketing_proposals"
	usersCollection     = "users"

	defaultListLimit = 50
	maxListLimit     = 200
)

// requestService implements IRequestService.
type requestService struct {
	db  *mongo.Database
	cfg *config.Config
	rdb *redis.Client // optional list cache; nil disables caching
}

// NewRequestService creates a new RequestService.
func NewRequestService(db *mongo.Database, cfg *config.Config, rdb *redis.Client) IRequestService {
	return &requestService{db: db, cfg: cfg, rdb: rdb}
}

func validateCreateRequest(input CreateRequestInput) *domain.Error {
	fields := map[string]string{}
	if len(strings.TrimSpace(input.Title)) < 3 {
		fields["title"] = "must be at least 3 characters"
	}
	if len(strings.TrimSpace(input.Summary)) < 10 {
		fields["summary"] = "must be at least 10 characters"
	}
	if input.Requirements != "" && len(strings.TrimSpace(input.Requirements)) < 10 {
		fields["requirements"] = "must be at least 10 characters when provided"
	}
	if strings.TrimSpace(input.PropertyType) == "" {
		fields["property_type"] = "is required"
	}
	if len(strings.TrimSpace(input.City)) < 2 {
		fields["city"] = "must be at least 2 characters"
	}
	if len(strings.TrimSpace(input.ContactName)) < 3 {
		fields["contact_name"] = "must be at least 3 characters"
	}
	if input.ContactPhone != "" && len(strings.TrimSpace(input.ContactPhone)) < 6 {
		fields["contact_phone"] = "must be at least 6 characters when provided"
	}
	if input.ContactEmail != "" && !strings.Contains(input.ContactEmail, "@") {
		fields["contact_email"] = "must be a valid email address"
	}
	if input.BudgetMin != nil && *input.BudgetMin < 0 {
		fields["budget_min"] = "must be non-negative"
	}
	if input.BudgetMax != nil && *input.BudgetMax < 0 {
		fields["budget_max"] = "must be non-negative"
	}
	if input.BudgetMin != nil && input.BudgetMax != nil && *input.BudgetMin > *input.BudgetMax {
		fields["budget"] = "minimum budget cannot exceed maximum budget"
	}
	if input.CommissionExpectation != nil && *input.CommissionExpectation < 0 {
		fields["commission_expectation"] = "must be non-negative"
	}
	if input.SeriousnessTier != "" && !domain.ValidSeriousnessTier(input.SeriousnessTier) {
		fields["seriousness_tier"] = "must be STANDARD, SERIOUS or ENTERPRISE"
	}
	if len(fields) > 0 {
		return domain.ValidationError(fields)
	}
	return nil
}

// CreateRequest validates the payload and persists a new request in
// PENDING_REVIEW awaiting moderation.
func (s *requestService) CreateRequest(ctx context.Context, ownerID string, input CreateRequestInput) (*models.MarketingRequest, error) {
	if verr := validateCreateRequest(input); verr != nil {
		return nil, verr
	}

	tier := input.SeriousnessTier
	if tier == "" {
		tier = domain.TierStandard
	}
	now := time.Now().UTC()

	var request *models.MarketingRequest
	operation := func() error {
		request = &models.MarketingRequest{
			Base:                  models.NewBase(),
			Title:                 strings.TrimSpace(input.Title),
			Summary:               strings.TrimSpace(input.Summary),
			Requirements:          strings.TrimSpace(input.Requirements),
			PropertyType:          strings.TrimSpace(input.PropertyType),
			ListingType:           strings.TrimSpace(input.ListingType),
			City:                  strings.TrimSpace(input.City),
			District:              strings.TrimSpace(input.District),
			Region:                strings.TrimSpace(input.Region),
			BudgetMin:             input.BudgetMin,
			BudgetMax:             input.BudgetMax,
			CommissionExpectation: input.CommissionExpectation,
			SeriousnessTier:       tier,
			PreferredStartDate:    input.PreferredStartDate,
			PreferredEndDate:      input.PreferredEndDate,
			ContactName:           strings.TrimSpace(input.ContactName),
			ContactPhone:          strings.TrimSpace(input.ContactPhone),
			ContactEmail:          strings.TrimSpace(input.ContactEmail),
			OwnerID:               ownerID,
			PropertyID:            strings.TrimSpace(input.PropertyID),
			Status:                domain.RequestPendingReview,
			Timestamps:            models.Timestamps{CreatedAt: now, UpdatedAt: now},
		}
		_, insertErr := s.db.Collection(requestsCollection).InsertOne(ctx, request)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert marketing request for owner %s: %w", ownerID, err)
	}
	return request, nil
}

// FindRequestByID fetches a non-deleted request, optionally populating the
// owner and the proposal list.
func (s *requestService) FindRequestByID(ctx context.Context, id string, include RequestInclude) (*models.MarketingRequest, error) {
	var request models.MarketingRequest
	err := s.db.Collection(requestsCollection).
		FindOne(ctx, bson.M{"_id": id, "deleted": false}).
		Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundError("marketing request")
		}
		return nil, fmt.Errorf("error finding marketing request %s: %w", id, err)
	}

	if include.Owner {
		var owner models.User
		err := s.db.Collection(usersCollection).
			FindOne(ctx, bson.M{"_id": request.OwnerID, "deleted": false}).
			Decode(&owner)
		if err == nil {
			request.Owner = &owner
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("error fetching owner for request %s: %w", id, err)
		}
	}

	if include.Proposals {
		proposals, err := s.loadProposals(ctx, request.ID)
		if err != nil {
			return nil, err
		}
		request.Proposals = proposals
	}

	return &request, nil
}

func (s *requestService) loadProposals(ctx context.Context, requestID string) ([]models.MarketingProposal, error) {
	cursor, err := s.db.Collection(proposalsCollection).Find(ctx,
		bson.M{"request_id": requestID, "deleted": false},
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

func (f RequestFilter) cacheKey() string {
	// Only plain public listings are cacheable; scoped or populated queries
	// always hit the database.
	if f.OwnerID != "" || f.AgentID != "" || f.Search != "" || f.IncludeOwner || f.IncludeProposals {
		return ""
	}
	return fmt.Sprintf("mr:list:%s:%s:%s:%d", f.Status, f.City, f.SeriousnessTier, f.Limit)
}

// ListRequests returns requests matching the filter, newest first. Unscoped
// listings are served from a short-TTL Redis cache when available.
func (s *requestService) ListRequests(ctx context.Context, filter RequestFilter) ([]models.MarketingRequest, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	filter.Limit = limit

	cacheKey := filter.cacheKey()
	if s.rdb != nil && cacheKey != "" {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var results []models.MarketingRequest
			if err := json.Unmarshal([]byte(cached), &results); err == nil {
				return results, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: request list cache read failed: %v", err)
		}
	}

	query := bson.M{"deleted": false}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.City != "" {
		query["city"] = filter.City
	}
	if filter.SeriousnessTier != "" {
		query["seriousness_tier"] = filter.SeriousnessTier
	}
	if filter.OwnerID != "" {
		query["owner_id"] = filter.OwnerID
	}
	if filter.Search != "" {
		re := primitive.Regex{Pattern: regexEscape(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"summary": re},
			bson.M{"city": re},
		}
	}
	if filter.AgentID != "" {
		requestIDs, err := s.db.Collection(proposalsCollection).Distinct(ctx, "request_id",
			bson.M{"agent_id": filter.AgentID, "deleted": false})
		if err != nil {
			return nil, fmt.Errorf("error resolving agent scope for %s: %w", filter.AgentID, err)
		}
		query["_id"] = bson.M{"$in": requestIDs}
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.db.Collection(requestsCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to execute marketing request query: %w", err)
	}
	defer cursor.Close(ctx)

	results := []models.MarketingRequest{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode marketing request results: %w", err)
	}

	if filter.IncludeOwner || filter.IncludeProposals {
		for i := range results {
			if filter.IncludeOwner {
				var owner models.User
				if err := s.db.Collection(usersCollection).
					FindOne(ctx, bson.M{"_id": results[i].OwnerID, "deleted": false}).
					Decode(&owner); err == nil {
					results[i].Owner = &owner
				}
			}
			if filter.IncludeProposals {
				proposals, err := s.loadProposals(ctx, results[i].ID)
				if err != nil {
					return nil, err
				}
				results[i].Proposals = proposals
			}
		}
	}

	if s.rdb != nil && cacheKey != "" {
		if payload, err := json.Marshal(results); err == nil {
			if err := s.rdb.Set(ctx, cacheKey, payload, s.cfg.GetCacheTTL).Err(); err != nil {
				log.Printf("WARN: request list cache write failed: %v", err)
			}
		}
	}

	return results, nil
}

// UpdateStatus applies a moderation/lifecycle transition. Only the owner or
// staff may transition a request, and the transition must be legal per the
// status table. The write is conditional on the status read during the guard
// phase so a concurrent transition surfaces as a conflict.
func (s *requestService) UpdateStatus(ctx context.Context, id, actorID string, isStaff bool, newStatus domain.RequestStatus, notes string) (*models.MarketingRequest, error) {
	if !domain.ValidRequestStatus(newStatus) {
		return nil, domain.ValidationError(map[string]string{"status": "unknown status"})
	}
	// AWARDED is only ever entered by accepting a proposal, which records the
	// winning proposal id in the same write.
	if newStatus == domain.RequestAwarded {
		return nil, domain.StateError("requests are awarded by accepting a proposal")
	}

	request, err := s.FindRequestByID(ctx, id, RequestInclude{})
	if err != nil {
		return nil, err
	}
	if request.OwnerID != actorID && !isStaff {
		return nil, domain.AuthorizationError("not authorized to update request status")
	}
	if !domain.CanTransitionRequest(request.Status, newStatus) {
		return nil, domain.StateError(fmt.Sprintf("cannot transition request from %s to %s", request.Status, newStatus))
	}

	now := time.Now().UTC()
	set := bson.M{
		"status":     newStatus,
		"updated_at": now,
	}
	if notes != "" {
		set["moderation_notes"] = notes
	}
	if newStatus == domain.RequestOpen && request.ApprovedAt == nil {
		set["approved_at"] = now
	}
	if newStatus == domain.RequestClosed {
		set["closed_at"] = now
	}

	update := bson.M{"$set": set}
	// Leaving AWARDED releases the award so the request never references a
	// proposal it no longer holds.
	if request.Status == domain.RequestAwarded {
		update["$unset"] = bson.M{"awarded_proposal_id": ""}
	}

	result, err := s.db.Collection(requestsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "status": request.Status, "deleted": false},
		update)
	if err != nil {
		return nil, fmt.Errorf("db error updating status of request %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return nil, domain.ConflictError("request status changed concurrently, retry")
	}

	return s.FindRequestByID(ctx, id, RequestInclude{})
}

// regexEscape quotes regex metacharacters in user-provided search strings.
func regexEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
