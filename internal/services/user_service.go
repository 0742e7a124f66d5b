package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"aqarmatch/server/internal/auth"
	"aqarmatch/server/internal/config"
	"aqarmatch/server/internal/db"
	"aqarmatch/server/internal/domain"
	"aqarmatch/server/internal/models"
)

// RegisterInput carries the fields for account creation.
type RegisterInput struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	Roles          []string `json:"roles"`
	OrganizationID string   `json:"organization_id"`
}

// IUserService defines the interface for account operations.
type IUserService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// userService implements IUserService.
type userService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database, cfg *config.Config) IUserService {
	return &userService{db: db, cfg: cfg}
}

func validateRegister(input RegisterInput) *domain.Error {
	fields := map[string]string{}
	if len(strings.TrimSpace(input.Name)) < 2 {
		fields["name"] = "must be at least 2 characters"
	}
	if !strings.Contains(input.Email, "@") {
		fields["email"] = "must be a valid email address"
	}
	if len(input.Password) < 8 {
		fields["password"] = "must be at least 8 characters"
	}
	if len(input.Roles) == 0 {
		fields["roles"] = "at least one role is required"
	}
	for _, r := range input.Roles {
		// Staff roles are granted out of band, never self-assigned.
		if r != models.RoleOwner && r != models.RoleAgent {
			fields["roles"] = "must be OWNER or AGENT"
		}
	}
	if len(fields) > 0 {
		return domain.ValidationError(fields)
	}
	return nil
}

// Register creates a new account. Emails are unique case-insensitively.
func (s *userService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if verr := validateRegister(input); verr != nil {
		return nil, verr
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	count, err := s.db.Collection(usersCollection).CountDocuments(ctx, bson.M{"email": email, "deleted": false})
	if err != nil {
		return nil, fmt.Errorf("error checking for existing account %s: %w", email, err)
	}
	if count > 0 {
		return nil, domain.ConflictError("an account with this email already exists")
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	var user *models.User
	operation := func() error {
		user = &models.User{
			Base:           models.NewBase(),
			Name:           strings.TrimSpace(input.Name),
			Email:          email,
			PasswordHash:   hash,
			Roles:          input.Roles,
			OrganizationID: input.OrganizationID,
			Timestamps:     models.Timestamps{CreatedAt: now, UpdatedAt: now},
		}
		_, insertErr := s.db.Collection(usersCollection).InsertOne(ctx, user)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		if db.IsDuplicateKeyError(err) {
			return nil, domain.ConflictError("an account with this email already exists")
		}
		return nil, fmt.Errorf("failed to insert user %s: %w", email, err)
	}
	return user, nil
}

// ErrBadCredentials is returned by Authenticate for a wrong email or password.
// Kept deliberately indistinct so callers cannot probe which part was wrong.
var ErrBadCredentials = errors.New("invalid email or password")

// Authenticate verifies credentials and returns the account.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).
		FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email)), "deleted": false}).
		Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("error finding user by email: %w", err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrBadCredentials
	}
	if user.Suspended {
		return nil, domain.AuthorizationError("account is suspended")
	}
	return &user, nil
}

// FindUserByID fetches a non-deleted account.
func (s *userService) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).
		FindOne(ctx, bson.M{"_id": id, "deleted": false}).
		Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFoundError("user")
		}
		return nil, fmt.Errorf("error finding user %s: %w", id, err)
	}
	return &user, nil
}
