package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"aqarmatch/server/internal/config"
	"aqarmatch/server/internal/domain"
	"aqarmatch/server/internal/models"
	"aqarmatch/server/internal/utils"
)

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	db := utils.SetupTestDB(t, "testdb_user_register", "users")
	svc := NewUserService(db, &config.Config{})
	ctx := context.Background()

	// Staff roles cannot be self-assigned.
	_, err := svc.Register(ctx, RegisterInput{
		Name: "Eve", Email: "eve@example.com", Password: "password123",
		Roles: []string{models.RoleAdmin},
	})
	assertKind(t, err, domain.KindValidation)

	user, err := svc.Register(ctx, RegisterInput{
		Name: "Sara", Email: "Sara@Example.com", Password: "password123",
		Roles: []string{models.RoleAgent},
	})
	require.NoError(t, err)
	assert.Equal(t, "sara@example.com", user.Email)
	assert.NotEqual(t, "password123", user.PasswordHash)

	// Duplicate email, case-insensitively.
	_, err = svc.Register(ctx, RegisterInput{
		Name: "Sara Two", Email: "sara@example.com", Password: "password123",
		Roles: []string{models.RoleOwner},
	})
	assertKind(t, err, domain.KindConflict)

	authed, err := svc.Authenticate(ctx, "sara@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "sara@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrBadCredentials)

	// Suspended accounts cannot log in.
	_, err = db.Collection("users").UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{"suspended": true}})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "sara@example.com", "password123")
	assertKind(t, err, domain.KindAuthorization)
}
