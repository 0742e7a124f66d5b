package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aqarmatch/server/internal/auth"
	"aqarmatch/server/internal/models"
)

// ContextKeyPrincipal holds the key for the authenticated principal in Gin context.
const ContextKeyPrincipal = "principal"

// Principal is the authenticated caller as seen by handlers. It is derived
// entirely from validated JWT claims; handlers never read raw claims.
type Principal struct {
	ID             string
	Roles          map[string]struct{}
	OrganizationID string
}

// HasRole reports whether the principal carries the named role.
func (p *Principal) HasRole(role string) bool {
	_, ok := p.Roles[role]
	return ok
}

// IsStaff reports whether the principal may act on any record.
func (p *Principal) IsStaff() bool {
	return p.HasRole(models.RoleAdmin) || p.HasRole(models.RoleModerator)
}

// GetPrincipal returns the principal set by AuthMiddleware, or nil on
// unauthenticated routes.
func GetPrincipal(c *gin.Context) *Principal {
	v, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return nil
	}
	p, ok := v.(*Principal)
	if !ok {
		return nil
	}
	return p
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(parts[1], jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("Invalid or expired token: %v", err)})
			return
		}

		principal := &Principal{
			ID:             claims.UserID,
			Roles:          make(map[string]struct{}, len(claims.Roles)),
			OrganizationID: claims.OrganizationID,
		}
		for _, r := range claims.Roles {
			principal.Roles[r] = struct{}{}
		}

		c.Set(ContextKeyPrincipal, principal)
		c.Next()
	}
}

// OptionalAuthMiddleware sets the principal when a valid bearer token is
// present but lets anonymous requests through. Used on public routes whose
// behavior widens for authenticated callers.
func OptionalAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.Next()
			return
		}

		claims, err := auth.ValidateJWT(parts[1], jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("Invalid or expired token: %v", err)})
			return
		}

		principal := &Principal{
			ID:             claims.UserID,
			Roles:          make(map[string]struct{}, len(claims.Roles)),
			OrganizationID: claims.OrganizationID,
		}
		for _, r := range claims.Roles {
			principal.Roles[r] = struct{}{}
		}

		c.Set(ContextKeyPrincipal, principal)
		c.Next()
	}
}

// RequireRole creates a Gin middleware that aborts unless the principal
// carries one of the given roles. Assumes AuthMiddleware runs first.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		for _, role := range roles {
			if p.HasRole(role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient privileges"})
	}
}
