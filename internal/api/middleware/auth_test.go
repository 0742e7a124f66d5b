package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqarmatch/server/internal/auth"
	"aqarmatch/server/internal/models"
)

const testSecret = "test-secret"

func authTestRouter(handler gin.HandlerFunc, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", append(mw, handler)...)
	return r
}

func echoPrincipal(c *gin.Context) {
	p := GetPrincipal(c)
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"principal": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": p.ID, "staff": p.IsStaff()})
}

func TestAuthMiddleware(t *testing.T) {
	r := authTestRouter(echoPrincipal, AuthMiddleware(testSecret))

	// Missing header
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed header
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token carries the principal through.
	token, err := auth.GenerateJWT("user-1", []string{models.RoleAgent}, "org-1", testSecret, time.Hour)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")

	// Expired token
	expired, err := auth.GenerateJWT("user-1", []string{models.RoleAgent}, "", testSecret, -time.Hour)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	r := authTestRouter(echoPrincipal, OptionalAuthMiddleware(testSecret))

	// Anonymous passes through with no principal.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "null")

	// A present-but-invalid token is still rejected.
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.GenerateJWT("user-2", []string{models.RoleOwner}, "", testSecret, time.Hour)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-2")
}

func TestRequireRole(t *testing.T) {
	agentToken, err := auth.GenerateJWT("agent-1", []string{models.RoleAgent}, "", testSecret, time.Hour)
	require.NoError(t, err)
	modToken, err := auth.GenerateJWT("mod-1", []string{models.RoleModerator}, "", testSecret, time.Hour)
	require.NoError(t, err)

	r := authTestRouter(echoPrincipal, AuthMiddleware(testSecret), RequireRole(models.RoleAdmin, models.RoleModerator))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+agentToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+modToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "\"staff\":true")
}
