package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"aqarmatch/server/internal/api/handlers"
	"aqarmatch/server/internal/api/middleware"
	"aqarmatch/server/internal/domain"
	"aqarmatch/server/internal/models"
	"aqarmatch/server/internal/services"
)

func withPrincipal(p *middleware.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			c.Set(middleware.ContextKeyPrincipal, p)
		}
		c.Next()
	}
}

func ownerPrincipal(id string) *middleware.Principal {
	return &middleware.Principal{ID: id, Roles: map[string]struct{}{models.RoleOwner: {}}}
}

func agentPrincipal(id string) *middleware.Principal {
	return &middleware.Principal{ID: id, Roles: map[string]struct{}{models.RoleAgent: {}}}
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	assert.NoError(t, err)
	return bytes.NewReader(data)
}

func TestRequestHandler_CreateRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := new(MockRequestService)
	h := handlers.NewRequestHandler(mockSvc)

	r := gin.New()
	r.POST("/v1/marketing-requests", withPrincipal(ownerPrincipal("owner-1")), h.CreateRequest)

	created := &models.MarketingRequest{Base: models.NewBase(), Title: "Villa campaign", Status: domain.RequestPendingReview}
	mockSvc.On("CreateRequest", mock.Anything, "owner-1", mock.Anything).Return(created, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/marketing-requests",
		jsonBody(t, map[string]interface{}{"title": "Villa campaign"}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "PENDING_REVIEW")
	mockSvc.AssertExpectations(t)
}

func TestRequestHandler_CreateRequestValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := new(MockRequestService)
	h := handlers.NewRequestHandler(mockSvc)

	r := gin.New()
	r.POST("/v1/marketing-requests", withPrincipal(ownerPrincipal("owner-1")), h.CreateRequest)

	mockSvc.On("CreateRequest", mock.Anything, "owner-1", mock.Anything).
		Return(nil, domain.ValidationError(map[string]string{"title": "must be at least 3 characters"})).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/marketing-requests", jsonBody(t, map[string]interface{}{"title": "ab"}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "fields")
	assert.Contains(t, w.Body.String(), "title")
}

func TestRequestHandler_ListAnonymousForcesOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := new(MockRequestService)
	h := handlers.NewRequestHandler(mockSvc)

	r := gin.New()
	r.GET("/v1/marketing-requests", h.ListRequests)

	mockSvc.On("ListRequests", mock.Anything, mock.MatchedBy(func(f services.RequestFilter) bool {
		return f.Status == string(domain.RequestOpen) && f.OwnerID == "" && !f.IncludeProposals
	})).Return([]models.MarketingRequest{}, nil).Once()

	w := httptest.NewRecorder()
	// Anonymous callers cannot ask for non-open statuses or includes.
	req := httptest.NewRequest("GET", "/v1/marketing-requests?status=PENDING_REVIEW&include=proposals", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestRequestHandler_ListScopeMineRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := new(MockRequestService)
	h := handlers.NewRequestHandler(mockSvc)

	r := gin.New()
	r.GET("/v1/marketing-requests", h.ListRequests)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/marketing-requests?scope=mine", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Authenticated: scope resolves to the caller's own requests.
	r2 := gin.New()
	r2.GET("/v1/marketing-requests", withPrincipal(ownerPrincipal("owner-7")), h.ListRequests)
	mockSvc.On("ListRequests", mock.Anything, mock.MatchedBy(func(f services.RequestFilter) bool {
		return f.OwnerID == "owner-7"
	})).Return([]models.MarketingRequest{}, nil).Once()

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/marketing-requests?scope=mine", nil)
	r2.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestRequestHandler_GetRequestHidesUnapproved(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := new(MockRequestService)
	h := handlers.NewRequestHandler(mockSvc)

	pending := &models.MarketingRequest{Base: models.Base{ID: "req-1"}, OwnerID: "owner-1", Status: domain.RequestPendingReview}

	// Anonymous caller gets a 404 for a request still in moderation.
	r := gin.New()
	r.GET("/v1/marketing-requests/:id", h.GetRequest)
	mockSvc.On("FindRequestByID", mock.Anything, "req-1", services.RequestInclude{}).Return(pending, nil).Once()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/marketing-requests/req-1", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The owner sees it.
	r2 := gin.New()
	r2.GET("/v1/marketing-requests/:id", withPrincipal(ownerPrincipal("owner-1")), h.GetRequest)
	mockSvc.On("FindRequestByID", mock.Anything, "req-1", services.RequestInclude{}).Return(pending, nil).Once()

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/marketing-requests/req-1", nil)
	r2.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestRequestHandler_UpdateStatusErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := new(MockRequestService)
	h := handlers.NewRequestHandler(mockSvc)

	r := gin.New()
	r.PATCH("/v1/marketing-requests/:id/status", withPrincipal(ownerPrincipal("owner-1")), h.UpdateStatus)

	cases := []struct {
		err    error
		status int
	}{
		{domain.AuthorizationError("not yours"), http.StatusForbidden},
		{domain.NotFoundError("marketing request"), http.StatusNotFound},
		{domain.ConflictError("changed concurrently"), http.StatusConflict},
		{domain.StateError("cannot transition"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		mockSvc.On("UpdateStatus", mock.Anything, "req-1", "owner-1", false, domain.RequestClosed, "").
			Return(nil, tc.err).Once()

		w := httptest.NewRecorder()
		req := httptest.NewRequest("PATCH", "/v1/marketing-requests/req-1/status",
			jsonBody(t, map[string]string{"status": "CLOSED"}))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code)
	}
	mockSvc.AssertExpectations(t)
}
