package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"aqarmatch/server/internal/api/middleware"
	"aqarmatch/server/internal/domain"
	"aqarmatch/server/internal/services"
)

// RequestHandler handles marketing-request endpoints.
type RequestHandler struct {
	requestService services.IRequestService
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(requestService services.IRequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

// CreateRequest handles POST /v1/marketing-requests
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	var input services.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	request, err := h.requestService.CreateRequest(c.Request.Context(), principal.ID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// ListRequests handles GET /v1/marketing-requests
//
// Anonymous callers see OPEN requests only. Authenticated callers may scope
// to their own requests (scope=mine) or to requests they have proposed on
// (scope=proposed).
func (h *RequestHandler) ListRequests(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	filter := services.RequestFilter{
		Status:          c.Query("status"),
		City:            c.Query("city"),
		SeriousnessTier: c.Query("tier"),
		Search:          c.Query("q"),
		Limit:           limit,
	}

	scope := c.Query("scope")
	switch scope {
	case "":
		// Public listing only surfaces open requests.
		if principal == nil || !principal.IsStaff() {
			filter.Status = string(domain.RequestOpen)
		}
	case "mine":
		if principal == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required for scope=mine"})
			return
		}
		filter.OwnerID = principal.ID
	case "proposed":
		if principal == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required for scope=proposed"})
			return
		}
		filter.AgentID = principal.ID
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown scope"})
		return
	}

	if include := c.Query("include"); include != "" && scope != "" {
		for _, part := range strings.Split(include, ",") {
			switch strings.TrimSpace(part) {
			case "owner":
				filter.IncludeOwner = true
			case "proposals":
				filter.IncludeProposals = true
			}
		}
	}

	results, err := h.requestService.ListRequests(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": results})
}

// GetRequest handles GET /v1/marketing-requests/:id
func (h *RequestHandler) GetRequest(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	request, err := h.requestService.FindRequestByID(c.Request.Context(), c.Param("id"), services.RequestInclude{})
	if err != nil {
		respondError(c, err)
		return
	}

	// Unapproved requests are visible only to their owner and staff.
	if request.Status != domain.RequestOpen && request.Status != domain.RequestAwarded {
		if principal == nil || (principal.ID != request.OwnerID && !principal.IsStaff()) {
			respondError(c, domain.NotFoundError("marketing request"))
			return
		}
	}

	include := services.RequestInclude{}
	if principal != nil && (principal.ID == request.OwnerID || principal.IsStaff()) {
		for _, part := range strings.Split(c.Query("include"), ",") {
			switch strings.TrimSpace(part) {
			case "owner":
				include.Owner = true
			case "proposals":
				include.Proposals = true
			}
		}
	}
	if include.Owner || include.Proposals {
		request, err = h.requestService.FindRequestByID(c.Request.Context(), c.Param("id"), include)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, request)
}

// UpdateStatus handles PATCH /v1/marketing-requests/:id/status
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	var input struct {
		Status          string `json:"status"`
		ModerationNotes string `json:"moderation_notes"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	request, err := h.requestService.UpdateStatus(c.Request.Context(), c.Param("id"),
		principal.ID, principal.IsStaff(), domain.RequestStatus(input.Status), input.ModerationNotes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}
