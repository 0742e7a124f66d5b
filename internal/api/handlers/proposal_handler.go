package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"aqarmatch/server/internal/api/middleware"
	"aqarmatch/server/internal/config"
	"aqarmatch/server/internal/domain"
	"aqarmatch/server/internal/services"
	"aqarmatch/server/internal/storage"
	"aqarmatch/server/internal/tasks"
)

// ProposalHandler handles proposal endpoints nested under marketing requests.
type ProposalHandler struct {
	cfg             *config.Config
	proposalService services.IProposalService
	requestService  services.IRequestService
	userService     services.IUserService
	storageService  storage.IS3Storage
	taskClient      IAsynqClient
}

// NewProposalHandler creates a new ProposalHandler.
func NewProposalHandler(
	cfg *config.Config,
	proposalService services.IProposalService,
	requestService services.IRequestService,
	userService services.IUserService,
	storageService storage.IS3Storage,
	taskClient IAsynqClient,
) *ProposalHandler {
	return &ProposalHandler{
		cfg:             cfg,
		proposalService: proposalService,
		requestService:  requestService,
		userService:     userService,
		storageService:  storageService,
		taskClient:      taskClient,
	}
}

// enqueueEmail queues a notification email, logging rather than failing the
// request when the queue is unavailable.
func (h *ProposalHandler) enqueueEmail(c *gin.Context, to, subject, body string) {
	if h.taskClient == nil || to == "" {
		return
	}
	task, err := tasks.NewEmailDeliveryTask(to, subject, body)
	if err != nil {
		log.Printf("ERROR building email task: %v", err)
		return
	}
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
		log.Printf("ERROR enqueueing email task to %s: %v", to, err)
	}
}

// CreateProposal handles POST /v1/marketing-requests/:id/proposals. The route
// is gated by middleware.RequireRole, so only agents and staff reach it.
func (h *ProposalHandler) CreateProposal(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	var input services.CreateProposalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	requestID := c.Param("id")
	proposal, err := h.proposalService.CreateProposal(c.Request.Context(), requestID, principal.ID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	if request, err := h.requestService.FindRequestByID(c.Request.Context(), requestID, services.RequestInclude{}); err == nil {
		h.enqueueEmail(c, request.ContactEmail,
			fmt.Sprintf("New proposal on %q", request.Title),
			fmt.Sprintf("An agent submitted a new proposal on your marketing request %q. Log in to review it.", request.Title))
	}

	c.JSON(http.StatusCreated, proposal)
}

// ListProposals handles GET /v1/marketing-requests/:id/proposals
func (h *ProposalHandler) ListProposals(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	proposals, err := h.proposalService.ListProposalsByRequest(c.Request.Context(), c.Param("id"), principal.ID, principal.IsStaff())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": proposals})
}

// DecideProposal handles PATCH /v1/marketing-requests/:id/proposals/:proposalId/status
func (h *ProposalHandler) DecideProposal(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	var input struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	requestID := c.Param("id")
	proposal, err := h.proposalService.DecideProposal(c.Request.Context(), requestID, c.Param("proposalId"),
		principal.ID, principal.IsStaff(), domain.ProposalStatus(input.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	// Agent learns the outcome of owner decisions by email.
	if proposal.Status == domain.ProposalAccepted || proposal.Status == domain.ProposalDeclined {
		if agent, err := h.userService.FindUserByID(c.Request.Context(), proposal.AgentID); err == nil {
			h.enqueueEmail(c, agent.Email,
				fmt.Sprintf("Your proposal was %s", proposal.Status),
				fmt.Sprintf("Your proposal on marketing request %s is now %s.", requestID, proposal.Status))
		}
	}

	c.JSON(http.StatusOK, proposal)
}

// PresignAttachment handles POST /v1/marketing-requests/:id/proposals/:proposalId/attachments
//
// Returns a presigned PUT URL the agent uploads to directly. Processing and
// recording of the attachment happens in a delayed background task, giving
// the upload time to complete.
func (h *ProposalHandler) PresignAttachment(c *gin.Context) {
	principal := middleware.GetPrincipal(c)

	var input struct {
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename and content_type are required"})
		return
	}

	proposal, err := h.proposalService.FindProposalByID(c.Request.Context(), c.Param("id"), c.Param("proposalId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if proposal.AgentID != principal.ID && !principal.IsStaff() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the proposing agent may add attachments"})
		return
	}
	if proposal.Status != domain.ProposalPending {
		respondError(c, domain.StateError(fmt.Sprintf("proposal is %s and can no longer be amended", proposal.Status)))
		return
	}

	url, key, err := h.storageService.GeneratePresignedPutURL(c.Request.Context(), principal.ID, proposal.ID, input.Filename, input.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.taskClient != nil {
		task, err := tasks.NewAttachmentProcessTask(key, proposal.ID)
		if err == nil {
			_, err = h.taskClient.EnqueueContext(c.Request.Context(), task, asynq.ProcessIn(1*time.Minute))
		}
		if err != nil {
			log.Printf("ERROR enqueueing attachment task for key %s: %v", key, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}
