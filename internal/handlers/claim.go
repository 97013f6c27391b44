// internal/handlers/claim.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/claimdesk-backend/internal/middleware"
	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/services"
	"github.com/javajoker/claimdesk-backend/internal/utils"
)

type ClaimHandler struct {
	claimService    *services.ClaimService
	workflowService *services.WorkflowService
	documentService *services.DocumentService
	timelineService *services.TimelineService
	log             logrus.FieldLogger
}

type submitRequest struct {
	Notes string `json:"notes"`
}

type hospitalDecisionRequest struct {
	Approve *bool  `json:"approve"`
	Notes   string `json:"notes"`
}

func NewClaimHandler(
	claimService *services.ClaimService,
	workflowService *services.WorkflowService,
	documentService *services.DocumentService,
	timelineService *services.TimelineService,
	log logrus.FieldLogger,
) *ClaimHandler {
	return &ClaimHandler{
		claimService:    claimService,
		workflowService: workflowService,
		documentService: documentService,
		timelineService: timelineService,
		log:             log.WithField("handler", "claims"),
	}
}

// GET /v1/claims
func (h *ClaimHandler) ListClaims(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	filter := services.ClaimFilter{
		Status: models.ClaimStatus(c.Query("status")),
		Stage:  models.ClaimStage(c.Query("stage")),
	}

	page, err := h.claimService.ListClaims(c.Request.Context(), actor, filter, params)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	result := utils.CreatePaginationResult(page.Claims, page.Total, utils.PaginationParams{
		Page:  page.Page,
		Limit: page.Limit,
	})
	utils.PaginatedResponse(c, result)
}

// POST /v1/claims
func (h *ClaimHandler) CreateClaim(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateClaimRequest
	if !bindJSON(c, &req) {
		return
	}

	claim, err := h.claimService.CreateClaim(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.CreatedResponse(c, claim)
}

// GET /v1/claims/:id
func (h *ClaimHandler) GetClaim(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.claimService.GetClaim(c.Request.Context(), claimID, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, detail)
}

// PUT /v1/claims/:id
func (h *ClaimHandler) UpdateClaim(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateClaimRequest
	if !bindJSON(c, &req) {
		return
	}

	claim, err := h.claimService.EditClaim(c.Request.Context(), claimID, actor, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, claim)
}

// DELETE /v1/claims/:id
func (h *ClaimHandler) DeleteClaim(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	docs, err := h.claimService.DeleteClaim(c.Request.Context(), claimID, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	// Rows are gone; object cleanup is best effort
	h.documentService.PurgeObjects(docs)

	utils.SuccessResponse(c, gin.H{"id": claimID, "deleted": true})
}

// POST /v1/claims/:id/submit
func (h *ClaimHandler) SubmitClaim(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req submitRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	result, err := h.workflowService.Submit(c.Request.Context(), claimID, actor, req.Notes)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /v1/claims/:id/transitions
func (h *ClaimHandler) TransitionClaim(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.TransitionRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.workflowService.Transition(c.Request.Context(), claimID, actor, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /v1/claims/:id/hospital-decision
func (h *ClaimHandler) HospitalDecision(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req hospitalDecisionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Approve == nil {
		utils.ValidationErrorResponse(c, []utils.ValidationError{{
			Field:   "approve",
			Tag:     "required",
			Message: "approve is required",
		}})
		return
	}

	result, err := h.workflowService.HospitalDecision(c.Request.Context(), claimID, actor, *req.Approve, req.Notes)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// GET /v1/claims/:id/timeline
func (h *ClaimHandler) GetTimeline(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	entries, err := h.timelineService.List(c.Request.Context(), claimID, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, entries)
}
