// internal/handlers/info_request.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/claimdesk-backend/internal/middleware"
	"github.com/javajoker/claimdesk-backend/internal/services"
	"github.com/javajoker/claimdesk-backend/internal/utils"
)

type InfoRequestHandler struct {
	infoRequestService *services.InfoRequestService
	log                logrus.FieldLogger
}

func NewInfoRequestHandler(infoRequestService *services.InfoRequestService, log logrus.FieldLogger) *InfoRequestHandler {
	return &InfoRequestHandler{
		infoRequestService: infoRequestService,
		log:                log.WithField("handler", "info_requests"),
	}
}

// GET /v1/claims/:id/info-requests
func (h *InfoRequestHandler) ListInfoRequests(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	requests, err := h.infoRequestService.ListInfoRequests(c.Request.Context(), claimID, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, requests)
}

// POST /v1/claims/:id/info-requests
func (h *InfoRequestHandler) CreateInfoRequest(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.CreateInfoRequestRequest
	if !bindJSON(c, &req) {
		return
	}

	request, err := h.infoRequestService.CreateInfoRequest(c.Request.Context(), claimID, actor, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.CreatedResponse(c, request)
}

// POST /v1/info-requests/:id/complete
func (h *InfoRequestHandler) CompleteInfoRequest(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	requestID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.CompleteInfoRequestRequest
	if !bindJSON(c, &req) {
		return
	}

	request, err := h.infoRequestService.CompleteInfoRequest(c.Request.Context(), requestID, actor, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, request)
}
