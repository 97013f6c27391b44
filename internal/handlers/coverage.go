// internal/handlers/coverage.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/claimdesk-backend/internal/middleware"
	"github.com/javajoker/claimdesk-backend/internal/services"
	"github.com/javajoker/claimdesk-backend/internal/utils"
)

type CoverageHandler struct {
	coverageService *services.CoverageService
	log             logrus.FieldLogger
}

func NewCoverageHandler(coverageService *services.CoverageService, log logrus.FieldLogger) *CoverageHandler {
	return &CoverageHandler{
		coverageService: coverageService,
		log:             log.WithField("handler", "coverage"),
	}
}

// PUT /v1/claims/:id/coverage-periods
func (h *CoverageHandler) SetCoveragePeriods(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.SetCoverageRequest
	if !bindJSON(c, &req) {
		return
	}

	periods, err := h.coverageService.SetCoveragePeriods(c.Request.Context(), claimID, actor, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, periods)
}
