// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/claimdesk-backend/internal/utils"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

// Conflicts with the claim's current state.
var conflictKinds = map[workflow.Kind]bool{
	workflow.KindInvalidStageForAction:     true,
	workflow.KindMissingDocuments:          true,
	workflow.KindInfoRequestPending:        true,
	workflow.KindInfoRequestAlreadyPending: true,
	workflow.KindRequestNotPending:         true,
	workflow.KindClaimNotEditable:          true,
	workflow.KindClaimNotDeletable:         true,
	workflow.KindAllDocumentSlotsExhausted: true,
}

// respondError maps a service error onto the response envelope. Storage
// failures are logged in full and surfaced without detail.
func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	var wfErr *workflow.Error
	if !errors.As(err, &wfErr) {
		log.WithError(err).Error("Unclassified service error")
		utils.InternalErrorResponse(c, "")
		return
	}

	switch {
	case wfErr.Kind == workflow.KindUnauthorized:
		utils.UnauthorizedResponse(c, wfErr.Message)
	case wfErr.Kind == workflow.KindForbidden:
		utils.ForbiddenResponse(c, wfErr.Message)
	case wfErr.Kind == workflow.KindNotFound:
		utils.ErrorResponse(c, http.StatusNotFound, string(wfErr.Kind), wfErr.Message, nil)
	case wfErr.Kind == workflow.KindInvalidInput:
		var validationErrs validator.ValidationErrors
		if errors.As(wfErr.Err, &validationErrs) {
			utils.ValidationErrorResponse(c, utils.GetValidationErrors(validationErrs))
			return
		}
		utils.ErrorResponse(c, http.StatusBadRequest, string(wfErr.Kind), wfErr.Message, nil)
	case conflictKinds[wfErr.Kind]:
		utils.ConflictResponse(c, string(wfErr.Kind), wfErr.Message)
	default:
		log.WithError(err).WithField("kind", wfErr.Kind).Error("Storage failure")
		utils.ErrorResponse(c, http.StatusInternalServerError, string(workflow.KindStorageFailure), "Internal server error", nil)
	}
}

// pathID parses a uuid path parameter. A malformed id is reported as not
// found so probing ids reveals nothing.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.NotFoundResponse(c, "resource")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body and reports decoding problems as a bad request.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return false
	}
	return true
}
