// internal/utils/validator.go
package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("doc_type", validateDocType)
	validate.RegisterValidation("field_type", validateFieldType)
	validate.RegisterValidation("claim_action", validateClaimAction)
	validate.RegisterValidation("claim_status", validateClaimStatus)
	validate.RegisterValidation("claim_stage", validateClaimStage)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateDocType(fl validator.FieldLevel) bool {
	return models.DocumentType(fl.Field().String()).Valid()
}

func validateFieldType(fl validator.FieldLevel) bool {
	switch models.FormFieldType(fl.Field().String()) {
	case models.FormFieldText, models.FormFieldNumber, models.FormFieldDate,
		models.FormFieldBoolean, models.FormFieldSelect:
		return true
	}
	return false
}

func validateClaimAction(fl validator.FieldLevel) bool {
	return workflow.IsStageAction(workflow.Action(fl.Field().String()))
}

func validateClaimStatus(fl validator.FieldLevel) bool {
	switch models.ClaimStatus(fl.Field().String()) {
	case models.ClaimStatusDraft, models.ClaimStatusSubmitted, models.ClaimStatusInProgress,
		models.ClaimStatusReview, models.ClaimStatusInfoRequested, models.ClaimStatusInfoSubmitted,
		models.ClaimStatusApproved, models.ClaimStatusRejected, models.ClaimStatusPaid:
		return true
	}
	return false
}

func validateClaimStage(fl validator.FieldLevel) bool {
	stage := models.ClaimStage(fl.Field().String())
	for _, s := range models.AllClaimStages {
		if s == stage {
			return true
		}
	}
	return false
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "gte":
		return e.Field() + " must not be negative"
	case "doc_type":
		return "Unknown document type"
	case "field_type":
		return "Field type must be one of text, number, date, boolean, select"
	case "claim_action":
		return "Unknown claim action"
	case "claim_status", "claim_stage":
		return e.Field() + " is not a known value"
	default:
		return e.Field() + " is invalid"
	}
}
