// internal/services/integrity_audit.go
package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

const auditBatchSize = 500

type IntegrityViolation struct {
	ClaimID     uuid.UUID          `json:"claim_id"`
	ClaimNumber string             `json:"claim_number"`
	Status      models.ClaimStatus `json:"status"`
	Stage       models.ClaimStage  `json:"stage"`
	Reason      string             `json:"reason"`
}

// AuditClaims scans every claim and reports those whose status and stage conflict.
func AuditClaims(ctx context.Context, db *gorm.DB) ([]IntegrityViolation, error) {
	var violations []IntegrityViolation
	var batch []models.Claim

	result := db.WithContext(ctx).
		Select("id", "claim_number", "status", "stage").
		FindInBatches(&batch, auditBatchSize, func(tx *gorm.DB, _ int) error {
			for _, c := range batch {
				if err := workflow.CheckIntegrity(stateOf(&c)); err != nil {
					violations = append(violations, IntegrityViolation{
						ClaimID:     c.ID,
						ClaimNumber: c.ClaimNumber,
						Status:      c.Status,
						Stage:       c.Stage,
						Reason:      err.Error(),
					})
				}
			}
			return nil
		})
	if result.Error != nil {
		return nil, workflow.StorageFailure(result.Error)
	}
	return violations, nil
}
