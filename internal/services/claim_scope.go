// internal/services/claim_scope.go
package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

// findClaim loads a claim inside the actor's scope. Claims outside the scope are
// reported as NotFound. With forUpdate the row stays locked until tx ends.
func findClaim(tx *gorm.DB, claimID uuid.UUID, actor workflow.Actor, forUpdate bool) (*models.Claim, error) {
	q := tx
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var claim models.Claim
	if err := q.First(&claim, "id = ?", claimID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrNotFound
		}
		return nil, workflow.StorageFailure(err)
	}

	if !workflow.CanView(actor, &claim) {
		return nil, workflow.ErrNotFound
	}

	return &claim, nil
}

func countDocuments(tx *gorm.DB, claimID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&models.ClaimDocument{}).Where("claim_id = ?", claimID).Count(&n).Error
	return n, workflow.StorageFailure(err)
}

func countPendingInfoRequests(tx *gorm.DB, claimID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&models.ClaimInfoRequest{}).
		Where("claim_id = ? AND status = ?", claimID, models.InfoRequestStatusPending).
		Count(&n).Error
	return n, workflow.StorageFailure(err)
}

func stateOf(c *models.Claim) workflow.State {
	return workflow.State{Status: c.Status, Stage: c.Stage}
}

// warnOnConflict logs claims whose status and stage contradict each other.
func warnOnConflict(log logrus.FieldLogger, c *models.Claim) {
	if err := workflow.CheckIntegrity(stateOf(c)); err != nil {
		log.WithError(err).WithField("claim_id", c.ID).Warn("Claim status and stage disagree")
	}
}
