// internal/services/timeline_service.go
package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/claimdesk-backend/internal/cache"
	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

type TimelineService struct {
	db    *gorm.DB
	cache *cache.Coordinator
}

// TimelineEntry describes one event to record against a claim.
type TimelineEntry struct {
	Event   models.TimelineEvent
	Action  string
	Note    string
	Payload models.JSONB
}

func NewTimelineService(db *gorm.DB, coordinator *cache.Coordinator) *TimelineService {
	return &TimelineService{
		db:    db,
		cache: coordinator,
	}
}

// Append records an event inside the caller's transaction, using the claim's
// state as it stands after the change.
func (s *TimelineService) Append(tx *gorm.DB, claim *models.Claim, actor workflow.Actor, entry TimelineEntry) (*models.ClaimTimeline, error) {
	row := &models.ClaimTimeline{
		ClaimID:   claim.ID,
		EventType: entry.Event,
		Action:    entry.Action,
		Status:    claim.Status,
		Stage:     claim.Stage,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Note:      entry.Note,
		Payload:   entry.Payload,
	}

	if err := tx.Create(row).Error; err != nil {
		return nil, workflow.StorageFailure(err)
	}
	return row, nil
}

// List returns a claim's history, oldest first.
func (s *TimelineService) List(ctx context.Context, claimID uuid.UUID, actor workflow.Actor) ([]models.ClaimTimeline, error) {
	return cache.Remember(ctx, s.cache, cache.TimelineKey(claimID, actor.ID), func() ([]models.ClaimTimeline, error) {
		db := s.db.WithContext(ctx)
		if _, err := findClaim(db, claimID, actor, false); err != nil {
			return nil, err
		}

		var rows []models.ClaimTimeline
		if err := db.Where("claim_id = ?", claimID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
			return nil, workflow.StorageFailure(err)
		}
		return rows, nil
	})
}

// Count returns how many events a claim has recorded.
func (s *TimelineService) Count(ctx context.Context, claimID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ClaimTimeline{}).Where("claim_id = ?", claimID).Count(&n).Error
	return n, workflow.StorageFailure(err)
}

// History returns a claim's full history without viewer scoping. Operator use only.
func (s *TimelineService) History(ctx context.Context, claimID uuid.UUID) ([]models.ClaimTimeline, error) {
	var rows []models.ClaimTimeline
	err := s.db.WithContext(ctx).Where("claim_id = ?", claimID).Order("created_at ASC, id ASC").Find(&rows).Error
	if err != nil {
		return nil, workflow.StorageFailure(err)
	}
	return rows, nil
}
