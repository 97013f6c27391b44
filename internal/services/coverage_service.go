// internal/services/coverage_service.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/claimdesk-backend/internal/cache"
	"github.com/javajoker/claimdesk-backend/internal/database"
	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/utils"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

type CoverageService struct {
	db       *gorm.DB
	timeline *TimelineService
	cache    *cache.Coordinator
}

type CoveragePeriodInput struct {
	PeriodType models.CoveragePeriodType `json:"period_type" validate:"required,oneof=BEFORE AFTER"`
	StartDate  time.Time                 `json:"start_date" validate:"required"`
	EndDate    time.Time                 `json:"end_date" validate:"required"`
}

type SetCoverageRequest struct {
	Periods []CoveragePeriodInput `json:"periods" validate:"required,min=1,max=2,dive"`
}

func NewCoverageService(db *gorm.DB, timeline *TimelineService, coordinator *cache.Coordinator) *CoverageService {
	return &CoverageService{
		db:       db,
		timeline: timeline,
		cache:    coordinator,
	}
}

// EvaluatePeriod computes the length and eligibility of a coverage window.
// Each window is judged on its own.
func EvaluatePeriod(in CoveragePeriodInput) (models.ClaimCoveragePeriod, error) {
	if in.EndDate.Before(in.StartDate) {
		return models.ClaimCoveragePeriod{}, workflow.Errorf(workflow.KindInvalidInput, "%s period ends before it starts", in.PeriodType)
	}

	days := models.CoverageDays(in.StartDate, in.EndDate)
	return models.ClaimCoveragePeriod{
		PeriodType: in.PeriodType,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Days:       days,
		IsEligible: models.CoverageEligible(days),
	}, nil
}

// SetCoveragePeriods upserts the BEFORE/AFTER windows of a claim. It does not
// affect the claim's status or stage.
func (s *CoverageService) SetCoveragePeriods(ctx context.Context, claimID uuid.UUID, actor workflow.Actor, req *SetCoverageRequest) ([]models.ClaimCoveragePeriod, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &workflow.Error{Kind: workflow.KindInvalidInput, Message: "invalid coverage periods", Err: err}
	}

	periods := make([]models.ClaimCoveragePeriod, 0, len(req.Periods))
	seen := map[models.CoveragePeriodType]bool{}
	for _, in := range req.Periods {
		if seen[in.PeriodType] {
			return nil, workflow.Errorf(workflow.KindInvalidInput, "duplicate %s period", in.PeriodType)
		}
		seen[in.PeriodType] = true

		p, err := EvaluatePeriod(in)
		if err != nil {
			return nil, err
		}
		p.ClaimID = claimID
		periods = append(periods, p)
	}

	var stored []models.ClaimCoveragePeriod
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		claim, err := findClaim(tx, claimID, actor, true)
		if err != nil {
			return err
		}
		if !canContribute(actor, claim) {
			return workflow.Errorf(workflow.KindForbidden, "role %s cannot record coverage", actor.Role)
		}
		if claim.Status.Terminal() {
			return workflow.Errorf(workflow.KindInvalidStageForAction, "claim is %s", claim.Status)
		}

		payload := models.JSONB{}
		for i := range periods {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "claim_id"}, {Name: "period_type"}},
				DoUpdates: clause.AssignmentColumns([]string{"start_date", "end_date", "days", "is_eligible", "updated_at"}),
			}).Create(&periods[i]).Error
			if err != nil {
				return workflow.StorageFailure(err)
			}
			payload[string(periods[i].PeriodType)] = periods[i].IsEligible
		}

		// Upserted rows keep their original ids, so read them back
		if err := tx.Where("claim_id = ?", claimID).Order("period_type DESC").Find(&stored).Error; err != nil {
			return workflow.StorageFailure(err)
		}

		_, err = s.timeline.Append(tx, claim, actor, TimelineEntry{
			Event:   models.TimelineEventCoverageUpdated,
			Payload: payload,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.MutationCoverageChanged, cache.Target{ClaimID: claimID, Actor: actor.ID})
	return stored, nil
}
