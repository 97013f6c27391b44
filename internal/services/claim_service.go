// internal/services/claim_service.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/claimdesk-backend/internal/cache"
	"github.com/javajoker/claimdesk-backend/internal/database"
	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/utils"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

type ClaimService struct {
	db       *gorm.DB
	timeline *TimelineService
	cache    *cache.Coordinator
	log      logrus.FieldLogger
}

type ClaimItemInput struct {
	Description string  `json:"description" validate:"required,max=255"`
	Quantity    int     `json:"quantity" validate:"gte=1"`
	UnitAmount  float64 `json:"unit_amount" validate:"gte=0"`
}

type ClaimMetadataInput struct {
	AdmissionDate *time.Time             `json:"admission_date"`
	DischargeDate *time.Time             `json:"discharge_date"`
	DiagnosisCode string                 `json:"diagnosis_code" validate:"max=32"`
	TreatmentType string                 `json:"treatment_type" validate:"max=64"`
	RoomClass     string                 `json:"room_class" validate:"max=64"`
	Extra         map[string]interface{} `json:"extra"`
}

type CreateClaimRequest struct {
	TotalAmount     *float64            `json:"total_amount" validate:"omitempty,gte=0"`
	Notes           string              `json:"notes" validate:"max=5000"`
	ClaimDate       *time.Time          `json:"claim_date"`
	AssignedAgentID *uuid.UUID          `json:"assigned_agent_id"`
	AgencyID        *uuid.UUID          `json:"agency_id"`
	HospitalID      *uuid.UUID          `json:"hospital_id"`
	ClientID        *uuid.UUID          `json:"client_id"`
	PolicyID        *uuid.UUID          `json:"policy_id"`
	DiseaseID       *uuid.UUID          `json:"disease_id"`
	Items           []ClaimItemInput    `json:"items" validate:"dive"`
	Metadata        *ClaimMetadataInput `json:"metadata"`
}

type UpdateClaimRequest struct {
	TotalAmount *float64            `json:"total_amount" validate:"omitempty,gte=0"`
	Notes       *string             `json:"notes" validate:"omitempty,max=5000"`
	ClaimDate   *time.Time          `json:"claim_date"`
	HospitalID  *uuid.UUID          `json:"hospital_id"`
	ClientID    *uuid.UUID          `json:"client_id"`
	PolicyID    *uuid.UUID          `json:"policy_id"`
	DiseaseID   *uuid.UUID          `json:"disease_id"`
	Items       *[]ClaimItemInput   `json:"items" validate:"omitempty,dive"`
	Metadata    *ClaimMetadataInput `json:"metadata"`
}

type ClaimFilter struct {
	Status models.ClaimStatus `form:"status" validate:"omitempty,claim_status"`
	Stage  models.ClaimStage  `form:"stage" validate:"omitempty,claim_stage"`
}

// ClaimDetail is the cached single-claim view.
type ClaimDetail struct {
	Claim               *models.Claim `json:"claim"`
	PendingInfoRequests int64         `json:"pending_info_requests"`
	IntegrityWarning    string        `json:"integrity_warning,omitempty"`
}

// ClaimPage is the cached list view.
type ClaimPage struct {
	Claims     []models.Claim `json:"claims"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

var claimSortFields = []string{"created_at", "updated_at", "claim_date", "total_amount", "status", "stage"}

func NewClaimService(db *gorm.DB, timeline *TimelineService, coordinator *cache.Coordinator, log logrus.FieldLogger) *ClaimService {
	return &ClaimService{
		db:       db,
		timeline: timeline,
		cache:    coordinator,
		log:      log.WithField("component", "claims"),
	}
}

func (s *ClaimService) CreateClaim(ctx context.Context, actor workflow.Actor, req *CreateClaimRequest) (*models.Claim, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &workflow.Error{Kind: workflow.KindInvalidInput, Message: "invalid claim", Err: err}
	}

	now := time.Now()
	number, err := utils.GenerateClaimNumber(now)
	if err != nil {
		return nil, workflow.StorageFailure(err)
	}

	claim := &models.Claim{
		ClaimNumber: number,
		Status:      models.ClaimStatusDraft,
		Notes:       req.Notes,
		ClaimDate:   now,
		CreatedBy:   actor.ID,
		ClientID:    req.ClientID,
		PolicyID:    req.PolicyID,
		DiseaseID:   req.DiseaseID,
	}
	if req.ClaimDate != nil {
		claim.ClaimDate = *req.ClaimDate
	}

	// Who holds the draft depends on who opened it
	switch actor.Role {
	case models.RoleAgent, models.RoleAgentManager:
		if actor.AgencyID == nil {
			return nil, workflow.Errorf(workflow.KindForbidden, "agent is not attached to an agency")
		}
		claim.Stage = models.ClaimStageDraftAgent
		claim.AgencyID = actor.AgencyID
		claim.HospitalID = req.HospitalID
		claim.AssignedAgentID = &actor.ID
		if actor.Role == models.RoleAgentManager && req.AssignedAgentID != nil {
			claim.AssignedAgentID = req.AssignedAgentID
		}
	case models.RoleHospitalAdmin:
		if actor.HospitalID == nil {
			return nil, workflow.Errorf(workflow.KindForbidden, "hospital admin is not attached to a hospital")
		}
		if req.AgencyID == nil || req.AssignedAgentID == nil {
			return nil, workflow.Errorf(workflow.KindInvalidInput, "agency_id and assigned_agent_id are required")
		}
		claim.Stage = models.ClaimStageDraftHospital
		claim.HospitalID = actor.HospitalID
		claim.AgencyID = req.AgencyID
		claim.AssignedAgentID = req.AssignedAgentID
	default:
		return nil, workflow.Errorf(workflow.KindForbidden, "role %s cannot open claims", actor.Role)
	}

	items := buildItems(req.Items)
	claim.TotalAmount = totalFor(req.TotalAmount, items)

	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Create(claim).Error; err != nil {
			return workflow.StorageFailure(err)
		}

		if err := replaceItems(tx, claim.ID, items); err != nil {
			return err
		}

		if req.Metadata != nil {
			if err := upsertMetadata(tx, claim.ID, req.Metadata); err != nil {
				return err
			}
		}

		_, err := s.timeline.Append(tx, claim, actor, TimelineEntry{
			Event: models.TimelineEventCreated,
			Payload: models.JSONB{
				"claim_number": claim.ClaimNumber,
				"total_amount": claim.TotalAmount,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.MutationClaimCreated, cache.Target{ClaimID: claim.ID, Actor: actor.ID})

	s.log.WithFields(logrus.Fields{
		"claim_id": claim.ID,
		"actor_id": actor.ID,
		"stage":    claim.Stage,
	}).Info("Claim created")

	return claim, nil
}

func (s *ClaimService) GetClaim(ctx context.Context, claimID uuid.UUID, actor workflow.Actor) (*ClaimDetail, error) {
	return cache.Remember(ctx, s.cache, cache.DetailKey(claimID, actor.ID), func() (*ClaimDetail, error) {
		db := s.db.WithContext(ctx)

		claim, err := findClaim(db, claimID, actor, false)
		if err != nil {
			return nil, err
		}

		// Load side records
		err = db.Preload("Documents", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC") }).
			Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC") }).
			Preload("CoveragePeriods").
			Preload("Metadata").
			First(claim, "id = ?", claimID).Error
		if err != nil {
			return nil, workflow.StorageFailure(err)
		}

		pending, err := countPendingInfoRequests(db, claimID)
		if err != nil {
			return nil, err
		}

		detail := &ClaimDetail{Claim: claim, PendingInfoRequests: pending}
		if err := workflow.CheckIntegrity(stateOf(claim)); err != nil {
			warnOnConflict(s.log, claim)
			detail.IntegrityWarning = err.Error()
		}
		return detail, nil
	})
}

func (s *ClaimService) ListClaims(ctx context.Context, actor workflow.Actor, filter ClaimFilter, params utils.PaginationParams) (*ClaimPage, error) {
	if err := utils.ValidateStruct(&filter); err != nil {
		return nil, &workflow.Error{Kind: workflow.KindInvalidInput, Message: "invalid filter", Err: err}
	}
	params = utils.NormalizePagination(params)

	key := cache.ListKey(actor.Role, actor.ID, cache.QueryKey(string(filter.Status), string(filter.Stage), params.CacheKey()))
	return cache.Remember(ctx, s.cache, key, func() (*ClaimPage, error) {
		query, err := scopeClaims(s.db.WithContext(ctx).Model(&models.Claim{}), actor)
		if err != nil {
			return nil, err
		}

		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.Stage != "" {
			query = query.Where("stage = ?", filter.Stage)
		}
		query = query.Session(&gorm.Session{})

		var total int64
		if err := query.Count(&total).Error; err != nil {
			return nil, workflow.StorageFailure(err)
		}

		var claims []models.Claim
		q := utils.ApplySort(query, params, claimSortFields)
		if err := utils.ApplyPagination(q, params).Find(&claims).Error; err != nil {
			return nil, workflow.StorageFailure(err)
		}

		result := utils.CreatePaginationResult(claims, total, params)
		return &ClaimPage{
			Claims:     claims,
			Total:      result.Total,
			Page:       result.Page,
			Limit:      result.Limit,
			TotalPages: result.TotalPages,
		}, nil
	})
}

// scopeClaims narrows a claims query to what the actor may see.
func scopeClaims(q *gorm.DB, actor workflow.Actor) (*gorm.DB, error) {
	switch actor.Role {
	case models.RoleSuperAdmin:
		return q, nil
	case models.RoleAgent:
		return q.Where("created_by = ? OR assigned_agent_id = ?", actor.ID, actor.ID), nil
	case models.RoleAgentManager, models.RoleAdminAgency, models.RoleInsuranceAdmin:
		if actor.AgencyID == nil {
			return q.Where("1 = 0"), nil
		}
		return q.Where("agency_id = ?", *actor.AgencyID), nil
	case models.RoleHospitalAdmin:
		if actor.HospitalID == nil {
			return q.Where("1 = 0"), nil
		}
		return q.Where("hospital_id = ?", *actor.HospitalID), nil
	default:
		return nil, workflow.Errorf(workflow.KindForbidden, "role %s has no claim access", actor.Role)
	}
}

func (s *ClaimService) EditClaim(ctx context.Context, claimID uuid.UUID, actor workflow.Actor, req *UpdateClaimRequest) (*models.Claim, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &workflow.Error{Kind: workflow.KindInvalidInput, Message: "invalid claim update", Err: err}
	}

	var claim *models.Claim
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var err error
		claim, err = findClaim(tx, claimID, actor, true)
		if err != nil {
			return err
		}

		// Only drafts can be edited, whoever asks
		if claim.Status != models.ClaimStatusDraft {
			return workflow.ErrClaimNotEditable
		}
		if !workflow.CanManageDraft(actor, claim) {
			return workflow.Errorf(workflow.KindForbidden, "only the claim owner can edit it")
		}

		changed := []string{}
		if req.Notes != nil {
			claim.Notes = *req.Notes
			changed = append(changed, "notes")
		}
		if req.ClaimDate != nil {
			claim.ClaimDate = *req.ClaimDate
			changed = append(changed, "claim_date")
		}
		if req.HospitalID != nil && claim.Stage != models.ClaimStageDraftHospital {
			claim.HospitalID = req.HospitalID
			changed = append(changed, "hospital_id")
		}
		if req.ClientID != nil {
			claim.ClientID = req.ClientID
			changed = append(changed, "client_id")
		}
		if req.PolicyID != nil {
			claim.PolicyID = req.PolicyID
			changed = append(changed, "policy_id")
		}
		if req.DiseaseID != nil {
			claim.DiseaseID = req.DiseaseID
			changed = append(changed, "disease_id")
		}

		if req.Items != nil {
			items := buildItems(*req.Items)
			if err := replaceItems(tx, claim.ID, items); err != nil {
				return err
			}
			claim.TotalAmount = totalFor(req.TotalAmount, items)
			changed = append(changed, "items", "total_amount")
		} else if req.TotalAmount != nil {
			claim.TotalAmount = *req.TotalAmount
			changed = append(changed, "total_amount")
		}

		if req.Metadata != nil {
			if err := upsertMetadata(tx, claim.ID, req.Metadata); err != nil {
				return err
			}
			changed = append(changed, "metadata")
		}

		if err := tx.Save(claim).Error; err != nil {
			return workflow.StorageFailure(err)
		}

		_, err = s.timeline.Append(tx, claim, actor, TimelineEntry{
			Event:   models.TimelineEventUpdated,
			Payload: models.JSONB{"fields": changed},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.MutationClaimUpdated, cache.Target{ClaimID: claim.ID, Actor: actor.ID})
	return claim, nil
}

// DeleteClaim hard-deletes a draft and every row that belongs to it.
// Stored document objects are returned so the caller can remove them.
func (s *ClaimService) DeleteClaim(ctx context.Context, claimID uuid.UUID, actor workflow.Actor) ([]models.ClaimDocument, error) {
	var documents []models.ClaimDocument
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		claim, err := findClaim(tx, claimID, actor, true)
		if err != nil {
			return err
		}

		if claim.Status != models.ClaimStatusDraft {
			return workflow.ErrClaimNotDeletable
		}
		if !workflow.CanManageDraft(actor, claim) {
			return workflow.Errorf(workflow.KindForbidden, "only the claim owner can delete it")
		}

		if err := tx.Where("claim_id = ?", claimID).Find(&documents).Error; err != nil {
			return workflow.StorageFailure(err)
		}

		// Children first, then the claim itself
		children := []interface{}{
			&models.ClaimDocument{},
			&models.ClaimItem{},
			&models.ClaimMetadata{},
			&models.ClaimInfoRequest{},
			&models.ClaimCoveragePeriod{},
			&models.ClaimTimeline{},
		}
		for _, child := range children {
			if err := tx.Where("claim_id = ?", claimID).Delete(child).Error; err != nil {
				return workflow.StorageFailure(err)
			}
		}

		if err := tx.Delete(&models.Claim{}, "id = ?", claimID).Error; err != nil {
			return workflow.StorageFailure(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.MutationClaimDeleted, cache.Target{ClaimID: claimID, Actor: actor.ID})

	s.log.WithFields(logrus.Fields{
		"claim_id":  claimID,
		"actor_id":  actor.ID,
		"documents": len(documents),
	}).Info("Draft claim deleted")

	return documents, nil
}

func buildItems(inputs []ClaimItemInput) []models.ClaimItem {
	items := make([]models.ClaimItem, 0, len(inputs))
	for _, in := range inputs {
		qty := in.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, models.ClaimItem{
			Description: in.Description,
			Quantity:    qty,
			UnitAmount:  in.UnitAmount,
			Amount:      float64(qty) * in.UnitAmount,
		})
	}
	return items
}

// totalFor prefers an explicit amount and falls back to the item sum.
func totalFor(explicit *float64, items []models.ClaimItem) float64 {
	if explicit != nil {
		return *explicit
	}
	var total float64
	for _, it := range items {
		total += it.Amount
	}
	return total
}

func replaceItems(tx *gorm.DB, claimID uuid.UUID, items []models.ClaimItem) error {
	if err := tx.Where("claim_id = ?", claimID).Delete(&models.ClaimItem{}).Error; err != nil {
		return workflow.StorageFailure(err)
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ClaimID = claimID
	}
	if err := tx.Create(&items).Error; err != nil {
		return workflow.StorageFailure(err)
	}
	return nil
}

func upsertMetadata(tx *gorm.DB, claimID uuid.UUID, in *ClaimMetadataInput) error {
	if in.AdmissionDate != nil && in.DischargeDate != nil && in.DischargeDate.Before(*in.AdmissionDate) {
		return workflow.Errorf(workflow.KindInvalidInput, "discharge_date is before admission_date")
	}

	var meta models.ClaimMetadata
	err := tx.Where("claim_id = ?", claimID).Limit(1).Find(&meta).Error
	if err != nil {
		return workflow.StorageFailure(err)
	}

	meta.ClaimID = claimID
	meta.AdmissionDate = in.AdmissionDate
	meta.DischargeDate = in.DischargeDate
	meta.DiagnosisCode = in.DiagnosisCode
	meta.TreatmentType = in.TreatmentType
	meta.RoomClass = in.RoomClass
	meta.Extra = in.Extra

	if err := tx.Save(&meta).Error; err != nil {
		return workflow.StorageFailure(err)
	}
	return nil
}
