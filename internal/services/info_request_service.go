// internal/services/info_request_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

// InfoRequestService runs the hospital -> claim owner request/response cycle.
type InfoRequestService struct {
	db       *gorm.DB
	timeline *TimelineService
	cache    *cache.Coordinator
	notifier Notifier
	log      logrus.FieldLogger
}

type CreateInfoRequestRequest struct {
	Message    string             `json:"message" validate:"max=2000"`
	FormSchema []models.FormField `json:"form_schema" validate:"required,min=1,max=50,dive"`
}

type CompleteInfoRequestRequest struct {
	ResponseData map[string]interface{} `json:"response_data" validate:"required"`
}

// Statuses from which a hospital may ask for more information.
var infoRequestableStatuses = map[models.ClaimStatus]bool{
	models.ClaimStatusSubmitted:     true,
	models.ClaimStatusInProgress:    true,
	models.ClaimStatusReview:        true,
	models.ClaimStatusInfoSubmitted: true,
}

func NewInfoRequestService(db *gorm.DB, timeline *TimelineService, coordinator *cache.Coordinator, notifier Notifier, log logrus.FieldLogger) *InfoRequestService {
	return &InfoRequestService{
		db:       db,
		timeline: timeline,
		cache:    coordinator,
		notifier: notifier,
		log:      log.WithField("component", "info_requests"),
	}
}

// CreateInfoRequest inserts the request, moves the claim to INFO_REQUESTED and
// records the event in one transaction.
func (s *InfoRequestService) CreateInfoRequest(ctx context.Context, claimID uuid.UUID, actor workflow.Actor, req *CreateInfoRequestRequest) (*models.ClaimInfoRequest, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &workflow.Error{Kind: workflow.KindInvalidInput, Message: "invalid form schema", Err: err}
	}
	schema := append(models.FormSchema(nil), req.FormSchema...)
	if err := validateSchema(schema); err != nil {
		return nil, err
	}

	var request *models.ClaimInfoRequest
	var claim *models.Claim

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var err error
		claim, err = findClaim(tx, claimID, actor, true)
		if err != nil {
			return err
		}

		if !workflow.IsClaimHospital(actor, claim) {
			return workflow.Errorf(workflow.KindForbidden, "only the claim's hospital can request information")
		}

		// One outstanding request per claim
		pending, err := countPendingInfoRequests(tx, claimID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return workflow.ErrInfoRequestAlreadyPending
		}

		if !infoRequestableStatuses[claim.Status] {
			return workflow.Errorf(workflow.KindInvalidStageForAction, "cannot request information while claim is %s", claim.Status)
		}

		request = &models.ClaimInfoRequest{
			ClaimID:         claimID,
			RequestedBy:     actor.ID,
			Status:          models.InfoRequestStatusPending,
			Message:         req.Message,
			FormSchema:      schema,
			RequestedFields: schema.Keys(),
		}
		if err := tx.Create(request).Error; err != nil {
			return workflow.StorageFailure(err)
		}

		from := claim.Status
		claim.Status = models.ClaimStatusInfoRequested
		if err := tx.Save(claim).Error; err != nil {
			return workflow.StorageFailure(err)
		}

		_, err = s.timeline.Append(tx, claim, actor, TimelineEntry{
			Event: models.TimelineEventInfoRequested,
			Note:  req.Message,
			Payload: models.JSONB{
				"request_id":  request.ID,
				"fields":      []string(request.RequestedFields),
				"from_status": from,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.MutationInfoRequestChanged, cache.Target{ClaimID: claimID, Actor: actor.ID})
	if s.notifier != nil {
		s.notifier.NotifyClaimEvent(claim, NoticeInfoRequested, actor)
	}

	return request, nil
}

// CompleteInfoRequest stores the answers, moves the claim to INFO_SUBMITTED and
// records the event in one transaction.
func (s *InfoRequestService) CompleteInfoRequest(ctx context.Context, requestID uuid.UUID, actor workflow.Actor, req *CompleteInfoRequestRequest) (*models.ClaimInfoRequest, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &workflow.Error{Kind: workflow.KindInvalidInput, Message: "response_data is required", Err: err}
	}

	var request models.ClaimInfoRequest
	var claim *models.Claim

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		// Find the request first to learn its claim
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return workflow.ErrNotFound
			}
			return workflow.StorageFailure(err)
		}

		var err error
		claim, err = findClaim(tx, request.ClaimID, actor, true)
		if err != nil {
			return err
		}

		if !claim.IsOwnedBy(actor.ID) && !workflow.CanManageDraft(actor, claim) {
			return workflow.Errorf(workflow.KindForbidden, "only the claim owner can answer information requests")
		}

		// A decided claim is closed to answers
		if claim.Status.Terminal() || claim.Stage == models.ClaimStageApproved || claim.Stage == models.ClaimStageRejected {
			return workflow.Errorf(workflow.KindInvalidStageForAction, "claim is %s/%s, information requests are closed", claim.Status, claim.Stage)
		}

		// Re-read under the claim lock so two answers cannot both win
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			return workflow.StorageFailure(err)
		}
		if request.Status != models.InfoRequestStatusPending {
			return workflow.ErrRequestNotPending
		}

		answers, err := validateResponse(request.FormSchema, req.ResponseData)
		if err != nil {
			return err
		}

		now := time.Now()
		request.Status = models.InfoRequestStatusCompleted
		request.ResponseData = answers
		request.CompletedAt = &now
		request.CompletedBy = &actor.ID
		if err := tx.Save(&request).Error; err != nil {
			return workflow.StorageFailure(err)
		}

		from := claim.Status
		claim.Status = models.ClaimStatusInfoSubmitted
		if err := tx.Save(claim).Error; err != nil {
			return workflow.StorageFailure(err)
		}

		_, err = s.timeline.Append(tx, claim, actor, TimelineEntry{
			Event: models.TimelineEventInfoSubmitted,
			Payload: models.JSONB{
				"request_id":  request.ID,
				"from_status": from,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.MutationInfoRequestChanged, cache.Target{ClaimID: request.ClaimID, Actor: actor.ID})
	if s.notifier != nil {
		s.notifier.NotifyClaimEvent(claim, NoticeInfoSubmitted, actor)
	}

	return &request, nil
}

func (s *InfoRequestService) ListInfoRequests(ctx context.Context, claimID uuid.UUID, actor workflow.Actor) ([]models.ClaimInfoRequest, error) {
	return cache.Remember(ctx, s.cache, cache.InfoRequestsKey(claimID, actor.ID), func() ([]models.ClaimInfoRequest, error) {
		db := s.db.WithContext(ctx)
		if _, err := findClaim(db, claimID, actor, false); err != nil {
			return nil, err
		}

		var requests []models.ClaimInfoRequest
		if err := db.Where("claim_id = ?", claimID).Order("created_at DESC").Find(&requests).Error; err != nil {
			return nil, workflow.StorageFailure(err)
		}
		return requests, nil
	})
}

// validateSchema trims field keys in place and rejects empty or duplicate keys.
func validateSchema(schema models.FormSchema) error {
	seen := make(map[string]bool, len(schema))
	for i := range schema {
		schema[i].Key = strings.TrimSpace(schema[i].Key)
		f := schema[i]
		key := f.Key
		if key == "" {
			return workflow.Errorf(workflow.KindInvalidInput, "form field key is empty")
		}
		if seen[key] {
			return workflow.Errorf(workflow.KindInvalidInput, "duplicate form field %q", key)
		}
		seen[key] = true

		if f.Type == models.FormFieldSelect && len(f.Options) == 0 {
			return workflow.Errorf(workflow.KindInvalidInput, "select field %q has no options", key)
		}
	}
	return nil
}

// validateResponse checks answers against the request's schema and returns them
// normalized for storage.
func validateResponse(schema models.FormSchema, data map[string]interface{}) (models.JSONB, error) {
	known := make(map[string]models.FormField, len(schema))
	for _, f := range schema {
		known[f.Key] = f
	}

	for key := range data {
		if _, ok := known[key]; !ok {
			return nil, workflow.Errorf(workflow.KindInvalidInput, "unexpected field %q", key)
		}
	}

	answers := models.JSONB{}
	for _, f := range schema {
		value, present := data[f.Key]
		if !present || value == nil || value == "" {
			if f.Required {
				return nil, workflow.Errorf(workflow.KindInvalidInput, "field %q is required", f.Key)
			}
			continue
		}

		if err := checkFieldValue(f, value); err != nil {
			return nil, workflow.Errorf(workflow.KindInvalidInput, "field %q: %v", f.Key, err)
		}
		answers[f.Key] = value
	}

	return answers, nil
}

func checkFieldValue(f models.FormField, value interface{}) error {
	switch f.Type {
	case models.FormFieldText:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected text")
		}
	case models.FormFieldNumber:
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("expected a number")
		}
	case models.FormFieldBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected true or false")
		}
	case models.FormFieldDate:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected a date")
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return fmt.Errorf("expected a date as YYYY-MM-DD")
		}
	case models.FormFieldSelect:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected one of the options")
		}
		for _, opt := range f.Options {
			if opt == s {
				return nil
			}
		}
		return fmt.Errorf("%q is not one of the options", s)
	}
	return nil
}
