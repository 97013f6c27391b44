// internal/services/workflow_service.go
package services

import (
	"context"
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

// WorkflowService is the only writer of claim status and stage.
type WorkflowService struct {
	db       *gorm.DB
	timeline *TimelineService
	cache    *cache.Coordinator
	notifier Notifier
	log      logrus.FieldLogger
}

type TransitionRequest struct {
	Action           workflow.Action `json:"action" validate:"required,claim_action"`
	Notes            string          `json:"notes" validate:"max=2000"`
	LogNumber        string          `json:"log_number" validate:"max=64"`
	InsurerName      string          `json:"insurer_name" validate:"max=255"`
	InsurerReference string          `json:"insurer_reference" validate:"max=128"`
}

type TransitionResult struct {
	Claim    *models.Claim         `json:"claim"`
	From     workflow.State        `json:"from"`
	To       workflow.State        `json:"to"`
	Timeline *models.ClaimTimeline `json:"timeline"`
}

func NewWorkflowService(db *gorm.DB, timeline *TimelineService, coordinator *cache.Coordinator, notifier Notifier, log logrus.FieldLogger) *WorkflowService {
	return &WorkflowService{
		db:       db,
		timeline: timeline,
		cache:    coordinator,
		notifier: notifier,
		log:      log.WithField("component", "workflow"),
	}
}

// Transition applies one of the stage routing actions.
func (s *WorkflowService) Transition(ctx context.Context, claimID uuid.UUID, actor workflow.Actor, req *TransitionRequest) (*TransitionResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &workflow.Error{Kind: workflow.KindInvalidInput, Message: "invalid transition", Err: err}
	}
	if !workflow.IsStageAction(req.Action) {
		return nil, workflow.Errorf(workflow.KindInvalidInput, "unknown action %q", req.Action)
	}
	return s.apply(ctx, claimID, actor, req)
}

// Submit moves a draft to SUBMITTED once it has at least one document.
func (s *WorkflowService) Submit(ctx context.Context, claimID uuid.UUID, actor workflow.Actor, notes string) (*TransitionResult, error) {
	return s.apply(ctx, claimID, actor, &TransitionRequest{Action: workflow.ActionSubmit, Notes: notes})
}

// HospitalDecision records the hospital's approval or rejection on the status axis.
func (s *WorkflowService) HospitalDecision(ctx context.Context, claimID uuid.UUID, actor workflow.Actor, approve bool, notes string) (*TransitionResult, error) {
	action := workflow.ActionHospitalReject
	if approve {
		action = workflow.ActionHospitalApprove
	}
	return s.apply(ctx, claimID, actor, &TransitionRequest{Action: action, Notes: notes})
}

func (s *WorkflowService) apply(ctx context.Context, claimID uuid.UUID, actor workflow.Actor, req *TransitionRequest) (*TransitionResult, error) {
	result := &TransitionResult{}

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		// Lock the claim row for the rest of the transaction
		claim, err := findClaim(tx, claimID, actor, true)
		if err != nil {
			return err
		}
		warnOnConflict(s.log, claim)

		if err := checkParty(req.Action, actor, claim); err != nil {
			return err
		}

		rule, ok := workflow.RuleFor(req.Action)
		if !ok {
			return workflow.Errorf(workflow.KindInvalidInput, "unknown action %q", req.Action)
		}

		// Gather only the gates the rule looks at
		gates := workflow.Gates{LogVerified: claim.LogVerifiedAt != nil}
		if rule.RequiresDocuments {
			if gates.DocumentCount, err = countDocuments(tx, claim.ID); err != nil {
				return err
			}
		}
		if rule.RequiresNoPendingInfo {
			if gates.PendingInfoRequests, err = countPendingInfoRequests(tx, claim.ID); err != nil {
				return err
			}
		}

		from := stateOf(claim)
		to, rule, err := workflow.Resolve(req.Action, actor.Role, from, gates)
		if err != nil {
			return err
		}

		if req.Action == workflow.ActionIssueLog && strings.TrimSpace(req.LogNumber) == "" {
			return workflow.Errorf(workflow.KindInvalidInput, "log_number is required to issue a letter of guarantee")
		}

		// All checks passed, write
		claim.Status = to.Status
		claim.Stage = to.Stage
		stampSettlement(claim, actor, req, time.Now())

		if err := tx.Save(claim).Error; err != nil {
			return workflow.StorageFailure(err)
		}

		payload := models.JSONB{
			"from_status": from.Status,
			"from_stage":  from.Stage,
		}
		if rule.CancelsPendingInfo {
			cancelled, err := cancelPendingInfoRequests(tx, claim.ID)
			if err != nil {
				return err
			}
			if cancelled > 0 {
				payload["cancelled_info_requests"] = cancelled
			}
		}

		entry, err := s.timeline.Append(tx, claim, actor, TimelineEntry{
			Event:   rule.Event,
			Action:  string(req.Action),
			Note:    req.Notes,
			Payload: payload,
		})
		if err != nil {
			return err
		}

		result.Claim = claim
		result.From = from
		result.To = to
		result.Timeline = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.MutationClaimTransitioned, cache.Target{ClaimID: claimID, Actor: actor.ID})
	if s.notifier != nil {
		s.notifier.NotifyClaimEvent(result.Claim, string(req.Action), actor)
	}

	s.log.WithFields(logrus.Fields{
		"claim_id":    claimID,
		"action":      req.Action,
		"actor_id":    actor.ID,
		"from_status": result.From.Status,
		"from_stage":  result.From.Stage,
		"to_status":   result.To.Status,
		"to_stage":    result.To.Stage,
	}).Info("Claim transitioned")

	return result, nil
}

// cancelPendingInfoRequests closes the outstanding request of a claim that is being rejected.
func cancelPendingInfoRequests(tx *gorm.DB, claimID uuid.UUID) (int64, error) {
	res := tx.Model(&models.ClaimInfoRequest{}).
		Where("claim_id = ? AND status = ?", claimID, models.InfoRequestStatusPending).
		Update("status", models.InfoRequestStatusCancelled)
	if res.Error != nil {
		return 0, workflow.StorageFailure(res.Error)
	}
	return res.RowsAffected, nil
}

// checkParty applies the per-claim relationship on top of the role table.
func checkParty(action workflow.Action, actor workflow.Actor, claim *models.Claim) error {
	switch action {
	case workflow.ActionSubmit:
		if !workflow.CanManageDraft(actor, claim) {
			return workflow.Errorf(workflow.KindForbidden, "only the claim owner can submit it")
		}
	case workflow.ActionSendToAgent, workflow.ActionVerifyLog,
		workflow.ActionHospitalApprove, workflow.ActionHospitalReject:
		if actor.Role == models.RoleHospitalAdmin && !workflow.IsClaimHospital(actor, claim) {
			return workflow.ErrForbidden
		}
	}
	return nil
}

// stampSettlement records the timestamps and references that go with an action.
func stampSettlement(claim *models.Claim, actor workflow.Actor, req *TransitionRequest, now time.Time) {
	switch req.Action {
	case workflow.ActionSubmit:
		claim.SubmittedAt = &now
	case workflow.ActionIssueLog:
		claim.LogNumber = strings.TrimSpace(req.LogNumber)
		claim.LogIssuedAt = &now
		if req.InsurerName != "" {
			claim.InsurerName = req.InsurerName
		}
		if req.InsurerReference != "" {
			claim.InsurerReference = req.InsurerReference
		}
	case workflow.ActionSendLogToHospital:
		claim.LogSentToHospitalAt = &now
	case workflow.ActionVerifyLog:
		claim.LogVerifiedAt = &now
	case workflow.ActionMarkPaid:
		claim.PaidAt = &now
	case workflow.ActionApprove, workflow.ActionHospitalApprove:
		claim.DecidedAt = &now
		claim.DecidedBy = &actor.ID
		claim.RejectionReason = ""
	case workflow.ActionReject, workflow.ActionHospitalReject:
		claim.DecidedAt = &now
		claim.DecidedBy = &actor.ID
		claim.RejectionReason = req.Notes
	}
}
