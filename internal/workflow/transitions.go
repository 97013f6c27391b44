// internal/workflow/transitions.go
package workflow

import (
	"github.com/javajoker/claimdesk-backend/internal/models"
)

type Action string

const (
	// Stage routing
	ActionSendToHospital    Action = "SEND_TO_HOSPITAL"
	ActionSendToAgent       Action = "SEND_TO_AGENT"
	ActionSubmitToAgency    Action = "SUBMIT_TO_AGENCY"
	ActionApprove           Action = "APPROVE"
	ActionReject            Action = "REJECT"
	ActionIssueLog          Action = "ISSUE_LOG"
	ActionSendLogToHospital Action = "SEND_LOG_TO_HOSPITAL"
	ActionVerifyLog         Action = "VERIFY_LOG"
	ActionMarkPaid          Action = "MARK_PAID"

	// Status only
	ActionSubmit          Action = "SUBMIT"
	ActionHospitalApprove Action = "HOSPITAL_APPROVE"
	ActionHospitalReject  Action = "HOSPITAL_REJECT"
)

// State is the (status, stage) pair a claim occupies.
type State struct {
	Status models.ClaimStatus `json:"status"`
	Stage  models.ClaimStage  `json:"stage"`
}

// Gates are the side-record facts a rule may depend on.
type Gates struct {
	DocumentCount       int64
	PendingInfoRequests int64
	LogVerified         bool
}

// Rule is one row of the transition table. Empty target fields leave that axis unchanged,
// nil source lists accept any value.
type Rule struct {
	Action          Action
	Roles           []models.Role
	FromStages      []models.ClaimStage
	FromStatuses    []models.ClaimStatus
	ExcludeStatuses []models.ClaimStatus
	ToStage         models.ClaimStage
	ToStatus        models.ClaimStatus

	RequiresDocuments     bool
	RequiresNoPendingInfo bool
	RequiresUnverifiedLog bool
	// Pending info requests are cancelled together with the change
	CancelsPendingInfo bool

	Event models.TimelineEvent
}

var (
	agentRoles  = []models.Role{models.RoleAgent, models.RoleAgentManager}
	agencyRoles = []models.Role{models.RoleAdminAgency, models.RoleInsuranceAdmin, models.RoleSuperAdmin}

	// Stages an agency reviewer may decide from.
	reviewableStages = []models.ClaimStage{
		models.ClaimStageSubmittedToAgency,
		models.ClaimStageLogIssued,
		models.ClaimStageLogSentToHospital,
	}

	deadStatuses = []models.ClaimStatus{models.ClaimStatusRejected, models.ClaimStatusPaid}
)

var rules = map[Action]Rule{
	ActionSendToHospital: {
		Roles:           agentRoles,
		FromStages:      []models.ClaimStage{models.ClaimStageDraftAgent, models.ClaimStagePendingAgent},
		ExcludeStatuses: deadStatuses,
		ToStage:         models.ClaimStagePendingHospital,
		ToStatus:        models.ClaimStatusInProgress,
		Event:           models.TimelineEventStageChanged,
	},
	ActionSendToAgent: {
		Roles:           []models.Role{models.RoleHospitalAdmin},
		FromStages:      []models.ClaimStage{models.ClaimStagePendingHospital, models.ClaimStageDraftHospital},
		ExcludeStatuses: deadStatuses,
		ToStage:         models.ClaimStagePendingAgent,
		ToStatus:        models.ClaimStatusInProgress,
		Event:           models.TimelineEventStageChanged,
	},
	ActionSubmitToAgency: {
		Roles:      []models.Role{models.RoleAgent},
		FromStages: []models.ClaimStage{models.ClaimStagePendingAgent, models.ClaimStageDraftAgent},
		// A draft has to go through the status-only submit first.
		ExcludeStatuses: append([]models.ClaimStatus{models.ClaimStatusDraft}, deadStatuses...),
		ToStage:         models.ClaimStageSubmittedToAgency,
		ToStatus:        models.ClaimStatusReview,
		Event:           models.TimelineEventStageChanged,
	},
	ActionApprove: {
		Roles:                 agencyRoles,
		FromStages:            reviewableStages,
		RequiresNoPendingInfo: true,
		ToStage:               models.ClaimStageApproved,
		ToStatus:              models.ClaimStatusApproved,
		Event:                 models.TimelineEventStageChanged,
	},
	ActionReject: {
		Roles:              agencyRoles,
		FromStages:         reviewableStages,
		CancelsPendingInfo: true,
		ToStage:            models.ClaimStageRejected,
		ToStatus:           models.ClaimStatusRejected,
		Event:              models.TimelineEventStageChanged,
	},
	ActionIssueLog: {
		Roles:           agencyRoles,
		FromStages:      []models.ClaimStage{models.ClaimStageSubmittedToAgency},
		ExcludeStatuses: deadStatuses,
		ToStage:         models.ClaimStageLogIssued,
		ToStatus:        models.ClaimStatusReview,
		Event:           models.TimelineEventStageChanged,
	},
	ActionSendLogToHospital: {
		Roles:           agencyRoles,
		FromStages:      []models.ClaimStage{models.ClaimStageLogIssued},
		ExcludeStatuses: deadStatuses,
		ToStage:         models.ClaimStageLogSentToHospital,
		Event:           models.TimelineEventStageChanged,
	},
	ActionVerifyLog: {
		Roles:                 []models.Role{models.RoleHospitalAdmin},
		FromStages:            []models.ClaimStage{models.ClaimStageLogSentToHospital},
		ExcludeStatuses:       deadStatuses,
		RequiresUnverifiedLog: true,
		Event:                 models.TimelineEventStageChanged,
	},
	ActionMarkPaid: {
		Roles:        agencyRoles,
		FromStages:   []models.ClaimStage{models.ClaimStageApproved},
		FromStatuses: []models.ClaimStatus{models.ClaimStatusApproved},
		ToStatus:     models.ClaimStatusPaid,
		Event:        models.TimelineEventStageChanged,
	},
	ActionSubmit: {
		FromStatuses:      []models.ClaimStatus{models.ClaimStatusDraft},
		RequiresDocuments: true,
		ToStatus:          models.ClaimStatusSubmitted,
		Event:             models.TimelineEventSubmitted,
	},
	ActionHospitalApprove: {
		Roles:                 []models.Role{models.RoleHospitalAdmin},
		FromStatuses:          []models.ClaimStatus{models.ClaimStatusSubmitted, models.ClaimStatusInfoSubmitted},
		RequiresDocuments:     true,
		RequiresNoPendingInfo: true,
		ToStatus:              models.ClaimStatusApproved,
		Event:                 models.TimelineEventHospitalApproved,
	},
	ActionHospitalReject: {
		Roles:              []models.Role{models.RoleHospitalAdmin},
		ExcludeStatuses:    []models.ClaimStatus{models.ClaimStatusApproved, models.ClaimStatusRejected, models.ClaimStatusPaid},
		CancelsPendingInfo: true,
		ToStatus:           models.ClaimStatusRejected,
		Event:              models.TimelineEventHospitalRejected,
	},
}

func init() {
	for action, rule := range rules {
		rule.Action = action
		rules[action] = rule
	}
}

// RuleFor returns the table row for an action.
func RuleFor(action Action) (Rule, bool) {
	rule, ok := rules[action]
	return rule, ok
}

// StageActions are the actions accepted by the generic transition endpoint.
var StageActions = []Action{
	ActionSendToHospital,
	ActionSendToAgent,
	ActionSubmitToAgency,
	ActionApprove,
	ActionReject,
	ActionIssueLog,
	ActionSendLogToHospital,
	ActionVerifyLog,
	ActionMarkPaid,
}

// IsStageAction reports whether the action moves the claim between parties.
func IsStageAction(action Action) bool {
	for _, a := range StageActions {
		if a == action {
			return true
		}
	}
	return false
}

func (r Rule) AllowsRole(role models.Role) bool {
	if r.Roles == nil {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

func (r Rule) acceptsStage(stage models.ClaimStage) bool {
	if r.FromStages == nil {
		return true
	}
	for _, s := range r.FromStages {
		if s == stage {
			return true
		}
	}
	return false
}

func (r Rule) acceptsStatus(status models.ClaimStatus) bool {
	for _, s := range r.ExcludeStatuses {
		if s == status {
			return false
		}
	}
	if r.FromStatuses == nil {
		return true
	}
	for _, s := range r.FromStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Apply returns the state the rule leads to from current.
func (r Rule) Apply(current State) State {
	next := current
	if r.ToStage != "" {
		next.Stage = r.ToStage
	}
	if r.ToStatus != "" {
		next.Status = r.ToStatus
	}
	return next
}

// Resolve validates an action against the table and returns the resulting state.
// Checks run in a fixed order: action, role, stage, status, documents, info requests.
func Resolve(action Action, role models.Role, current State, gates Gates) (State, Rule, error) {
	rule, ok := rules[action]
	if !ok {
		return current, Rule{}, Errorf(KindInvalidInput, "unknown action %q", action)
	}

	if !rule.AllowsRole(role) {
		return current, rule, Errorf(KindForbidden, "role %s may not perform %s", role, action)
	}

	if !rule.acceptsStage(current.Stage) {
		return current, rule, Errorf(KindInvalidStageForAction, "%s is not allowed from stage %s", action, current.Stage)
	}

	if !rule.acceptsStatus(current.Status) {
		return current, rule, Errorf(KindInvalidStageForAction, "%s is not allowed while status is %s", action, current.Status)
	}

	if rule.RequiresUnverifiedLog && gates.LogVerified {
		return current, rule, Errorf(KindInvalidStageForAction, "letter of guarantee already verified")
	}

	if rule.RequiresDocuments && gates.DocumentCount < 1 {
		return current, rule, ErrMissingDocuments
	}

	if rule.RequiresNoPendingInfo && gates.PendingInfoRequests > 0 {
		return current, rule, ErrInfoRequestPending
	}

	return rule.Apply(current), rule, nil
}
