// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields. Rows are hard-deleted, so there is no DeletedAt.
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported JSONB source %T", value)
	}
}

// Enums
type Role string

const (
	RoleAgent          Role = "agent"
	RoleAgentManager   Role = "agent_manager"
	RoleHospitalAdmin  Role = "hospital_admin"
	RoleAdminAgency    Role = "admin_agency"
	RoleInsuranceAdmin Role = "insurance_admin"
	RoleSuperAdmin     Role = "super_admin"
	RoleDeveloper      Role = "developer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleAgentManager, RoleHospitalAdmin, RoleAdminAgency,
		RoleInsuranceAdmin, RoleSuperAdmin, RoleDeveloper:
		return true
	}
	return false
}

// IsAgencySide covers the roles that review and settle claims.
func (r Role) IsAgencySide() bool {
	return r == RoleAdminAgency || r == RoleInsuranceAdmin || r == RoleSuperAdmin
}

type ClaimStatus string

const (
	ClaimStatusDraft         ClaimStatus = "DRAFT"
	ClaimStatusSubmitted     ClaimStatus = "SUBMITTED"
	ClaimStatusInProgress    ClaimStatus = "IN_PROGRESS"
	ClaimStatusReview        ClaimStatus = "REVIEW"
	ClaimStatusInfoRequested ClaimStatus = "INFO_REQUESTED"
	ClaimStatusInfoSubmitted ClaimStatus = "INFO_SUBMITTED"
	ClaimStatusApproved      ClaimStatus = "APPROVED"
	ClaimStatusRejected      ClaimStatus = "REJECTED"
	ClaimStatusPaid          ClaimStatus = "PAID"
)

// Terminal statuses accept no further documents or info requests.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimStatusApproved || s == ClaimStatusRejected || s == ClaimStatusPaid
}

type ClaimStage string

const (
	ClaimStageDraftAgent        ClaimStage = "DRAFT_AGENT"
	ClaimStageDraftHospital     ClaimStage = "DRAFT_HOSPITAL"
	ClaimStagePendingHospital   ClaimStage = "PENDING_HOSPITAL"
	ClaimStagePendingAgent      ClaimStage = "PENDING_AGENT"
	ClaimStageSubmittedToAgency ClaimStage = "SUBMITTED_TO_AGENCY"
	ClaimStageLogIssued         ClaimStage = "LOG_ISSUED"
	ClaimStageLogSentToHospital ClaimStage = "LOG_SENT_TO_HOSPITAL"
	ClaimStageApproved          ClaimStage = "APPROVED"
	ClaimStageRejected          ClaimStage = "REJECTED"
)

var AllClaimStages = []ClaimStage{
	ClaimStageDraftAgent,
	ClaimStageDraftHospital,
	ClaimStagePendingHospital,
	ClaimStagePendingAgent,
	ClaimStageSubmittedToAgency,
	ClaimStageLogIssued,
	ClaimStageLogSentToHospital,
	ClaimStageApproved,
	ClaimStageRejected,
}

type DocumentType string

const (
	DocumentTypeClaimForm       DocumentType = "CLAIM_FORM"
	DocumentTypeMedicalDocument DocumentType = "MEDICAL_DOCUMENT"
	DocumentTypeInvoice         DocumentType = "INVOICE"
	DocumentTypeSupportingDoc   DocumentType = "SUPPORTING_DOC"
	DocumentTypeOther           DocumentType = "OTHER"
)

// DocumentTypes is the allocation preference order, most specific first.
var DocumentTypes = []DocumentType{
	DocumentTypeClaimForm,
	DocumentTypeMedicalDocument,
	DocumentTypeInvoice,
	DocumentTypeSupportingDoc,
	DocumentTypeOther,
}

func (d DocumentType) Valid() bool {
	for _, t := range DocumentTypes {
		if t == d {
			return true
		}
	}
	return false
}

type InfoRequestStatus string

const (
	InfoRequestStatusPending   InfoRequestStatus = "PENDING"
	InfoRequestStatusCompleted InfoRequestStatus = "COMPLETED"
	// Closed without an answer because the claim was rejected
	InfoRequestStatusCancelled InfoRequestStatus = "CANCELLED"
)

type CoveragePeriodType string

const (
	CoveragePeriodBefore CoveragePeriodType = "BEFORE"
	CoveragePeriodAfter  CoveragePeriodType = "AFTER"
)

type TimelineEvent string

const (
	TimelineEventCreated          TimelineEvent = "CLAIM_CREATED"
	TimelineEventUpdated          TimelineEvent = "CLAIM_UPDATED"
	TimelineEventSubmitted        TimelineEvent = "CLAIM_SUBMITTED"
	TimelineEventStageChanged     TimelineEvent = "STAGE_CHANGED"
	TimelineEventHospitalApproved TimelineEvent = "HOSPITAL_APPROVED"
	TimelineEventHospitalRejected TimelineEvent = "HOSPITAL_REJECTED"
	TimelineEventDocumentUploaded TimelineEvent = "DOCUMENT_UPLOADED"
	TimelineEventDocumentRemoved  TimelineEvent = "DOCUMENT_REMOVED"
	TimelineEventInfoRequested    TimelineEvent = "INFO_REQUESTED"
	TimelineEventInfoSubmitted    TimelineEvent = "INFO_SUBMITTED"
	TimelineEventCoverageUpdated  TimelineEvent = "COVERAGE_UPDATED"
)
