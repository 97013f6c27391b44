// internal/models/claim.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Claim struct {
	BaseModel
	ClaimNumber     string      `json:"claim_number" gorm:"type:varchar(32);uniqueIndex;not null"`
	Status          ClaimStatus `json:"status" gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	Stage           ClaimStage  `json:"stage" gorm:"type:varchar(30);not null;default:'DRAFT_AGENT';index"`
	TotalAmount     float64     `json:"total_amount" gorm:"type:decimal(15,2);not null;default:0"`
	Notes           string      `json:"notes,omitempty" gorm:"type:text"`
	ClaimDate       time.Time   `json:"claim_date" gorm:"not null"`
	CreatedBy       uuid.UUID   `json:"created_by" gorm:"type:uuid;not null;index"`
	AssignedAgentID *uuid.UUID  `json:"assigned_agent_id,omitempty" gorm:"type:uuid;index"`
	AgencyID        *uuid.UUID  `json:"agency_id,omitempty" gorm:"type:uuid;index"`
	HospitalID      *uuid.UUID  `json:"hospital_id,omitempty" gorm:"type:uuid;index"`
	ClientID        *uuid.UUID  `json:"client_id,omitempty" gorm:"type:uuid;index"`
	PolicyID        *uuid.UUID  `json:"policy_id,omitempty" gorm:"type:uuid"`
	DiseaseID       *uuid.UUID  `json:"disease_id,omitempty" gorm:"type:uuid"`
	SubmittedAt     *time.Time  `json:"submitted_at,omitempty"`

	// Settlement, populated from the LOG_* stages onwards
	LogNumber           string     `json:"log_number,omitempty" gorm:"type:varchar(64);index"`
	LogIssuedAt         *time.Time `json:"log_issued_at,omitempty"`
	LogSentToHospitalAt *time.Time `json:"log_sent_to_hospital_at,omitempty"`
	LogVerifiedAt       *time.Time `json:"log_verified_at,omitempty"`
	InsurerName         string     `json:"insurer_name,omitempty" gorm:"type:varchar(255)"`
	InsurerReference    string     `json:"insurer_reference,omitempty" gorm:"type:varchar(128)"`

	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	DecidedBy       *uuid.UUID `json:"decided_by,omitempty" gorm:"type:uuid"`
	RejectionReason string     `json:"rejection_reason,omitempty" gorm:"type:text"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`

	// Relationships
	Documents       []ClaimDocument       `json:"documents,omitempty" gorm:"foreignKey:ClaimID"`
	Items           []ClaimItem           `json:"items,omitempty" gorm:"foreignKey:ClaimID"`
	CoveragePeriods []ClaimCoveragePeriod `json:"coverage_periods,omitempty" gorm:"foreignKey:ClaimID"`
	Metadata        *ClaimMetadata        `json:"metadata,omitempty" gorm:"foreignKey:ClaimID"`
}

// IsOwnedBy reports whether the actor created the claim or is its assigned agent.
func (c *Claim) IsOwnedBy(actorID uuid.UUID) bool {
	if c.CreatedBy == actorID {
		return true
	}
	return c.AssignedAgentID != nil && *c.AssignedAgentID == actorID
}

type ClaimItem struct {
	BaseModel
	ClaimID     uuid.UUID `json:"claim_id" gorm:"type:uuid;not null;index"`
	Description string    `json:"description" gorm:"type:varchar(255);not null"`
	Quantity    int       `json:"quantity" gorm:"not null;default:1"`
	UnitAmount  float64   `json:"unit_amount" gorm:"type:decimal(15,2);not null"`
	Amount      float64   `json:"amount" gorm:"type:decimal(15,2);not null"`
}

// ClaimMetadata holds the structured admission details attached to a claim.
type ClaimMetadata struct {
	BaseModel
	ClaimID       uuid.UUID  `json:"claim_id" gorm:"type:uuid;not null;uniqueIndex"`
	AdmissionDate *time.Time `json:"admission_date,omitempty" gorm:"type:date"`
	DischargeDate *time.Time `json:"discharge_date,omitempty" gorm:"type:date"`
	DiagnosisCode string     `json:"diagnosis_code,omitempty" gorm:"type:varchar(32)"`
	TreatmentType string     `json:"treatment_type,omitempty" gorm:"type:varchar(64)"`
	RoomClass     string     `json:"room_class,omitempty" gorm:"type:varchar(64)"`
	Extra         JSONB      `json:"extra,omitempty" gorm:"type:jsonb"`
}

func (ClaimMetadata) TableName() string {
	return "claim_metadata"
}
