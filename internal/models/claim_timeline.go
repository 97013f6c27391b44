// internal/models/claim_timeline.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClaimTimeline rows are append-only.
type ClaimTimeline struct {
	ID        uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	ClaimID   uuid.UUID     `json:"claim_id" gorm:"type:uuid;not null;index"`
	EventType TimelineEvent `json:"event_type" gorm:"type:varchar(40);not null"`
	Action    string        `json:"action,omitempty" gorm:"type:varchar(40)"`
	Status    ClaimStatus   `json:"status" gorm:"type:varchar(20);not null"`
	Stage     ClaimStage    `json:"stage" gorm:"type:varchar(30);not null"`
	ActorID   uuid.UUID     `json:"actor_id" gorm:"type:uuid;not null"`
	ActorRole Role          `json:"actor_role" gorm:"type:varchar(30);not null"`
	Note      string        `json:"note,omitempty" gorm:"type:text"`
	Payload   JSONB         `json:"payload,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time     `json:"created_at" gorm:"index"`
}

func (ClaimTimeline) TableName() string {
	return "claim_timeline"
}

func (t *ClaimTimeline) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Timeline rows are never rewritten.
func (t *ClaimTimeline) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrNotImplemented
}
