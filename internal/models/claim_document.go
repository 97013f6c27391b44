// internal/models/claim_document.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClaimDocument is unique per (claim_id, doc_type).
type ClaimDocument struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	ClaimID     uuid.UUID    `json:"claim_id" gorm:"type:uuid;not null;uniqueIndex:idx_claim_documents_claim_type,priority:1"`
	DocType     DocumentType `json:"doc_type" gorm:"type:varchar(32);not null;uniqueIndex:idx_claim_documents_claim_type,priority:2"`
	FileName    string       `json:"file_name" gorm:"type:varchar(255);not null"`
	StorageKey  string       `json:"storage_key" gorm:"type:varchar(512);not null"`
	FileURL     string       `json:"file_url" gorm:"type:varchar(1024)"`
	ContentType string       `json:"content_type" gorm:"type:varchar(128)"`
	SizeBytes   int64        `json:"size_bytes"`
	Checksum    string       `json:"checksum" gorm:"type:varchar(64)"`
	UploadedBy  uuid.UUID    `json:"uploaded_by" gorm:"type:uuid;not null"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (d *ClaimDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
