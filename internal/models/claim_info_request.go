// internal/models/claim_info_request.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type FormFieldType string

const (
	FormFieldText    FormFieldType = "text"
	FormFieldNumber  FormFieldType = "number"
	FormFieldDate    FormFieldType = "date"
	FormFieldBoolean FormFieldType = "boolean"
	FormFieldSelect  FormFieldType = "select"
)

type FormField struct {
	Key      string        `json:"key" validate:"required,max=64"`
	Label    string        `json:"label" validate:"required,max=255"`
	Type     FormFieldType `json:"type" validate:"required,field_type"`
	Required bool          `json:"required"`
	Options  []string      `json:"options,omitempty"`
}

// FormSchema is the ordered list of fields a hospital asks the claim owner to fill in.
type FormSchema []FormField

func (f FormSchema) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *FormSchema) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("unsupported form schema source %T", value)
	}
}

func (f FormSchema) Keys() FieldKeys {
	keys := make(FieldKeys, 0, len(f))
	for _, field := range f {
		keys = append(keys, field.Key)
	}
	return keys
}

// FieldKeys is stored as a native text array on PostgreSQL.
type FieldKeys []string

func (FieldKeys) GormDataType() string {
	return "text"
}

func (FieldKeys) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (k FieldKeys) Value() (driver.Value, error) {
	return pq.StringArray(k).Value()
}

func (k *FieldKeys) Scan(value interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(value); err != nil {
		return err
	}
	*k = FieldKeys(arr)
	return nil
}

type ClaimInfoRequest struct {
	BaseModel
	ClaimID         uuid.UUID         `json:"claim_id" gorm:"type:uuid;not null;index"`
	RequestedBy     uuid.UUID         `json:"requested_by" gorm:"type:uuid;not null"`
	Status          InfoRequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Message         string            `json:"message,omitempty" gorm:"type:text"`
	FormSchema      FormSchema        `json:"form_schema" gorm:"type:jsonb;not null"`
	RequestedFields FieldKeys         `json:"requested_fields"`
	ResponseData    JSONB             `json:"response_data,omitempty" gorm:"type:jsonb"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CompletedBy     *uuid.UUID        `json:"completed_by,omitempty" gorm:"type:uuid"`
}
