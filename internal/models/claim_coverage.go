// internal/models/claim_coverage.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxEligibleCoverageDays is the longest window still eligible for coverage.
const MaxEligibleCoverageDays = 30

type ClaimCoveragePeriod struct {
	BaseModel
	ClaimID    uuid.UUID          `json:"claim_id" gorm:"type:uuid;not null;uniqueIndex:idx_claim_coverage_claim_type,priority:1"`
	PeriodType CoveragePeriodType `json:"period_type" gorm:"type:varchar(10);not null;uniqueIndex:idx_claim_coverage_claim_type,priority:2"`
	StartDate  time.Time          `json:"start_date" gorm:"type:date;not null"`
	EndDate    time.Time          `json:"end_date" gorm:"type:date;not null"`
	Days       int                `json:"days"`
	IsEligible bool               `json:"is_eligible"`
}

// CoverageDays counts whole calendar days between start and end.
func CoverageDays(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}

// CoverageEligible reports whether a window of the given length qualifies.
func CoverageEligible(days int) bool {
	return days <= MaxEligibleCoverageDays
}
