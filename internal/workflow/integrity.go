// internal/workflow/integrity.go
package workflow

import (
	"fmt"

	"github.com/javajoker/claimdesk-backend/internal/models"
)

// CheckIntegrity flags (status, stage) combinations that no sequence of transitions
// should produce. The two axes are validated independently, so a conflict here
// means the row was written outside the workflow.
func CheckIntegrity(s State) error {
	switch s.Stage {
	case models.ClaimStageApproved:
		if s.Status != models.ClaimStatusApproved && s.Status != models.ClaimStatusPaid {
			return fmt.Errorf("stage %s with status %s", s.Stage, s.Status)
		}
	case models.ClaimStageRejected:
		if s.Status != models.ClaimStatusRejected {
			return fmt.Errorf("stage %s with status %s", s.Stage, s.Status)
		}
	}

	if s.Status == models.ClaimStatusDraft &&
		s.Stage != models.ClaimStageDraftAgent && s.Stage != models.ClaimStageDraftHospital {
		return fmt.Errorf("status %s with stage %s", s.Status, s.Stage)
	}

	return nil
}
