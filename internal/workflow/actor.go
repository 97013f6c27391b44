// internal/workflow/actor.go
package workflow

import (
	"github.com/google/uuid"

	"github.com/javajoker/claimdesk-backend/internal/models"
)

// Actor is the identity resolved by the authorization provider. It is trusted as given.
type Actor struct {
	ID         uuid.UUID
	Role       models.Role
	AgencyID   *uuid.UUID
	HospitalID *uuid.UUID
}

func sameID(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}

// CanView reports whether the claim falls inside the actor's tenant scope.
// Callers return NotFound when it does not, so foreign claims are indistinguishable
// from missing ones.
func CanView(actor Actor, claim *models.Claim) bool {
	switch actor.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleAgent:
		return claim.IsOwnedBy(actor.ID)
	case models.RoleAgentManager, models.RoleAdminAgency, models.RoleInsuranceAdmin:
		return sameID(actor.AgencyID, claim.AgencyID)
	case models.RoleHospitalAdmin:
		return sameID(actor.HospitalID, claim.HospitalID)
	default:
		return false
	}
}

// CanManageDraft reports whether the actor may edit, delete or submit the claim.
func CanManageDraft(actor Actor, claim *models.Claim) bool {
	switch actor.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleAgentManager:
		return sameID(actor.AgencyID, claim.AgencyID)
	default:
		return claim.CreatedBy == actor.ID
	}
}

// IsClaimHospital reports whether the actor administers the claim's hospital.
func IsClaimHospital(actor Actor, claim *models.Claim) bool {
	return actor.Role == models.RoleHospitalAdmin && sameID(actor.HospitalID, claim.HospitalID)
}
