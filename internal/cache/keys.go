// internal/cache/keys.go
package cache

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/javajoker/claimdesk-backend/internal/models"
)

// Key layout:
//   claims:list:<role>:<viewer>:<query>
//   claims:detail:<claim>:viewer:<viewer>
//   claims:timeline:<claim>:viewer:<viewer>
//   claims:documents:<claim>:viewer:<viewer>
//   claims:info-requests:<claim>:viewer:<viewer>

func ListKey(role models.Role, viewer uuid.UUID, query string) string {
	if query == "" {
		query = "all"
	}
	return fmt.Sprintf("claims:list:%s:%s:%s", role, viewer, query)
}

func DetailKey(claimID, viewer uuid.UUID) string {
	return fmt.Sprintf("claims:detail:%s:viewer:%s", claimID, viewer)
}

func TimelineKey(claimID, viewer uuid.UUID) string {
	return fmt.Sprintf("claims:timeline:%s:viewer:%s", claimID, viewer)
}

func DocumentsKey(claimID, viewer uuid.UUID) string {
	return fmt.Sprintf("claims:documents:%s:viewer:%s", claimID, viewer)
}

func InfoRequestsKey(claimID, viewer uuid.UUID) string {
	return fmt.Sprintf("claims:info-requests:%s:viewer:%s", claimID, viewer)
}

// QueryKey flattens list filters into a key segment.
func QueryKey(parts ...string) string {
	for i, p := range parts {
		if p == "" {
			parts[i] = "-"
		}
	}
	return strings.Join(parts, ".")
}
