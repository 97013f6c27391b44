// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/utils"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

const actorKey = "actor"

// AuthRequired resolves the bearer token into the acting identity. Tokens are
// issued elsewhere; the claims inside are trusted as given.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, "Authorization header required")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.UnauthorizedResponse(c, "Invalid authorization header")
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			utils.UnauthorizedResponse(c, "Invalid or expired token")
			c.Abort()
			return
		}

		actor, err := actorFromClaims(claims)
		if err != nil {
			utils.UnauthorizedResponse(c, "Token does not carry a valid identity")
			c.Abort()
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFromClaims(claims *utils.JWTClaims) (workflow.Actor, error) {
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return workflow.Actor{}, err
	}

	role := models.Role(claims.Role)
	if !role.Valid() {
		return workflow.Actor{}, workflow.Errorf(workflow.KindUnauthorized, "unknown role %q", claims.Role)
	}

	agencyID, err := utils.ParseOptionalUUID(claims.AgencyID)
	if err != nil {
		return workflow.Actor{}, err
	}
	hospitalID, err := utils.ParseOptionalUUID(claims.HospitalID)
	if err != nil {
		return workflow.Actor{}, err
	}

	return workflow.Actor{
		ID:         id,
		Role:       role,
		AgencyID:   agencyID,
		HospitalID: hospitalID,
	}, nil
}

// RequireRoles rejects actors outside the listed roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		utils.ForbiddenResponse(c, "")
		c.Abort()
	}
}

func GetActor(c *gin.Context) (workflow.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return workflow.Actor{}, false
	}
	actor, ok := v.(workflow.Actor)
	return actor, ok
}
