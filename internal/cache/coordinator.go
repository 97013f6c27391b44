// internal/cache/coordinator.go
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/claimdesk-backend/internal/models"
)

type Mutation string

const (
	MutationClaimCreated       Mutation = "claim_created"
	MutationClaimUpdated       Mutation = "claim_updated"
	MutationClaimDeleted       Mutation = "claim_deleted"
	MutationClaimTransitioned  Mutation = "claim_transitioned"
	MutationDocumentChanged    Mutation = "document_changed"
	MutationInfoRequestChanged Mutation = "info_request_changed"
	MutationCoverageChanged    Mutation = "coverage_changed"
)

// Target identifies what a mutation touched and who made it.
type Target struct {
	ClaimID uuid.UUID
	Actor   uuid.UUID
}

// Pattern templates. {claim} and {actor} are substituted per mutation.
const (
	patternOwnLists         = "claims:list:*:{actor}:*"
	patternOwnDetail        = "claims:detail:{claim}:viewer:{actor}"
	patternClaimDetails     = "claims:detail:{claim}:*"
	patternAgentLists       = "claims:list:agent:*"
	patternAgentMgrLists    = "claims:list:agent_manager:*"
	patternHospitalLists    = "claims:list:hospital_admin:*"
	patternAdminAgencyLists = "claims:list:admin_agency:*"
	patternInsurerLists     = "claims:list:insurance_admin:*"
	patternSuperAdminLists  = "claims:list:super_admin:*"
	patternTimeline         = "claims:timeline:{claim}:*"
	patternDocuments        = "claims:documents:{claim}:*"
	patternInfoRequests     = "claims:info-requests:{claim}:*"
)

var counterpartLists = []string{
	patternAgentLists,
	patternAgentMgrLists,
	patternHospitalLists,
	patternAdminAgencyLists,
	patternInsurerLists,
	patternSuperAdminLists,
}

func with(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, extra...)
	return append(out, base...)
}

// invalidationPlan lists every view a mutation can make stale. Add the new key
// pattern here whenever a cached read view is introduced.
var invalidationPlan = map[Mutation][]string{
	MutationClaimCreated: with(counterpartLists, patternOwnLists),
	MutationClaimUpdated: with(counterpartLists,
		patternOwnLists, patternOwnDetail, patternClaimDetails, patternTimeline),
	MutationClaimDeleted: with(counterpartLists,
		patternOwnLists, patternOwnDetail, patternClaimDetails, patternTimeline,
		patternDocuments, patternInfoRequests),
	MutationClaimTransitioned: with(counterpartLists,
		patternOwnLists, patternOwnDetail, patternClaimDetails, patternTimeline),
	MutationDocumentChanged: with(counterpartLists,
		patternOwnDetail, patternClaimDetails, patternDocuments, patternTimeline),
	MutationInfoRequestChanged: with(counterpartLists,
		patternOwnLists, patternOwnDetail, patternClaimDetails, patternInfoRequests, patternTimeline),
	MutationCoverageChanged: {
		patternOwnDetail, patternClaimDetails, patternTimeline,
	},
}

// Coordinator owns cached read views and their invalidation. Backend failures are
// logged and never returned.
type Coordinator struct {
	store Store
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewCoordinator(store Store, ttl time.Duration, log logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		store: store,
		ttl:   ttl,
		log:   log.WithField("component", "cache"),
	}
}

func (c *Coordinator) TTL() time.Duration {
	return c.ttl
}

// Patterns expands the plan for a mutation into concrete keys and patterns.
func Patterns(m Mutation, t Target) []string {
	r := strings.NewReplacer("{claim}", t.ClaimID.String(), "{actor}", t.Actor.String())
	templates := invalidationPlan[m]
	out := make([]string, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, r.Replace(tpl))
	}
	return out
}

// Invalidate runs after a mutation commits.
func (c *Coordinator) Invalidate(ctx context.Context, m Mutation, t Target) {
	for _, p := range Patterns(m, t) {
		var err error
		if strings.ContainsAny(p, "*?") {
			err = c.store.DeleteByPattern(ctx, p)
		} else {
			err = c.store.Delete(ctx, p)
		}
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"mutation": m,
				"pattern":  p,
				"claim_id": t.ClaimID,
			}).Warn("Cache invalidation failed")
		}
	}
}

// Remember serves key from the cache or fills it from load.
func Remember[T any](ctx context.Context, c *Coordinator, key string, load func() (T, error)) (T, error) {
	var out T

	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache read failed")
	} else if found {
		if err := json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
		c.log.WithField("key", key).Warn("Discarding undecodable cache entry")
	}

	out, err = load()
	if err != nil {
		return out, err
	}

	raw, err = json.Marshal(out)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache encode failed")
		return out, nil
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
	return out, nil
}

// ViewerLists matches every cached list page of one viewer.
func ViewerLists(role models.Role, viewer uuid.UUID) string {
	return ListKey(role, viewer, "*")
}
