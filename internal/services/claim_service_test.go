// internal/services/claim_service_test.go
package services

import (
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/utils"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

func (suite *ServiceTestSuite) TestAgentOpensDraftInAgentStage() {
	claim, err := suite.claims.CreateClaim(suite.ctx, suite.agent, &CreateClaimRequest{
		Items: []ClaimItemInput{
			{Description: "Consultation", Quantity: 1, UnitAmount: 300},
			{Description: "Lab panel", Quantity: 2, UnitAmount: 150},
		},
	})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.ClaimStatusDraft, claim.Status)
	assert.Equal(suite.T(), models.ClaimStageDraftAgent, claim.Stage)
	assert.Equal(suite.T(), suite.agencyID, *claim.AgencyID)
	assert.Equal(suite.T(), suite.agent.ID, *claim.AssignedAgentID)
	assert.InDelta(suite.T(), 600.0, claim.TotalAmount, 0.001)
	assert.Regexp(suite.T(), `^CLM-\d{8}-[A-Z0-9]{8}$`, claim.ClaimNumber)
	assert.Equal(suite.T(), []models.TimelineEvent{models.TimelineEventCreated}, suite.timelineEvents(claim.ID))
}

func (suite *ServiceTestSuite) TestHospitalOpensDraftInHospitalStage() {
	claim, err := suite.claims.CreateClaim(suite.ctx, suite.hospital, &CreateClaimRequest{
		AgencyID:        &suite.agencyID,
		AssignedAgentID: &suite.agent.ID,
	})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.ClaimStageDraftHospital, claim.Stage)
	assert.Equal(suite.T(), suite.hospitalID, *claim.HospitalID)

	// The assigned agent can see it
	detail, err := suite.claims.GetClaim(suite.ctx, claim.ID, suite.agent)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), claim.ID, detail.Claim.ID)

	_, err = suite.claims.CreateClaim(suite.ctx, suite.hospital, &CreateClaimRequest{})
	suite.requireKind(err, workflow.KindInvalidInput)
}

func (suite *ServiceTestSuite) TestRolesThatCannotOpenClaims() {
	_, err := suite.claims.CreateClaim(suite.ctx, suite.agencyAdmin, &CreateClaimRequest{})
	suite.requireKind(err, workflow.KindForbidden)

	_, err = suite.claims.CreateClaim(suite.ctx, suite.developer, &CreateClaimRequest{})
	suite.requireKind(err, workflow.KindForbidden)
}

func (suite *ServiceTestSuite) TestEditOnlyWhileDraft() {
	claim := suite.newDraft()
	notes := "Corrected amount"
	amount := 900.0

	updated, err := suite.claims.EditClaim(suite.ctx, claim.ID, suite.agent, &UpdateClaimRequest{
		Notes:       &notes,
		TotalAmount: &amount,
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), notes, updated.Notes)
	assert.InDelta(suite.T(), 900.0, updated.TotalAmount, 0.001)

	_, err = suite.upload(claim.ID, suite.agent, "form.pdf")
	require.NoError(suite.T(), err)
	_, err = suite.workflow.Submit(suite.ctx, claim.ID, suite.agent, "")
	require.NoError(suite.T(), err)

	_, err = suite.claims.EditClaim(suite.ctx, claim.ID, suite.agent, &UpdateClaimRequest{Notes: &notes})
	suite.requireKind(err, workflow.KindClaimNotEditable)

	_, err = suite.claims.DeleteClaim(suite.ctx, claim.ID, suite.agent)
	suite.requireKind(err, workflow.KindClaimNotDeletable)

	assert.Equal(suite.T(), models.ClaimStatusSubmitted, suite.reload(claim.ID).Status)
}

func (suite *ServiceTestSuite) TestEditRequiresOwnership() {
	claim := suite.newDraft()
	notes := "not mine"

	// A peer agent cannot even see the claim
	_, err := suite.claims.EditClaim(suite.ctx, claim.ID, suite.otherAgent, &UpdateClaimRequest{Notes: &notes})
	suite.requireKind(err, workflow.KindNotFound)

	// The agency admin can see it but does not own the draft
	_, err = suite.claims.EditClaim(suite.ctx, claim.ID, suite.agencyAdmin, &UpdateClaimRequest{Notes: &notes})
	suite.requireKind(err, workflow.KindForbidden)

	// A manager in the same agency may
	_, err = suite.claims.EditClaim(suite.ctx, claim.ID, suite.manager, &UpdateClaimRequest{Notes: &notes})
	assert.NoError(suite.T(), err)
}

func (suite *ServiceTestSuite) TestEditReplacesItemsAndMetadata() {
	claim := suite.newDraft()
	items := []ClaimItemInput{{Description: "Room", Quantity: 3, UnitAmount: 100}}

	updated, err := suite.claims.EditClaim(suite.ctx, claim.ID, suite.agent, &UpdateClaimRequest{
		Items:    &items,
		Metadata: &ClaimMetadataInput{DiagnosisCode: "J18.9", RoomClass: "VIP"},
	})
	require.NoError(suite.T(), err)
	assert.InDelta(suite.T(), 300.0, updated.TotalAmount, 0.001)

	detail, err := suite.claims.GetClaim(suite.ctx, claim.ID, suite.agent)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), detail.Claim.Items, 1)
	assert.Equal(suite.T(), 3, detail.Claim.Items[0].Quantity)
	require.NotNil(suite.T(), detail.Claim.Metadata)
	assert.Equal(suite.T(), "J18.9", detail.Claim.Metadata.DiagnosisCode)
}

func (suite *ServiceTestSuite) TestDeleteDraftRemovesEveryRow() {
	claim := suite.newDraft()
	_, err := suite.upload(claim.ID, suite.agent, "form.pdf")
	require.NoError(suite.T(), err)

	docs, err := suite.claims.DeleteClaim(suite.ctx, claim.ID, suite.agent)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), docs, 1)

	suite.documents.PurgeObjects(docs)
	assert.Equal(suite.T(), 0, suite.objects.count())

	var n int64
	suite.db.Model(&models.Claim{}).Where("id = ?", claim.ID).Count(&n)
	assert.Zero(suite.T(), n)
	suite.db.Model(&models.ClaimTimeline{}).Where("claim_id = ?", claim.ID).Count(&n)
	assert.Zero(suite.T(), n)
	suite.db.Model(&models.ClaimDocument{}).Where("claim_id = ?", claim.ID).Count(&n)
	assert.Zero(suite.T(), n)

	_, err = suite.claims.GetClaim(suite.ctx, claim.ID, suite.agent)
	suite.requireKind(err, workflow.KindNotFound)
}

func (suite *ServiceTestSuite) TestForeignClaimsLookMissing() {
	claim := suite.newDraft()

	_, errForeign := suite.claims.GetClaim(suite.ctx, claim.ID, suite.otherHospital)
	_, errMissing := suite.claims.GetClaim(suite.ctx, uuid.New(), suite.otherHospital)

	suite.requireKind(errForeign, workflow.KindNotFound)
	suite.requireKind(errMissing, workflow.KindNotFound)
	assert.Equal(suite.T(), errMissing.Error(), errForeign.Error())

	_, err := suite.claims.GetClaim(suite.ctx, claim.ID, suite.developer)
	suite.requireKind(err, workflow.KindNotFound)
}

func (suite *ServiceTestSuite) TestListClaimsIsScopedPerRole() {
	mine := suite.newDraft()
	peer, err := suite.claims.CreateClaim(suite.ctx, suite.otherAgent, &CreateClaimRequest{})
	require.NoError(suite.T(), err)

	page := utils.PaginationParams{Page: 1, Limit: 20}

	agentPage, err := suite.claims.ListClaims(suite.ctx, suite.agent, ClaimFilter{}, page)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), agentPage.Claims, 1)
	assert.Equal(suite.T(), mine.ID, agentPage.Claims[0].ID)

	managerPage, err := suite.claims.ListClaims(suite.ctx, suite.manager, ClaimFilter{}, page)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), managerPage.Total)

	hospitalPage, err := suite.claims.ListClaims(suite.ctx, suite.hospital, ClaimFilter{}, page)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), hospitalPage.Claims, 1, "only the claim routed to this hospital")
	assert.NotEqual(suite.T(), peer.ID, hospitalPage.Claims[0].ID)

	_, err = suite.claims.ListClaims(suite.ctx, suite.developer, ClaimFilter{}, page)
	suite.requireKind(err, workflow.KindForbidden)

	_, err = suite.claims.ListClaims(suite.ctx, suite.manager, ClaimFilter{Status: "NOPE"}, page)
	suite.requireKind(err, workflow.KindInvalidInput)
}

func (suite *ServiceTestSuite) TestListFiltersByStatus() {
	suite.newDraft()
	suite.submitted()

	page, err := suite.claims.ListClaims(suite.ctx, suite.manager, ClaimFilter{Status: models.ClaimStatusSubmitted}, utils.PaginationParams{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), page.Claims, 1)
	assert.Equal(suite.T(), models.ClaimStatusSubmitted, page.Claims[0].Status)
	assert.Equal(suite.T(), 1, page.Page)
}

func (suite *ServiceTestSuite) TestCachedViewsFollowMutations() {
	claim := suite.submitted()

	before, err := suite.claims.GetClaim(suite.ctx, claim.ID, suite.hospital)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ClaimStageDraftAgent, before.Claim.Stage)

	list, err := suite.claims.ListClaims(suite.ctx, suite.hospital, ClaimFilter{Stage: models.ClaimStagePendingHospital}, utils.PaginationParams{})
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), list.Claims)

	// The agent's transition must invalidate the hospital's cached views
	_, err = suite.workflow.Transition(suite.ctx, claim.ID, suite.agent, &TransitionRequest{Action: workflow.ActionSendToHospital})
	require.NoError(suite.T(), err)

	after, err := suite.claims.GetClaim(suite.ctx, claim.ID, suite.hospital)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ClaimStagePendingHospital, after.Claim.Stage)

	list, err = suite.claims.ListClaims(suite.ctx, suite.hospital, ClaimFilter{Stage: models.ClaimStagePendingHospital}, utils.PaginationParams{})
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), list.Claims, 1)

	timeline, err := suite.timeline.List(suite.ctx, claim.ID, suite.hospital)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.TimelineEventStageChanged, timeline[len(timeline)-1].EventType)
}

func (suite *ServiceTestSuite) TestIntegrityConflictsAreReported() {
	claim := suite.submitted()

	// Written outside the workflow on purpose
	require.NoError(suite.T(), suite.db.Model(&models.Claim{}).Where("id = ?", claim.ID).
		Update("stage", models.ClaimStageApproved).Error)

	detail, err := suite.claims.GetClaim(suite.ctx, claim.ID, suite.agent)
	require.NoError(suite.T(), err)
	assert.NotEmpty(suite.T(), detail.IntegrityWarning)

	violations, err := AuditClaims(suite.ctx, suite.db)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), violations, 1)
	assert.Equal(suite.T(), claim.ID, violations[0].ClaimID)
}
