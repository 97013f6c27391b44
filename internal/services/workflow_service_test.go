// internal/services/workflow_service_test.go
package services

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

// Draft with no documents, through submit and hand-off to the hospital.
func (suite *ServiceTestSuite) TestDraftToHospitalScenario() {
	claim := suite.newDraft()

	_, err := suite.workflow.Transition(suite.ctx, claim.ID, suite.agent, &TransitionRequest{Action: workflow.ActionSubmitToAgency})
	suite.requireKind(err, workflow.KindInvalidStageForAction)

	notes := "ready"
	_, err = suite.claims.EditClaim(suite.ctx, claim.ID, suite.agent, &UpdateClaimRequest{Notes: &notes})
	require.NoError(suite.T(), err)
	_, err = suite.workflow.Submit(suite.ctx, claim.ID, suite.agent, "")
	suite.requireKind(err, workflow.KindMissingDocuments)

	_, err = suite.upload(claim.ID, suite.agent, "form.pdf")
	require.NoError(suite.T(), err)

	result, err := suite.workflow.Submit(suite.ctx, claim.ID, suite.agent, "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ClaimStatusSubmitted, result.To.Status)
	assert.NotNil(suite.T(), result.Claim.SubmittedAt)

	before := len(suite.timelineEvents(claim.ID))
	result, err = suite.workflow.Transition(suite.ctx, claim.ID, suite.agent, &TransitionRequest{Action: workflow.ActionSendToHospital})
	require.NoError(suite.T(), err)

	stored := suite.reload(claim.ID)
	assert.Equal(suite.T(), models.ClaimStagePendingHospital, stored.Stage)
	assert.Equal(suite.T(), models.ClaimStatusInProgress, stored.Status)
	assert.Equal(suite.T(), before+1, len(suite.timelineEvents(claim.ID)))
	assert.Equal(suite.T(), string(workflow.ActionSendToHospital), result.Timeline.Action)
	assert.NoError(suite.T(), workflow.CheckIntegrity(stateOf(stored)))

	assert.Contains(suite.T(), suite.notifier.received(), string(workflow.ActionSendToHospital))
}

func (suite *ServiceTestSuite) TestRejectedTransitionLeavesNoTrace() {
	claim := suite.atHospital()
	before := suite.timelineEvents(claim.ID)

	// Agents cannot route a claim back to themselves
	_, err := suite.workflow.Transition(suite.ctx, claim.ID, suite.agent, &TransitionRequest{Action: workflow.ActionSendToAgent})
	suite.requireKind(err, workflow.KindForbidden)

	_, err = suite.workflow.Transition(suite.ctx, claim.ID, suite.agencyAdmin, &TransitionRequest{Action: workflow.ActionApprove})
	suite.requireKind(err, workflow.KindInvalidStageForAction)

	after := suite.reload(claim.ID)
	assert.Equal(suite.T(), claim.Stage, after.Stage)
	assert.Equal(suite.T(), claim.Status, after.Status)
	assert.Equal(suite.T(), before, suite.timelineEvents(claim.ID))
}

func (suite *ServiceTestSuite) TestTransitionRejectsStatusOnlyActions() {
	claim := suite.newDraft()

	_, err := suite.workflow.Transition(suite.ctx, claim.ID, suite.agent, &TransitionRequest{Action: workflow.ActionSubmit})
	suite.requireKind(err, workflow.KindInvalidInput)
}

func (suite *ServiceTestSuite) TestOnlyTheClaimHospitalActs() {
	claim := suite.atHospital()

	_, err := suite.workflow.Transition(suite.ctx, claim.ID, suite.otherHospital, &TransitionRequest{Action: workflow.ActionSendToAgent})
	suite.requireKind(err, workflow.KindNotFound)

	_, err = suite.workflow.Transition(suite.ctx, claim.ID, suite.hospital, &TransitionRequest{Action: workflow.ActionSendToAgent})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ClaimStagePendingAgent, suite.reload(claim.ID).Stage)
}

func (suite *ServiceTestSuite) TestFullAgencyRoundTrip() {
	claim := suite.atHospital()

	steps := []struct {
		actor  workflow.Actor
		req    TransitionRequest
		status models.ClaimStatus
		stage  models.ClaimStage
	}{
		{suite.hospital, TransitionRequest{Action: workflow.ActionSendToAgent}, models.ClaimStatusInProgress, models.ClaimStagePendingAgent},
		{suite.agent, TransitionRequest{Action: workflow.ActionSubmitToAgency}, models.ClaimStatusReview, models.ClaimStageSubmittedToAgency},
		{suite.agencyAdmin, TransitionRequest{Action: workflow.ActionIssueLog, LogNumber: "LOG-001", InsurerName: "Acme Mutual"}, models.ClaimStatusReview, models.ClaimStageLogIssued},
		{suite.agencyAdmin, TransitionRequest{Action: workflow.ActionSendLogToHospital}, models.ClaimStatusReview, models.ClaimStageLogSentToHospital},
		{suite.hospital, TransitionRequest{Action: workflow.ActionVerifyLog}, models.ClaimStatusReview, models.ClaimStageLogSentToHospital},
		{suite.agencyAdmin, TransitionRequest{Action: workflow.ActionApprove}, models.ClaimStatusApproved, models.ClaimStageApproved},
		{suite.agencyAdmin, TransitionRequest{Action: workflow.ActionMarkPaid}, models.ClaimStatusPaid, models.ClaimStageApproved},
	}

	for _, step := range steps {
		req := step.req
		_, err := suite.workflow.Transition(suite.ctx, claim.ID, step.actor, &req)
		require.NoError(suite.T(), err, "action %s", req.Action)

		stored := suite.reload(claim.ID)
		assert.Equal(suite.T(), step.status, stored.Status, "after %s", req.Action)
		assert.Equal(suite.T(), step.stage, stored.Stage, "after %s", req.Action)
		assert.NoError(suite.T(), workflow.CheckIntegrity(stateOf(stored)))
	}

	stored := suite.reload(claim.ID)
	assert.Equal(suite.T(), "LOG-001", stored.LogNumber)
	assert.Equal(suite.T(), "Acme Mutual", stored.InsurerName)
	assert.NotNil(suite.T(), stored.LogVerifiedAt)
	assert.NotNil(suite.T(), stored.PaidAt)
	assert.Equal(suite.T(), suite.agencyAdmin.ID, *stored.DecidedBy)

	// A verified letter cannot be verified twice, and a paid claim is closed
	_, err := suite.workflow.Transition(suite.ctx, claim.ID, suite.hospital, &TransitionRequest{Action: workflow.ActionVerifyLog})
	suite.requireKind(err, workflow.KindInvalidStageForAction)
	_, err = suite.documents.UploadDocument(suite.ctx, claim.ID, suite.agent, &UploadDocumentRequest{FileName: "late.pdf", Data: []byte("x")})
	suite.requireKind(err, workflow.KindInvalidStageForAction)
}

func (suite *ServiceTestSuite) TestIssueLogNeedsANumber() {
	claim := suite.atHospital()
	_, err := suite.workflow.Transition(suite.ctx, claim.ID, suite.hospital, &TransitionRequest{Action: workflow.ActionSendToAgent})
	require.NoError(suite.T(), err)
	_, err = suite.workflow.Transition(suite.ctx, claim.ID, suite.agent, &TransitionRequest{Action: workflow.ActionSubmitToAgency})
	require.NoError(suite.T(), err)

	_, err = suite.workflow.Transition(suite.ctx, claim.ID, suite.agencyAdmin, &TransitionRequest{Action: workflow.ActionIssueLog, LogNumber: "  "})
	suite.requireKind(err, workflow.KindInvalidInput)
	assert.Equal(suite.T(), models.ClaimStageSubmittedToAgency, suite.reload(claim.ID).Stage)
}

func (suite *ServiceTestSuite) TestHospitalDecisionTouchesOnlyStatus() {
	claim := suite.atHospital()
	// Back to SUBMITTED so the hospital may decide
	require.NoError(suite.T(), suite.db.Model(&models.Claim{}).Where("id = ?", claim.ID).
		Update("status", models.ClaimStatusSubmitted).Error)

	result, err := suite.workflow.HospitalDecision(suite.ctx, claim.ID, suite.hospital, true, "covered")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ClaimStatusApproved, result.To.Status)
	assert.Equal(suite.T(), models.ClaimStagePendingHospital, result.To.Stage)

	_, err = suite.workflow.HospitalDecision(suite.ctx, claim.ID, suite.hospital, false, "changed my mind")
	suite.requireKind(err, workflow.KindInvalidStageForAction)
}

func (suite *ServiceTestSuite) TestHospitalRejectRecordsReason() {
	claim := suite.atHospital()

	result, err := suite.workflow.HospitalDecision(suite.ctx, claim.ID, suite.hospital, false, "not covered")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ClaimStatusRejected, result.To.Status)
	assert.Equal(suite.T(), "not covered", suite.reload(claim.ID).RejectionReason)
	assert.Equal(suite.T(), models.TimelineEventHospitalRejected, result.Timeline.EventType)
}

func (suite *ServiceTestSuite) TestTransitionRollsBackWhenTimelineWriteFails() {
	claim := suite.submitted()
	require.NoError(suite.T(), suite.db.Migrator().DropTable(&models.ClaimTimeline{}))

	_, err := suite.workflow.Transition(suite.ctx, claim.ID, suite.agent, &TransitionRequest{Action: workflow.ActionSendToHospital})
	suite.requireKind(err, workflow.KindStorageFailure)

	stored := suite.reload(claim.ID)
	assert.Equal(suite.T(), models.ClaimStageDraftAgent, stored.Stage)
	assert.Equal(suite.T(), models.ClaimStatusSubmitted, stored.Status)
	assert.NotContains(suite.T(), suite.notifier.received(), string(workflow.ActionSendToHospital))
}
