// internal/services/info_request_service_test.go
package services

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

func visitForm() *CreateInfoRequestRequest {
	return &CreateInfoRequestRequest{
		Message: "Please confirm the admission details",
		FormSchema: []models.FormField{
			{Key: "admitted_on", Label: "Admission date", Type: models.FormFieldDate, Required: true},
			{Key: "ward", Label: "Ward", Type: models.FormFieldSelect, Options: []string{"general", "icu"}},
			{Key: "nights", Label: "Nights", Type: models.FormFieldNumber},
		},
	}
}

func (suite *ServiceTestSuite) TestInfoRequestLifecycle() {
	claim := suite.atHospital()

	request, err := suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.hospital, visitForm())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InfoRequestStatusPending, request.Status)
	assert.Equal(suite.T(), models.FieldKeys{"admitted_on", "ward", "nights"}, request.RequestedFields)
	assert.Equal(suite.T(), models.ClaimStatusInfoRequested, suite.reload(claim.ID).Status)
	assert.Equal(suite.T(), models.ClaimStagePendingHospital, suite.reload(claim.ID).Stage)

	_, err = suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.hospital, visitForm())
	suite.requireKind(err, workflow.KindInfoRequestAlreadyPending)

	_, err = suite.workflow.HospitalDecision(suite.ctx, claim.ID, suite.hospital, true, "")
	suite.requireKind(err, workflow.KindInvalidStageForAction)

	// The hospital cannot answer its own question
	answers := &CompleteInfoRequestRequest{ResponseData: map[string]interface{}{
		"admitted_on": "2026-03-02",
		"ward":        "icu",
	}}
	_, err = suite.infoRequests.CompleteInfoRequest(suite.ctx, request.ID, suite.hospital, answers)
	suite.requireKind(err, workflow.KindForbidden)

	completed, err := suite.infoRequests.CompleteInfoRequest(suite.ctx, request.ID, suite.agent, answers)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InfoRequestStatusCompleted, completed.Status)
	assert.Equal(suite.T(), "icu", completed.ResponseData["ward"])
	assert.NotContains(suite.T(), completed.ResponseData, "nights")
	assert.Equal(suite.T(), models.ClaimStatusInfoSubmitted, suite.reload(claim.ID).Status)

	_, err = suite.infoRequests.CompleteInfoRequest(suite.ctx, request.ID, suite.agent, answers)
	suite.requireKind(err, workflow.KindRequestNotPending)

	result, err := suite.workflow.HospitalDecision(suite.ctx, claim.ID, suite.hospital, true, "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ClaimStatusApproved, result.To.Status)

	events := suite.timelineEvents(claim.ID)
	assert.Contains(suite.T(), events, models.TimelineEventInfoRequested)
	assert.Contains(suite.T(), events, models.TimelineEventInfoSubmitted)
	assert.Equal(suite.T(), []string{string(workflow.ActionSubmit), string(workflow.ActionSendToHospital),
		NoticeInfoRequested, NoticeInfoSubmitted, string(workflow.ActionHospitalApprove)}, suite.notifier.received())
}

func (suite *ServiceTestSuite) TestCompleteValidatesAnswers() {
	claim := suite.atHospital()
	request, err := suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.hospital, visitForm())
	require.NoError(suite.T(), err)

	cases := []map[string]interface{}{
		{"ward": "icu"},
		{"admitted_on": "March 2nd"},
		{"admitted_on": "2026-03-02", "ward": "penthouse"},
		{"admitted_on": "2026-03-02", "nights": "three"},
		{"admitted_on": "2026-03-02", "colour": "blue"},
	}
	for _, data := range cases {
		_, err := suite.infoRequests.CompleteInfoRequest(suite.ctx, request.ID, suite.agent, &CompleteInfoRequestRequest{ResponseData: data})
		suite.requireKind(err, workflow.KindInvalidInput)
	}

	stored := suite.reload(claim.ID)
	assert.Equal(suite.T(), models.ClaimStatusInfoRequested, stored.Status)
}

func (suite *ServiceTestSuite) TestPendingRequestGatesHospitalApproval() {
	claim := suite.atHospital()
	require.NoError(suite.T(), suite.db.Model(&models.Claim{}).Where("id = ?", claim.ID).
		Update("status", models.ClaimStatusSubmitted).Error)

	// A request left pending while the status already moved on
	require.NoError(suite.T(), suite.db.Create(&models.ClaimInfoRequest{
		ClaimID:     claim.ID,
		RequestedBy: suite.hospital.ID,
		Status:      models.InfoRequestStatusPending,
		FormSchema:  models.FormSchema{{Key: "note", Label: "Note", Type: models.FormFieldText}},
	}).Error)

	_, err := suite.workflow.HospitalDecision(suite.ctx, claim.ID, suite.hospital, true, "")
	suite.requireKind(err, workflow.KindInfoRequestPending)

	// A second pending row is refused by the database itself
	err = suite.db.Create(&models.ClaimInfoRequest{
		ClaimID:     claim.ID,
		RequestedBy: suite.hospital.ID,
		Status:      models.InfoRequestStatusPending,
		FormSchema:  models.FormSchema{{Key: "note", Label: "Note", Type: models.FormFieldText}},
	}).Error
	assert.Error(suite.T(), err)
}

func (suite *ServiceTestSuite) TestInfoRequestPreconditions() {
	draft := suite.newDraft()
	_, err := suite.infoRequests.CreateInfoRequest(suite.ctx, draft.ID, suite.hospital, visitForm())
	suite.requireKind(err, workflow.KindInvalidStageForAction)

	claim := suite.atHospital()
	_, err = suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.agent, visitForm())
	suite.requireKind(err, workflow.KindForbidden)

	_, err = suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.otherHospital, visitForm())
	suite.requireKind(err, workflow.KindNotFound)
}

func (suite *ServiceTestSuite) TestInfoRequestSchemaChecks() {
	claim := suite.atHospital()

	schemas := [][]models.FormField{
		nil,
		{{Key: "a", Label: "A", Type: models.FormFieldText}, {Key: "a", Label: "Again", Type: models.FormFieldText}},
		{{Key: "ward", Label: "Ward", Type: models.FormFieldSelect}},
		{{Key: "photo", Label: "Photo", Type: "file"}},
		{{Key: "", Label: "Blank", Type: models.FormFieldText}},
	}
	for _, schema := range schemas {
		_, err := suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.hospital, &CreateInfoRequestRequest{FormSchema: schema})
		suite.requireKind(err, workflow.KindInvalidInput)
	}

	assert.Equal(suite.T(), models.ClaimStatusInProgress, suite.reload(claim.ID).Status)
}

func (suite *ServiceTestSuite) TestListInfoRequests() {
	claim := suite.atHospital()
	_, err := suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.hospital, visitForm())
	require.NoError(suite.T(), err)

	requests, err := suite.infoRequests.ListInfoRequests(suite.ctx, claim.ID, suite.agent)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), requests, 1)
	assert.Len(suite.T(), requests[0].FormSchema, 3)

	_, err = suite.infoRequests.ListInfoRequests(suite.ctx, claim.ID, suite.developer)
	suite.requireKind(err, workflow.KindNotFound)
}

func (suite *ServiceTestSuite) TestAgencyApprovalWaitsForPendingRequest() {
	claim := suite.atAgency()
	request, err := suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.hospital, visitForm())
	require.NoError(suite.T(), err)
	before := suite.timelineEvents(claim.ID)

	_, err = suite.workflow.Transition(suite.ctx, claim.ID, suite.agencyAdmin, &TransitionRequest{Action: workflow.ActionApprove})
	suite.requireKind(err, workflow.KindInfoRequestPending)

	stored := suite.reload(claim.ID)
	assert.Equal(suite.T(), models.ClaimStatusInfoRequested, stored.Status)
	assert.Equal(suite.T(), models.ClaimStageSubmittedToAgency, stored.Stage)
	assert.Equal(suite.T(), before, suite.timelineEvents(claim.ID))

	// Once answered the agency may approve
	_, err = suite.infoRequests.CompleteInfoRequest(suite.ctx, request.ID, suite.agent, &CompleteInfoRequestRequest{
		ResponseData: map[string]interface{}{"admitted_on": "2026-03-02"},
	})
	require.NoError(suite.T(), err)
	_, err = suite.workflow.Transition(suite.ctx, claim.ID, suite.agencyAdmin, &TransitionRequest{Action: workflow.ActionApprove})
	require.NoError(suite.T(), err)

	stored = suite.reload(claim.ID)
	assert.Equal(suite.T(), models.ClaimStatusApproved, stored.Status)
	assert.NoError(suite.T(), workflow.CheckIntegrity(stateOf(stored)))
}

func (suite *ServiceTestSuite) TestAgencyRejectionCancelsPendingRequest() {
	claim := suite.atAgency()
	request, err := suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.hospital, visitForm())
	require.NoError(suite.T(), err)

	result, err := suite.workflow.Transition(suite.ctx, claim.ID, suite.agencyAdmin, &TransitionRequest{Action: workflow.ActionReject, Notes: "policy lapsed"})
	require.NoError(suite.T(), err)
	assert.EqualValues(suite.T(), 1, result.Timeline.Payload["cancelled_info_requests"])
	assert.Equal(suite.T(), models.InfoRequestStatusCancelled, suite.infoRequestStatus(request.ID))

	_, err = suite.infoRequests.CompleteInfoRequest(suite.ctx, request.ID, suite.agent, &CompleteInfoRequestRequest{
		ResponseData: map[string]interface{}{"admitted_on": "2026-03-02"},
	})
	suite.requireKind(err, workflow.KindInvalidStageForAction)

	stored := suite.reload(claim.ID)
	assert.Equal(suite.T(), models.ClaimStatusRejected, stored.Status)
	assert.Equal(suite.T(), models.ClaimStageRejected, stored.Stage)
	assert.NoError(suite.T(), workflow.CheckIntegrity(stateOf(stored)))
}

func (suite *ServiceTestSuite) TestHospitalRejectionCannotBeRevived() {
	claim := suite.atHospital()
	request, err := suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.hospital, visitForm())
	require.NoError(suite.T(), err)

	_, err = suite.workflow.HospitalDecision(suite.ctx, claim.ID, suite.hospital, false, "not covered")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InfoRequestStatusCancelled, suite.infoRequestStatus(request.ID))

	_, err = suite.infoRequests.CompleteInfoRequest(suite.ctx, request.ID, suite.agent, &CompleteInfoRequestRequest{
		ResponseData: map[string]interface{}{"admitted_on": "2026-03-02"},
	})
	suite.requireKind(err, workflow.KindInvalidStageForAction)

	_, err = suite.workflow.HospitalDecision(suite.ctx, claim.ID, suite.hospital, true, "")
	suite.requireKind(err, workflow.KindInvalidStageForAction)

	stored := suite.reload(claim.ID)
	assert.Equal(suite.T(), models.ClaimStatusRejected, stored.Status)
	assert.Equal(suite.T(), models.ClaimStagePendingHospital, stored.Stage)
	assert.NoError(suite.T(), workflow.CheckIntegrity(stateOf(stored)))
}

func (suite *ServiceTestSuite) TestApprovedClaimRefusesAnswers() {
	claim := suite.atAgency()
	_, err := suite.workflow.Transition(suite.ctx, claim.ID, suite.agencyAdmin, &TransitionRequest{Action: workflow.ActionApprove})
	require.NoError(suite.T(), err)

	// A request left pending from before the decision
	stale := &models.ClaimInfoRequest{
		ClaimID:     claim.ID,
		RequestedBy: suite.hospital.ID,
		Status:      models.InfoRequestStatusPending,
		FormSchema:  models.FormSchema{{Key: "note", Label: "Note", Type: models.FormFieldText}},
	}
	require.NoError(suite.T(), suite.db.Create(stale).Error)

	answer := &CompleteInfoRequestRequest{ResponseData: map[string]interface{}{"note": "late"}}
	_, err = suite.infoRequests.CompleteInfoRequest(suite.ctx, stale.ID, suite.agent, answer)
	suite.requireKind(err, workflow.KindInvalidStageForAction)

	_, err = suite.workflow.Transition(suite.ctx, claim.ID, suite.agencyAdmin, &TransitionRequest{Action: workflow.ActionMarkPaid})
	require.NoError(suite.T(), err)
	_, err = suite.infoRequests.CompleteInfoRequest(suite.ctx, stale.ID, suite.agent, answer)
	suite.requireKind(err, workflow.KindInvalidStageForAction)

	stored := suite.reload(claim.ID)
	assert.Equal(suite.T(), models.ClaimStatusPaid, stored.Status)
	assert.Equal(suite.T(), models.ClaimStageApproved, stored.Stage)
	assert.Equal(suite.T(), models.InfoRequestStatusPending, suite.infoRequestStatus(stale.ID))
	assert.NoError(suite.T(), workflow.CheckIntegrity(stateOf(stored)))
}

func (suite *ServiceTestSuite) TestSchemaKeysAreTrimmed() {
	claim := suite.atHospital()

	_, err := suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.hospital, &CreateInfoRequestRequest{
		FormSchema: []models.FormField{
			{Key: "ward", Label: "Ward", Type: models.FormFieldText},
			{Key: " ward ", Label: "Ward again", Type: models.FormFieldText},
		},
	})
	suite.requireKind(err, workflow.KindInvalidInput)

	request, err := suite.infoRequests.CreateInfoRequest(suite.ctx, claim.ID, suite.hospital, &CreateInfoRequestRequest{
		FormSchema: []models.FormField{
			{Key: " ward ", Label: "Ward", Type: models.FormFieldText, Required: true},
		},
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.FieldKeys{"ward"}, request.RequestedFields)
	assert.Equal(suite.T(), "ward", request.FormSchema[0].Key)

	completed, err := suite.infoRequests.CompleteInfoRequest(suite.ctx, request.ID, suite.agent, &CompleteInfoRequestRequest{
		ResponseData: map[string]interface{}{"ward": "icu"},
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "icu", completed.ResponseData["ward"])
}
