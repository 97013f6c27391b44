// internal/services/document_service_test.go
package services

import (
	"sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/utils"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

func (suite *ServiceTestSuite) TestUploadsFillTypesInPreferenceOrder() {
	claim := suite.newDraft()

	for _, want := range models.DocumentTypes {
		doc, err := suite.upload(claim.ID, suite.agent, "scan.pdf")
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), want, doc.DocType)
	}

	_, err := suite.upload(claim.ID, suite.agent, "one-too-many.pdf")
	suite.requireKind(err, workflow.KindAllDocumentSlotsExhausted)
	assert.Equal(suite.T(), len(models.DocumentTypes), suite.objects.count())
}

func (suite *ServiceTestSuite) TestPreferredTypeIsTriedFirst() {
	claim := suite.newDraft()

	doc, err := suite.documents.UploadDocument(suite.ctx, claim.ID, suite.agent, &UploadDocumentRequest{
		FileName:      "bill.pdf",
		Data:          []byte("invoice"),
		PreferredType: models.DocumentTypeInvoice,
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.DocumentTypeInvoice, doc.DocType)

	// Taken, so the next free type in order is used instead
	doc, err = suite.documents.UploadDocument(suite.ctx, claim.ID, suite.agent, &UploadDocumentRequest{
		FileName:      "bill-2.pdf",
		Data:          []byte("invoice"),
		PreferredType: models.DocumentTypeInvoice,
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.DocumentTypeClaimForm, doc.DocType)

	_, err = suite.documents.UploadDocument(suite.ctx, claim.ID, suite.agent, &UploadDocumentRequest{
		FileName:      "x.pdf",
		Data:          []byte("x"),
		PreferredType: "RECEIPT",
	})
	suite.requireKind(err, workflow.KindInvalidInput)
}

func (suite *ServiceTestSuite) TestConcurrentUploadsNeverShareAType() {
	claim := suite.newDraft()

	const uploads = 8
	var wg sync.WaitGroup
	errs := make([]error, uploads)
	docs := make([]*models.ClaimDocument, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docs[i], errs[i] = suite.upload(claim.ID, suite.agent, "page.pdf")
		}(i)
	}
	wg.Wait()

	seen := map[models.DocumentType]bool{}
	failed := 0
	for i, err := range errs {
		if err != nil {
			assert.Equal(suite.T(), workflow.KindAllDocumentSlotsExhausted, workflow.KindOf(err))
			failed++
			continue
		}
		assert.False(suite.T(), seen[docs[i].DocType], "type %s allocated twice", docs[i].DocType)
		seen[docs[i].DocType] = true
	}

	assert.Len(suite.T(), seen, len(models.DocumentTypes))
	assert.Equal(suite.T(), uploads-len(models.DocumentTypes), failed)

	var rows int64
	require.NoError(suite.T(), suite.db.Model(&models.ClaimDocument{}).Where("claim_id = ?", claim.ID).Count(&rows).Error)
	assert.Equal(suite.T(), int64(len(models.DocumentTypes)), rows)
	// Losers clean up what they stored
	assert.Equal(suite.T(), len(models.DocumentTypes), suite.objects.count())
}

func (suite *ServiceTestSuite) TestUploadRecordsChecksumAndTimeline() {
	claim := suite.newDraft()

	doc, err := suite.upload(claim.ID, suite.agent, "form.pdf")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), utils.Checksum([]byte("%PDF-1.4 form.pdf")), doc.Checksum)
	assert.Equal(suite.T(), suite.agent.ID, doc.UploadedBy)
	assert.Contains(suite.T(), suite.timelineEvents(claim.ID), models.TimelineEventDocumentUploaded)

	// Status and stage are untouched by uploads
	stored := suite.reload(claim.ID)
	assert.Equal(suite.T(), models.ClaimStatusDraft, stored.Status)
	assert.Equal(suite.T(), models.ClaimStageDraftAgent, stored.Stage)
}

func (suite *ServiceTestSuite) TestUploadValidation() {
	claim := suite.newDraft()

	_, err := suite.upload(claim.ID, suite.agent, "macro.exe")
	suite.requireKind(err, workflow.KindInvalidInput)

	_, err = suite.documents.UploadDocument(suite.ctx, claim.ID, suite.agent, &UploadDocumentRequest{FileName: "empty.pdf"})
	suite.requireKind(err, workflow.KindInvalidInput)

	_, err = suite.documents.UploadDocument(suite.ctx, claim.ID, suite.agent, &UploadDocumentRequest{
		FileName: "huge.pdf",
		Data:     make([]byte, 2*1024*1024),
	})
	suite.requireKind(err, workflow.KindInvalidInput)

	assert.Zero(suite.T(), suite.objects.count())
}

func (suite *ServiceTestSuite) TestUploadWhoMayAttach() {
	claim := suite.atHospital()

	_, err := suite.upload(claim.ID, suite.hospital, "lab.pdf")
	assert.NoError(suite.T(), err)

	_, err = suite.upload(claim.ID, suite.agencyAdmin, "memo.pdf")
	suite.requireKind(err, workflow.KindForbidden)

	_, err = suite.upload(claim.ID, suite.otherHospital, "lab.pdf")
	suite.requireKind(err, workflow.KindNotFound)
}

func (suite *ServiceTestSuite) TestObjectStoreFailureWritesNothing() {
	claim := suite.newDraft()
	suite.objects.failPut = true

	_, err := suite.upload(claim.ID, suite.agent, "form.pdf")
	suite.requireKind(err, workflow.KindStorageFailure)

	var rows int64
	require.NoError(suite.T(), suite.db.Model(&models.ClaimDocument{}).Where("claim_id = ?", claim.ID).Count(&rows).Error)
	assert.Zero(suite.T(), rows)
}

func (suite *ServiceTestSuite) TestDeleteFreesTheSlotWhileDrafting() {
	claim := suite.newDraft()
	doc, err := suite.upload(claim.ID, suite.agent, "form.pdf")
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.documents.DeleteDocument(suite.ctx, claim.ID, doc.ID, suite.agent))
	assert.Zero(suite.T(), suite.objects.count())
	assert.Contains(suite.T(), suite.timelineEvents(claim.ID), models.TimelineEventDocumentRemoved)

	again, err := suite.upload(claim.ID, suite.agent, "form.pdf")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.DocumentTypeClaimForm, again.DocType)

	err = suite.documents.DeleteDocument(suite.ctx, claim.ID, doc.ID, suite.agent)
	suite.requireKind(err, workflow.KindNotFound)
}

func (suite *ServiceTestSuite) TestDeleteBlockedAfterSubmit() {
	claim := suite.submitted()
	docs, err := suite.documents.ListDocuments(suite.ctx, claim.ID, suite.agent)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), docs, 1)

	err = suite.documents.DeleteDocument(suite.ctx, claim.ID, docs[0].ID, suite.agent)
	suite.requireKind(err, workflow.KindInvalidStageForAction)
	assert.Equal(suite.T(), 1, suite.objects.count())
}

func (suite *ServiceTestSuite) TestDownloadURL() {
	claim := suite.newDraft()
	doc, err := suite.upload(claim.ID, suite.agent, "form.pdf")
	require.NoError(suite.T(), err)

	download, err := suite.documents.DownloadURL(suite.ctx, claim.ID, doc.ID, suite.manager)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "mem://"+doc.StorageKey+"?signed", download.URL)
	assert.Equal(suite.T(), doc.ID, download.Document.ID)

	_, err = suite.documents.DownloadURL(suite.ctx, claim.ID, doc.ID, suite.developer)
	suite.requireKind(err, workflow.KindNotFound)

	other := suite.newDraft()
	_, err = suite.documents.DownloadURL(suite.ctx, other.ID, doc.ID, suite.agent)
	suite.requireKind(err, workflow.KindNotFound)
}
