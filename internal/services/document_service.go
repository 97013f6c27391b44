// internal/services/document_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/claimdesk-backend/internal/cache"
	"github.com/javajoker/claimdesk-backend/internal/database"
	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/utils"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

const downloadURLTTL = 15 * time.Minute

// DocumentService is the claim document ledger.
type DocumentService struct {
	db       *gorm.DB
	store    ObjectStore
	limits   UploadOptions
	timeline *TimelineService
	cache    *cache.Coordinator
	log      logrus.FieldLogger
}

type UploadDocumentRequest struct {
	FileName      string
	ContentType   string
	Data          []byte
	PreferredType models.DocumentType
}

type DocumentDownload struct {
	Document *models.ClaimDocument `json:"document"`
	URL      string                `json:"url"`
}

func NewDocumentService(db *gorm.DB, store ObjectStore, limits UploadOptions, timeline *TimelineService, coordinator *cache.Coordinator, log logrus.FieldLogger) *DocumentService {
	return &DocumentService{
		db:       db,
		store:    store,
		limits:   limits,
		timeline: timeline,
		cache:    coordinator,
		log:      log.WithField("component", "documents"),
	}
}

// canContribute covers the parties that attach evidence to a claim.
func canContribute(actor workflow.Actor, claim *models.Claim) bool {
	switch actor.Role {
	case models.RoleAgent, models.RoleAgentManager, models.RoleSuperAdmin:
		return true
	case models.RoleHospitalAdmin:
		return workflow.IsClaimHospital(actor, claim)
	default:
		return false
	}
}

// candidateTypes is the preference order minus the used types, with the
// caller's preferred type tried first.
func candidateTypes(used map[models.DocumentType]bool, preferred models.DocumentType) []models.DocumentType {
	out := make([]models.DocumentType, 0, len(models.DocumentTypes))
	if preferred != "" && !used[preferred] {
		out = append(out, preferred)
	}
	for _, t := range models.DocumentTypes {
		if t == preferred || used[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}

func usedTypes(tx *gorm.DB, claimID uuid.UUID) (map[models.DocumentType]bool, error) {
	var types []models.DocumentType
	if err := tx.Model(&models.ClaimDocument{}).Where("claim_id = ?", claimID).Pluck("doc_type", &types).Error; err != nil {
		return nil, workflow.StorageFailure(err)
	}
	used := make(map[models.DocumentType]bool, len(types))
	for _, t := range types {
		used[t] = true
	}
	return used, nil
}

// UploadDocument stores the file and assigns it the first free document type.
// Concurrent uploads race on the (claim_id, doc_type) unique index: an insert that
// hits an existing row does nothing and the next candidate is tried.
func (s *DocumentService) UploadDocument(ctx context.Context, claimID uuid.UUID, actor workflow.Actor, req *UploadDocumentRequest) (*models.ClaimDocument, error) {
	// Validate request
	if req.PreferredType != "" && !req.PreferredType.Valid() {
		return nil, workflow.Errorf(workflow.KindInvalidInput, "unknown document type %q", req.PreferredType)
	}
	if err := ValidateUpload(req.FileName, int64(len(req.Data)), s.limits); err != nil {
		return nil, &workflow.Error{Kind: workflow.KindInvalidInput, Message: "invalid upload", Err: err}
	}

	db := s.db.WithContext(ctx)
	claim, err := findClaim(db, claimID, actor, false)
	if err != nil {
		return nil, err
	}
	if !canContribute(actor, claim) {
		return nil, workflow.Errorf(workflow.KindForbidden, "role %s cannot attach documents", actor.Role)
	}
	if claim.Status.Terminal() {
		return nil, workflow.Errorf(workflow.KindInvalidStageForAction, "claim is %s, documents are closed", claim.Status)
	}

	used, err := usedTypes(db, claimID)
	if err != nil {
		return nil, err
	}
	candidates := candidateTypes(used, req.PreferredType)
	if len(candidates) == 0 {
		return nil, workflow.ErrAllDocumentSlotsExhausted
	}

	options := s.limits
	options.Folder = "claims/" + claimID.String()
	stored, err := s.store.Put(req.FileName, req.Data, req.ContentType, options)
	if err != nil {
		return nil, workflow.StorageFailure(err)
	}

	doc, err := s.allocate(db, claim, actor, candidates, req, stored)
	if err != nil {
		// The row never landed, so the object is orphaned
		if delErr := s.store.Delete(stored.Key); delErr != nil {
			s.log.WithError(delErr).WithField("key", stored.Key).Warn("Failed to remove orphaned upload")
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.MutationDocumentChanged, cache.Target{ClaimID: claimID, Actor: actor.ID})

	s.log.WithFields(logrus.Fields{
		"claim_id": claimID,
		"doc_type": doc.DocType,
		"actor_id": actor.ID,
	}).Info("Document attached")

	return doc, nil
}

func (s *DocumentService) allocate(db *gorm.DB, claim *models.Claim, actor workflow.Actor, candidates []models.DocumentType, req *UploadDocumentRequest, stored *UploadResult) (*models.ClaimDocument, error) {
	var doc *models.ClaimDocument

	err := database.WithTransaction(db, func(tx *gorm.DB) error {
		for _, docType := range candidates {
			attempt := &models.ClaimDocument{
				ClaimID:     claim.ID,
				DocType:     docType,
				FileName:    req.FileName,
				StorageKey:  stored.Key,
				FileURL:     stored.URL,
				ContentType: req.ContentType,
				SizeBytes:   stored.Size,
				Checksum:    utils.Checksum(req.Data),
				UploadedBy:  actor.ID,
			}

			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(attempt)
			if res.Error != nil {
				return workflow.StorageFailure(res.Error)
			}
			if res.RowsAffected == 1 {
				doc = attempt
				break
			}
		}

		if doc == nil {
			return workflow.ErrAllDocumentSlotsExhausted
		}

		_, err := s.timeline.Append(tx, claim, actor, TimelineEntry{
			Event: models.TimelineEventDocumentUploaded,
			Payload: models.JSONB{
				"document_id": doc.ID,
				"doc_type":    doc.DocType,
				"file_name":   doc.FileName,
			},
		})
		return err
	})

	return doc, err
}

func (s *DocumentService) ListDocuments(ctx context.Context, claimID uuid.UUID, actor workflow.Actor) ([]models.ClaimDocument, error) {
	return cache.Remember(ctx, s.cache, cache.DocumentsKey(claimID, actor.ID), func() ([]models.ClaimDocument, error) {
		db := s.db.WithContext(ctx)
		if _, err := findClaim(db, claimID, actor, false); err != nil {
			return nil, err
		}

		var docs []models.ClaimDocument
		if err := db.Where("claim_id = ?", claimID).Order("created_at ASC").Find(&docs).Error; err != nil {
			return nil, workflow.StorageFailure(err)
		}
		return docs, nil
	})
}

func (s *DocumentService) DownloadURL(ctx context.Context, claimID, documentID uuid.UUID, actor workflow.Actor) (*DocumentDownload, error) {
	db := s.db.WithContext(ctx)
	if _, err := findClaim(db, claimID, actor, false); err != nil {
		return nil, err
	}

	doc, err := findDocument(db, claimID, documentID)
	if err != nil {
		return nil, err
	}

	url, err := s.store.PresignedURL(doc.StorageKey, downloadURLTTL)
	if err != nil {
		return nil, workflow.StorageFailure(err)
	}
	return &DocumentDownload{Document: doc, URL: url}, nil
}

// DeleteDocument frees a document type slot. Only allowed while the claim is being
// drafted or answering an info request.
func (s *DocumentService) DeleteDocument(ctx context.Context, claimID, documentID uuid.UUID, actor workflow.Actor) error {
	var doc *models.ClaimDocument

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		claim, err := findClaim(tx, claimID, actor, true)
		if err != nil {
			return err
		}
		if !canContribute(actor, claim) {
			return workflow.Errorf(workflow.KindForbidden, "role %s cannot remove documents", actor.Role)
		}
		if claim.Status != models.ClaimStatusDraft && claim.Status != models.ClaimStatusInfoRequested {
			return workflow.Errorf(workflow.KindInvalidStageForAction, "documents cannot be removed while claim is %s", claim.Status)
		}

		doc, err = findDocument(tx, claimID, documentID)
		if err != nil {
			return err
		}

		if err := tx.Delete(doc).Error; err != nil {
			return workflow.StorageFailure(err)
		}

		_, err = s.timeline.Append(tx, claim, actor, TimelineEntry{
			Event: models.TimelineEventDocumentRemoved,
			Payload: models.JSONB{
				"document_id": doc.ID,
				"doc_type":    doc.DocType,
			},
		})
		return err
	})
	if err != nil {
		return err
	}

	if err := s.store.Delete(doc.StorageKey); err != nil {
		s.log.WithError(err).WithField("key", doc.StorageKey).Warn("Failed to delete stored document")
	}

	s.cache.Invalidate(ctx, cache.MutationDocumentChanged, cache.Target{ClaimID: claimID, Actor: actor.ID})
	return nil
}

// PurgeObjects removes stored files for documents whose rows are already gone.
func (s *DocumentService) PurgeObjects(docs []models.ClaimDocument) {
	for _, d := range docs {
		if err := s.store.Delete(d.StorageKey); err != nil {
			s.log.WithError(err).WithField("key", d.StorageKey).Warn("Failed to delete stored document")
		}
	}
}

func findDocument(tx *gorm.DB, claimID, documentID uuid.UUID) (*models.ClaimDocument, error) {
	var doc models.ClaimDocument
	if err := tx.First(&doc, "id = ? AND claim_id = ?", documentID, claimID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrNotFound
		}
		return nil, workflow.StorageFailure(err)
	}
	return &doc, nil
}
