// internal/handlers/document.go
package handlers

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/claimdesk-backend/internal/middleware"
	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/services"
	"github.com/javajoker/claimdesk-backend/internal/utils"
)

type DocumentHandler struct {
	documentService *services.DocumentService
	maxUploadBytes  int64
	log             logrus.FieldLogger
}

func NewDocumentHandler(documentService *services.DocumentService, maxUploadBytes int64, log logrus.FieldLogger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		maxUploadBytes:  maxUploadBytes,
		log:             log.WithField("handler", "documents"),
	}
}

// GET /v1/claims/:id/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	docs, err := h.documentService.ListDocuments(c.Request.Context(), claimID, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, docs)
}

// POST /v1/claims/:id/documents
// multipart form: file (required), doc_type (optional preferred slot)
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "File is required", nil)
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		utils.BadRequestResponse(c, "File too large", gin.H{"max_bytes": h.maxUploadBytes})
		return
	}

	preferred := models.DocumentType(c.PostForm("doc_type"))
	if preferred != "" && !preferred.Valid() {
		utils.ValidationErrorResponse(c, []utils.ValidationError{{
			Field:   "doc_type",
			Tag:     "doc_type",
			Message: "Unknown document type",
		}})
		return
	}

	// Read the upload into memory
	src, err := file.Open()
	if err != nil {
		utils.BadRequestResponse(c, "Unable to read file", nil)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		utils.BadRequestResponse(c, "Unable to read file", nil)
		return
	}

	doc, err := h.documentService.UploadDocument(c.Request.Context(), claimID, actor, &services.UploadDocumentRequest{
		FileName:      file.Filename,
		ContentType:   file.Header.Get("Content-Type"),
		Data:          data,
		PreferredType: preferred,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.CreatedResponse(c, doc)
}

// GET /v1/claims/:id/documents/:docId
func (h *DocumentHandler) DownloadDocument(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}
	documentID, ok := pathID(c, "docId")
	if !ok {
		return
	}

	download, err := h.documentService.DownloadURL(c.Request.Context(), claimID, documentID, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, download)
}

// DELETE /v1/claims/:id/documents/:docId
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}
	documentID, ok := pathID(c, "docId")
	if !ok {
		return
	}

	if err := h.documentService.DeleteDocument(c.Request.Context(), claimID, documentID, actor); err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"id": documentID, "deleted": true})
}
