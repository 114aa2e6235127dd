package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/ingestion"
)

// UploadDocument accepts either a multipart file upload or a JSON
// {"collectionId","url"} body and enqueues ingestion.
func (h *Handler) UploadDocument(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}

	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "multipart/form-data") {
		h.uploadRawDocument(c, principal.UserID)
		return
	}
	h.uploadURLDocument(c, principal.UserID)
}

func (h *Handler) uploadRawDocument(c *gin.Context, ownerID int64) {
	collectionID, err := uuid.Parse(c.PostForm("collectionId"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid collectionId", err))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "file is required", err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "failed to read upload", err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "internal", "failed to read file", err))
		return
	}
	doc, err := h.ingestionSvc.Upload(c.Request.Context(), ownerID, ingestion.UploadRequest{
		CollectionID: collectionID,
		Title:        c.PostForm("title"),
		Filename:     fileHeader.Filename,
		Content:      data,
	})
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusAccepted, doc)
}

type urlUploadPayload struct {
	CollectionID string `json:"collectionId"`
	Title        string `json:"title"`
	URL          string `json:"url"`
}

func (h *Handler) uploadURLDocument(c *gin.Context, ownerID int64) {
	var req urlUploadPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", errMessage(err), err))
		return
	}
	collectionID, err := uuid.Parse(req.CollectionID)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid collectionId", err))
		return
	}
	doc, err := h.ingestionSvc.SubmitURL(c.Request.Context(), ownerID, ingestion.URLRequest{
		CollectionID: collectionID,
		Title:        req.Title,
		URL:          req.URL,
	})
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusAccepted, doc)
}

// ListDocuments lists documents in a collection, optionally filtered by status.
func (h *Handler) ListDocuments(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	collectionID, err := uuid.Parse(c.Query("collection_id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "collection_id is required", err))
		return
	}
	filter := ingestion.Filter{CollectionID: &collectionID, Statuses: parseDocumentStatuses(c.Query("status"))}
	docs, err := h.ingestionSvc.List(c.Request.Context(), principal.UserID, filter)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": docs})
}

// GetDocument returns one document's metadata.
func (h *Handler) GetDocument(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid document id", err))
		return
	}
	doc, err := h.ingestionSvc.Get(c.Request.Context(), principal.UserID, id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, doc)
}

type documentPatchPayload struct {
	Status *string `json:"status"`
}

// PatchDocument supports the one mutable document transition HTTP exposes:
// cancelling an in-flight job. Title/metadata are immutable post-ingestion.
func (h *Handler) PatchDocument(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid document id", err))
		return
	}
	var req documentPatchPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", errMessage(err), err))
		return
	}
	if req.Status == nil || *req.Status != "cancelled" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", `only {"status":"cancelled"} is supported`, nil))
		return
	}
	if err := h.ingestionSvc.Cancel(c.Request.Context(), principal.UserID, id); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	doc, err := h.ingestionSvc.Get(c.Request.Context(), principal.UserID, id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteDocument removes a document, its chunks, and its blob.
func (h *Handler) DeleteDocument(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid document id", err))
		return
	}
	if err := h.ingestionSvc.Delete(c.Request.Context(), principal.UserID, id); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// DocumentStatus returns the ingestion state machine's current snapshot.
func (h *Handler) DocumentStatus(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid document id", err))
		return
	}
	doc, err := h.ingestionSvc.Status(c.Request.Context(), principal.UserID, id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      doc.Status,
		"chunkCount":  doc.ChunkCount,
		"totalTokens": doc.TotalTokens,
		"processing":  doc.Processing,
		"updatedAt":   doc.UpdatedAt,
	})
}

// DocumentURL issues a signed URL for the document's stored blob.
func (h *Handler) DocumentURL(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid document id", err))
		return
	}
	url, err := h.ingestionSvc.SignedURL(c.Request.Context(), principal.UserID, id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func parseDocumentStatuses(raw string) []ingestion.Status {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]ingestion.Status, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, ingestion.Status(part))
		}
	}
	return out
}
