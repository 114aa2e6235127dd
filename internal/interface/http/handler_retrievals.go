package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
)

type retrievalPayload struct {
	CollectionID string         `json:"collectionId"`
	Query        string         `json:"query"`
	Mode         string         `json:"mode"`
	TopK         int            `json:"topK"`
	Rerank       bool           `json:"rerank"`
	DocumentIDs  []string       `json:"documentIds"`
	Filter       map[string]any `json:"filter"`
}

// Retrieve runs a single retrieval request against a collection.
func (h *Handler) Retrieve(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	var req retrievalPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", errMessage(err), err))
		return
	}
	collectionID, err := uuid.Parse(req.CollectionID)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid collectionId", err))
		return
	}
	docIDs := make([]uuid.UUID, 0, len(req.DocumentIDs))
	for _, raw := range req.DocumentIDs {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid documentIds entry", err))
			return
		}
		docIDs = append(docIDs, parsed)
	}

	result, err := h.retrievalSvc.Retrieve(c.Request.Context(), retrieval.Query{
		OwnerID:      principal.UserID,
		CollectionID: collectionID,
		Text:         req.Query,
		Mode:         retrieval.Mode(req.Mode),
		TopK:         req.TopK,
		Rerank:       req.Rerank,
		DocumentIDs:  docIDs,
		Filter:       req.Filter,
	})
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, result)
}
