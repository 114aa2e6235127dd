package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/collection"
)

// CreateCollection creates a new collection owned by the caller.
func (h *Handler) CreateCollection(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	var req collection.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", errMessage(err), err))
		return
	}
	col, err := h.collectionSvc.Create(c.Request.Context(), principal.UserID, req)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusCreated, col)
}

// ListCollections returns every collection owned by the caller.
func (h *Handler) ListCollections(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	cols, err := h.collectionSvc.List(c.Request.Context(), principal.UserID)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cols})
}

// GetCollection returns a single collection.
func (h *Handler) GetCollection(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid collection id", err))
		return
	}
	col, err := h.collectionSvc.Get(c.Request.Context(), principal.UserID, id)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, col)
}

// UpdateCollection partially updates a collection's mutable fields.
func (h *Handler) UpdateCollection(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid collection id", err))
		return
	}
	var req collection.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", errMessage(err), err))
		return
	}
	col, err := h.collectionSvc.Update(c.Request.Context(), principal.UserID, id, req)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, col)
}

// DeleteCollection removes a collection and cascades to its documents.
func (h *Handler) DeleteCollection(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid collection id", err))
		return
	}
	if err := h.collectionSvc.Delete(c.Request.Context(), principal.UserID, id); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.Status(http.StatusNoContent)
}
