package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/chat"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
)

type chatTurnPayload struct {
	SessionID    string `json:"sessionId"`
	CollectionID string `json:"collectionId"`
	Message      string `json:"message"`
	Mode         string `json:"mode"`
	Rerank       bool   `json:"rerank"`
}

// Chat streams one turn of a conversation as Server-Sent Events using a
// discriminated event envelope (delta/sources/done/error).
func (h *Handler) Chat(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	var req chatTurnPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", errMessage(err), err))
		return
	}
	collectionID, err := uuid.Parse(req.CollectionID)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid collectionId", err))
		return
	}
	var sessionID uuid.UUID
	if req.SessionID != "" {
		// An unparsable or foreign session id is treated identically to
		// uuid.Nil by chat.Service.resolveSession: it silently starts a
		// fresh session rather than erroring.
		sessionID, _ = uuid.Parse(req.SessionID)
	}

	stream, err := h.chatSvc.Turn(c.Request.Context(), chat.TurnRequest{
		OwnerID:      principal.UserID,
		SessionID:    sessionID,
		CollectionID: collectionID,
		Message:      req.Message,
		Mode:         retrieval.Mode(req.Mode),
		Rerank:       req.Rerank,
	})
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "internal", "streaming not supported", nil))
		return
	}

	for event := range stream {
		payload, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("marshal chat event failed", "error", err)
			continue
		}
		c.Writer.Write([]byte("data: "))
		c.Writer.Write(payload)
		c.Writer.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

// ListChatSessions returns the caller's sessions, optionally scoped to a collection.
func (h *Handler) ListChatSessions(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	filter := chat.ListFilter{OwnerID: principal.UserID}
	if raw := c.Query("collection_id"); raw != "" {
		collectionID, err := uuid.Parse(raw)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid collection_id", err))
			return
		}
		filter.CollectionID = collectionID
	}
	sessions, err := h.chatSvc.ListSessions(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": sessions})
}

// ListChatMessages returns a session's message history.
func (h *Handler) ListChatMessages(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid session id", err))
		return
	}
	messages, err := h.chatSvc.ListMessages(c.Request.Context(), principal.UserID, sessionID)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": messages})
}

// DeleteChatSession removes a session and its messages.
func (h *Handler) DeleteChatSession(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", "invalid session id", err))
		return
	}
	if err := h.chatSvc.DeleteSession(c.Request.Context(), principal.UserID, sessionID); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.Status(http.StatusNoContent)
}
