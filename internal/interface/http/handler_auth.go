package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/auth"
)

// Register handles account creation, returning the one-time raw API key.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "validation", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusCreated, resp)
}
