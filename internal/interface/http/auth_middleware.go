package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/auth"
)

// authMiddleware validates the Authorization: Bearer <key> header against
// auth.Service and attaches the resolved Principal to the gin context. Keys
// are long-lived and scope-bound; there is no session login.
func authMiddleware(svc auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "invalid authorization header", nil))
			return
		}
		rawKey := strings.TrimSpace(parts[1])
		principal, err := svc.Authenticate(c.Request.Context(), rawKey)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "invalid api key", err))
			return
		}
		setPrincipal(c, principal)
		c.Next()
	}
}

// requireScope aborts with 403 unless the authenticated principal carries
// the named capability tag. Must run after authMiddleware.
func requireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := getPrincipal(c)
		if !ok {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "authentication", "missing principal", nil))
			return
		}
		if !principal.HasScope(scope) {
			abortWithError(c, NewHTTPError(http.StatusForbidden, "permission", "missing required scope: "+scope, nil))
			return
		}
		c.Next()
	}
}
