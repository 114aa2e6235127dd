package http

import (
	"github.com/gin-gonic/gin"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/auth"
)

const principalKey = "auth_principal"

func setPrincipal(c *gin.Context, p auth.Principal) {
	c.Set(principalKey, p)
}

func getPrincipal(c *gin.Context) (auth.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	principal, ok := value.(auth.Principal)
	return principal, ok
}
