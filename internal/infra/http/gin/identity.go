package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const (
	principalContextKey = "cspace.principal"
	userIDHeader        = "X-User-ID"
)

// principal is the caller as asserted by the upstream auth proxy.
type principal struct {
	ID string
}

// Identity reads the caller id the auth proxy forwards. Requests without it
// stay anonymous; handlers that need a caller reject them.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(userIDHeader)); id != "" {
			c.Set(principalContextKey, principal{ID: id})
		}
		c.Next()
	}
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireUser(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	return p, true
}
