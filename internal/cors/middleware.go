package cors

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	AllowMethods = "GET,OPTIONS,PATCH,DELETE,POST,PUT"
	AllowHeaders = "X-CSRF-Token, X-Requested-With, Accept, Accept-Version, Content-Length, Content-MD5, Content-Type, Date, X-Api-Version"
)

// Middleware sets permissive cross-origin headers on every response.
// It does not answer preflight requests itself; that is left to the route.
func Middleware(allowOrigin string) gin.HandlerFunc {
	origin := strings.TrimSpace(allowOrigin)
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", AllowMethods)
		h.Set("Access-Control-Allow-Headers", AllowHeaders)
		c.Next()
	}
}
