package requestid

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const HeaderKey = "X-Request-Id"

// maxLen bounds ids accepted from clients so they can't bloat logs.
const maxLen = 128

// Gen returns a new random request id.
func Gen() string {
	return uuid.NewString()
}

// FromClient returns the id supplied by the caller, or "" if it is absent or unusable.
func FromClient(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxLen {
		return ""
	}
	for _, r := range v {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return v
}

// Middleware echoes or assigns X-Request-Id and stores it on the gin context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := FromClient(c.GetHeader(HeaderKey))
		if id == "" {
			id = Gen()
		}
		c.Header(HeaderKey, id)
		c.Set(HeaderKey, id)
		c.Next()
	}
}

// Get returns the request id stored by Middleware.
func Get(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(HeaderKey)
}
