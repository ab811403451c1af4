package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/gemini-proxy/internal/config"
	"github.com/r9s-ai/gemini-proxy/internal/cors"
	"github.com/r9s-ai/gemini-proxy/internal/proxy"
	"github.com/r9s-ai/gemini-proxy/internal/requestid"
	"github.com/r9s-ai/gemini-proxy/internal/version"
)

// NewRouter wires the proxy handler and the service endpoints.
// accessLogger may be nil to disable access logging.
func NewRouter(cfg *config.Config, h *proxy.Handler, accessLogger *log.Logger, accessColor bool) *gin.Engine {
	r := gin.New()
	r.Use(requestid.Middleware())
	if accessLogger != nil {
		r.Use(requestLoggerWithColor(accessLogger, accessColor))
	}
	r.Use(gin.Recovery())
	r.Use(cors.Middleware(cfg.CORS.AllowOrigin))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	})

	// The handler owns method dispatch: OPTIONS preflight, POST, 405 otherwise.
	r.Any(cfg.Handler.Path, h.Serve)

	return r
}
