package server

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/gemini-proxy/internal/logx"
	"github.com/r9s-ai/gemini-proxy/internal/proxy"
	"github.com/r9s-ai/gemini-proxy/internal/requestid"
)

func requestLoggerWithColor(l *log.Logger, color bool) gin.HandlerFunc {
	if l == nil {
		l = log.New(os.Stdout, "", log.LstdFlags)
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)

		fields := map[string]any{
			"latency_ms": latency.Milliseconds(),
		}
		if v := requestid.Get(c); v != "" {
			fields["request_id"] = v
		}
		if v, ok := c.Get(proxy.CtxMode); ok {
			fields["mode"] = v
		}
		if v, ok := c.Get(proxy.CtxModel); ok {
			fields["model"] = v
		}
		if v, ok := c.Get(proxy.CtxError); ok {
			fields["error"] = v
		}

		l.Println(logx.AccessLine(time.Now(), status, latency, c.ClientIP(), c.Request.Method, c.Request.URL.Path, fields, color))
	}
}
