package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestMiddleware_GeneratesWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = Get(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	got := w.Header().Get(HeaderKey)
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected uuid request id, got %q: %v", got, err)
	}
	if seen != got {
		t.Fatalf("context id=%q header id=%q", seen, got)
	}
}

func TestMiddleware_EchoesClientID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderKey, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(HeaderKey); got != "abc-123" {
		t.Fatalf("got %q", got)
	}
}

func TestFromClient_RejectsUnusable(t *testing.T) {
	for _, in := range []string{"", "   ", "has space", strings.Repeat("a", maxLen+1), "tab\there"} {
		if got := FromClient(in); got != "" {
			t.Fatalf("FromClient(%q)=%q, want empty", in, got)
		}
	}
}
