package logger

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	l := slog.New(slog.NewJSONHandler(buf, nil))

	r := gin.New()
	r.Use(RequestLogger(l))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/session", func(c *gin.Context) {
		FromGin(c).Info("checked")
		c.JSON(200, gin.H{"authenticated": false})
	})
	return r
}

func TestRequestLogger_EmitsSummaryWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRouter(&buf)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set(headerRequestID, "rid-42")
	r.ServeHTTP(w, req)

	if got := w.Header().Get(headerRequestID); got != "rid-42" {
		t.Fatalf("request id not echoed, got %q", got)
	}
	out := buf.String()
	if !strings.Contains(out, `"request_id":"rid-42"`) {
		t.Fatalf("summary missing request id: %s", out)
	}
	if !strings.Contains(out, `"path":"/session"`) || !strings.Contains(out, `"status":200`) {
		t.Fatalf("summary missing request fields: %s", out)
	}
	// The handler's own line carries the same request-scoped attributes.
	if !strings.Contains(out, `"msg":"checked"`) {
		t.Fatalf("handler log line missing: %s", out)
	}
}

func TestRequestLogger_GeneratesIDWhenAbsent(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRouter(&buf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/session", nil))

	if w.Header().Get(headerRequestID) == "" {
		t.Fatalf("expected a generated request id header")
	}
}

func TestRequestLogger_SkipsHealthProbes(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRouter(&buf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("health probe status %d", w.Code)
	}
	if buf.Len() != 0 {
		t.Fatalf("health probes must not be logged: %s", buf.String())
	}
}
