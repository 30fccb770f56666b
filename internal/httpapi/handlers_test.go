package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"catalog-platform/internal/kvstore"
	"catalog-platform/internal/tenant"
	"catalog-platform/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type staticProvider struct{ raw string }

func (p staticProvider) Authenticate(context.Context) (string, bool, error) { return p.raw, true, nil }
func (p staticProvider) Renew(context.Context, time.Duration) (string, error) {
	return p.raw, nil
}
func (p staticProvider) Logout(context.Context) error { return nil }

func mint(t *testing.T, ttl time.Duration) string {
	t.Helper()
	claims := token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "sub-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Email: "ada@example.com",
		Roles: []string{token.RoleEditor},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return raw
}

type staticLister struct{ tenants []tenant.Tenant }

func (l staticLister) AccessibleTenants(context.Context) ([]tenant.Tenant, error) {
	return l.tenants, nil
}

type flakyLister struct {
	mu      sync.Mutex
	fail    bool
	tenants []tenant.Tenant
}

func (l *flakyLister) AccessibleTenants(context.Context) ([]tenant.Tenant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return nil, errors.New("directory unreachable")
	}
	return l.tenants, nil
}

func (l *flakyLister) recover() {
	l.mu.Lock()
	l.fail = false
	l.mu.Unlock()
}

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := token.NewManager(staticProvider{raw: mint(t, time.Hour)}, nil, token.Config{}, nil)
	if _, err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	store := kvstore.NewMemory().Client("test")
	ts := tenant.NewContextStore(store, staticLister{tenants: []tenant.Tenant{
		{ID: "t-a", Name: "Acme"},
		{ID: "t-b", Name: "Borealis"},
	}}, nil)
	if err := ts.Init(context.Background()); err != nil {
		t.Fatalf("tenant init: %v", err)
	}

	return &Handlers{
		Tokens:  m,
		Tenants: ts,
		Locks:   tenant.NewLockRegistry(),
	}
}

func TestSession_ReportsClaimsAndOneTimeRedirect(t *testing.T) {
	h := newTestHandlers(t)
	h.MarkLandingPending()

	r := gin.New()
	r.GET("/session", h.Session)

	do := func() map[string]any {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/session", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status %d", w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return body
	}

	first := do()
	if first["authenticated"] != true || first["email"] != "ada@example.com" {
		t.Fatalf("unexpected session body %v", first)
	}
	if first["redirect_to"] != "/landing" {
		t.Fatalf("expected one-time landing redirect, got %v", first["redirect_to"])
	}

	second := do()
	if _, ok := second["redirect_to"]; ok {
		t.Fatalf("landing redirect must be consumed exactly once")
	}
}

func TestSelect_RejectedWhileLocked(t *testing.T) {
	h := newTestHandlers(t)
	reason := "unsaved diagram"
	h.Locks.SetLock("editor", &reason)

	r := gin.New()
	r.PUT("/tenant/selection", h.Select)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/tenant/selection", strings.NewReader(`{"tenant_id":"t-b"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while locked, got %d", w.Code)
	}

	h.Locks.SetLock("editor", nil)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/tenant/selection", strings.NewReader(`{"tenant_id":"t-b"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after unlock, got %d", w.Code)
	}
	if got := h.Tenants.SelectedTenantID(); got != "t-b" {
		t.Fatalf("selection not applied, got %q", got)
	}
}

func TestReloadTenants_RetriesAfterFailedStartupFetch(t *testing.T) {
	gin.SetMode(gin.TestMode)

	lister := &flakyLister{fail: true, tenants: []tenant.Tenant{{ID: "t-a", Name: "Acme"}}}
	ts := tenant.NewContextStore(kvstore.NewMemory().Client("test"), lister, nil)
	if err := ts.Init(context.Background()); !errors.Is(err, tenant.ErrListUnavailable) {
		t.Fatalf("expected unavailable list at init, got %v", err)
	}

	h := &Handlers{Tenants: ts}
	r := gin.New()
	r.POST("/tenant/reload", h.ReloadTenants)

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tenant/reload", nil))
		return w
	}

	if w := do(); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the list is unavailable, got %d", w.Code)
	}

	lister.recover()
	w := do()
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 once the list loads, got %d", w.Code)
	}
	// Reconciliation runs on the retry: a singleton list forces the selection.
	if got := ts.SelectedTenantID(); got != "t-a" {
		t.Fatalf("retry must reconcile the selection, got %q", got)
	}
}

func TestRequireSession_BlocksUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m := token.NewManager(staticProvider{raw: mint(t, -time.Hour)}, nil, token.Config{}, nil)
	if _, err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	r := gin.New()
	r.Use(RequireSession(m))
	r.GET("/ping", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with expired token, got %d", w.Code)
	}
}
