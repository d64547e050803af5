package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-resilient-api/internal/config"
	"github.com/tbourn/go-resilient-api/internal/repo"
	"github.com/tbourn/go-resilient-api/internal/resilience"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"), repo.Options{Silent: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:  "/api/v1",
		MaxBodyBytes: 1 << 20,
		RateRPS:      100,
		RateBurst:    50,
		OTEL:         config.OTELConfig{ServiceName: "test-svc"},
		Resilience:   resilience.DefaultConfig(),
	}
}

func newEngine(t *testing.T, cfg config.Config) (*gin.Engine, *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), cfg, zerolog.New(&logs))
	return r, &logs
}

func hit(r *gin.Engine, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newEngine(t, testConfig())

	w := hit(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://any.example"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	w = hit(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	w = hit(r, http.MethodGet, "/nope", "", map[string]string{"X-Request-ID": "rid-404"})
	var env map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	if w.Code != http.StatusNotFound || env["error"] != "NOT_FOUND" || env["requestId"] != "rid-404" || env["path"] != "/nope" {
		t.Fatalf("GET /nope: %d %v", w.Code, env)
	}

	w = hit(r, http.MethodPost, "/health", "", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	if w.Code != http.StatusMethodNotAllowed || env["error"] != "HTTP_ERROR" {
		t.Fatalf("POST /health: %d %v", w.Code, env)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newEngine(t, cfg)

	w := hit(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_ItemLifecycleUnderBasePath(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	r, logs := newEngine(t, cfg)

	ct := map[string]string{"Content-Type": "application/json"}
	w := hit(r, http.MethodPost, "/api/v2/items", `{"name":"Lamp"}`, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	w = hit(r, http.MethodPost, "/api/v2/items", `{"name":"lamp"}`, ct)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"DATABASE_ERROR"`) {
		t.Fatalf("duplicate: %d %s", w.Code, w.Body.String())
	}
	if w := hit(r, http.MethodGet, "/api/v2/items", "", nil); w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	if w := hit(r, http.MethodGet, "/api/v1/items", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("old base path must 404, got %d", w.Code)
	}

	// The boundary and the access log each log the failure once.
	if n := strings.Count(logs.String(), "Exception: DATABASE_ERROR"); n != 1 {
		t.Fatalf("expected one boundary log, got %d:\n%s", n, logs.String())
	}
}

func TestRegisterRoutes_RateLimitUsesEnvelope(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 1
	r, _ := newEngine(t, cfg)

	if w := hit(r, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("first: %d", w.Code)
	}
	w := hit(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusTooManyRequests || !strings.Contains(w.Body.String(), `"RATE_LIMIT_EXCEEDED"`) {
		t.Fatalf("second: %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRegisterRoutes_GzipEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.GzipEnabled = true
	r, _ := newEngine(t, cfg)

	w := hit(r, http.MethodGet, "/health", "", map[string]string{"Accept-Encoding": "gzip"})
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, headers=%v", w.Header())
	}
}

func TestRegisterRoutes_BodyLimitIs413(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 16
	r, _ := newEngine(t, cfg)

	w := hit(r, http.MethodPost, "/api/v1/items", `{"name":"`+strings.Repeat("x", 64)+`"}`,
		map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d %s", w.Code, w.Body.String())
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func Test_repoShims_Proxy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	it, err := itemRepoShim{}.CreateItem(ctx, db, "Lamp", "lamp", "")
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if got, err := (itemRepoShim{}).GetItem(ctx, db, it.ID); err != nil || got.ID != it.ID {
		t.Fatalf("GetItem: %v %v", got, err)
	}
	if n, err := (itemRepoShim{}).CountItems(ctx, db); err != nil || n != 1 {
		t.Fatalf("CountItems: %d %v", n, err)
	}
	if page, err := (itemRepoShim{}).ListItemsPage(ctx, db, 0, 10); err != nil || len(page) != 1 {
		t.Fatalf("ListItemsPage: %v %v", page, err)
	}
	if err := (itemRepoShim{}).DeleteItem(ctx, db, it.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if u, err := (uploadRepoShim{}).CreateUpload(ctx, db, "a.txt", 1, strings.Repeat("0", 64)); err != nil || u.ID == "" {
		t.Fatalf("CreateUpload: %v %v", u, err)
	}
}
