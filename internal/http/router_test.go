package httpapi

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-geochat-backend/internal/auth"
	"github.com/tbourn/go-geochat-backend/internal/config"
	"github.com/tbourn/go-geochat-backend/internal/events"
	"github.com/tbourn/go-geochat-backend/internal/http/handlers"
	"github.com/tbourn/go-geochat-backend/internal/repo"
	"github.com/tbourn/go-geochat-backend/internal/services"
	"github.com/tbourn/go-geochat-backend/internal/store"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
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

func newTestHandlers(t *testing.T, apiKey string) *handlers.Handlers {
	t.Helper()
	db := newTestDB(t)
	pub := events.NewPublisher("", "")
	sessions := store.NewSessionStore(store.NewTiered("sessions", store.NewMemoryBackend()))
	invites := store.NewInvitationStore(store.NewTiered("invitations", store.NewMemoryBackend()), 24*time.Hour)
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	return handlers.New(handlers.Deps{
		Auth:        services.NewAuthService(db, sessions, hasher, pub),
		Users:       services.NewUserService(db, sessions, hasher, pub),
		Chats:       services.NewChatService(db, pub),
		Invitations: services.NewInvitationService(db, invites, pub),
		Blocks:      services.NewBlockService(db, pub),
		Poll:        services.NewPollService(db),
		APIKey:      apiKey,
	})
}

func newTestEngine(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestHandlers(t, "k"), cfg)
	return r
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api",
		Security:    config.SecurityConfig{EnableHSTS: false},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func decodeEnvelope(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("json: %v (%s)", err, body)
	}
	return raw
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newTestEngine(t, baseConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); !strings.Contains(got, "no-store") {
		t.Fatalf("expected no-store, got %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	raw := decodeEnvelope(t, w.Body.Bytes())
	if raw["success"] != false || raw["error_code"] != "ROUTE_404" || raw["message"] != "Ruta no encontrada" {
		t.Fatalf("unexpected 404 body: %v", raw)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/login", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/login expected 405, got %d", w.Code)
	}
	if raw := decodeEnvelope(t, w.Body.Bytes()); raw["error_code"] != "METHOD_405" {
		t.Fatalf("unexpected 405 body: %v", raw)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r := newTestEngine(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "http://evil.test" {
		t.Fatalf("origin outside allowlist must not be echoed")
	}
}

func TestRegisterRoutes_APIMountedUnderBasePath(t *testing.T) {
	cfg := baseConfig()
	cfg.APIBasePath = "/v2"
	r := newTestEngine(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v2/conexion", strings.NewReader(`{"apikey":"k"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /v2/conexion = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/docs", nil))
	raw := decodeEnvelope(t, w.Body.Bytes())
	data, _ := raw["data"].(map[string]any)
	if data["base_url"] != "/v2" {
		t.Fatalf("catalogue base_url = %v", data["base_url"])
	}
}

func TestRegisterRoutes_Gzip(t *testing.T) {
	cfg := baseConfig()
	cfg.GzipEnabled = true
	r := newTestEngine(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/docs", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, headers=%v", w.Header())
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip: %v", err)
	}
	if raw := decodeEnvelope(t, body); raw["success"] != true {
		t.Fatalf("unexpected body: %v", raw)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	r := newTestEngine(t, baseConfig())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("swagger disabled, expected 404, got %d", w.Code)
	}

	cfg := baseConfig()
	cfg.SwaggerEnabled = true
	r = newTestEngine(t, cfg)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "GeoChat API") {
		t.Fatalf("GET /swagger/doc.json = %d %s", w.Code, w.Body.String())
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

func TestPipeline_RequestIDAndSecurityHeaders(t *testing.T) {
	cfg := baseConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	r := newTestEngine(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "rid-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid != "rid-123" {
		t.Fatalf("expected propagated X-Request-ID, got %q", rid)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected nosniff header")
	}
}
