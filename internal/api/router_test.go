package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/event-scraper/event-scraper/internal/config"
	"github.com/event-scraper/event-scraper/internal/jobs"
	"github.com/event-scraper/event-scraper/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// minimal storage.Storage mock for readiness tests
// ---------------------------------------------------------------------------

type readinessMockStorage struct{ existsErr error }

func (m *readinessMockStorage) Upload(_ context.Context, _ string, _ io.Reader, _ int64) (*storage.UploadResult, error) {
	return nil, nil
}
func (m *readinessMockStorage) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, storage.ErrNotFound
}
func (m *readinessMockStorage) Delete(_ context.Context, _ string) error { return nil }
func (m *readinessMockStorage) Exists(_ context.Context, _ string) (bool, error) {
	return false, m.existsErr
}
func (m *readinessMockStorage) List(_ context.Context, _ string) ([]string, error) { return nil, nil }

type stubRunner struct {
	err   error
	delay time.Duration
	calls int
}

func (s *stubRunner) Run(context.Context) error {
	s.calls++
	time.Sleep(s.delay)
	return s.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newHealthDB(t *testing.T, pingOK bool) *sql.DB {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if pingOK {
		mock.ExpectPing()
	} else {
		mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	}
	return db
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return body
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Security.CORS.AllowedOrigins = []string{"*"}
	cfg.Server.MaxBatchBytes = 1 << 20
	return cfg
}

func newTestRouter(t *testing.T, cfg *config.Config, svc Services) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	r, bg := NewRouter(cfg, db, svc)
	t.Cleanup(bg.Shutdown)
	return r, mock
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "192.0.2.1:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// healthCheckHandler
// ---------------------------------------------------------------------------

func TestHealthCheckHandler_Healthy(t *testing.T) {
	r := gin.New()
	r.GET("/health", healthCheckHandler(newHealthDB(t, true)))

	w := serve(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if body := decode(t, w); body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestHealthCheckHandler_Unhealthy(t *testing.T) {
	r := gin.New()
	r.GET("/health", healthCheckHandler(newHealthDB(t, false)))

	w := serve(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if body := decode(t, w); body["status"] != "unhealthy" {
		t.Errorf("status = %v, want unhealthy", body["status"])
	}
}

// ---------------------------------------------------------------------------
// readinessHandler
// ---------------------------------------------------------------------------

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		pingOK     bool
		store      storage.Storage
		wantStatus int
		wantReady  bool
	}{
		{"ready with storage", true, &readinessMockStorage{}, http.StatusOK, true},
		{"ready without storage", true, nil, http.StatusOK, true},
		{"database down", false, &readinessMockStorage{}, http.StatusServiceUnavailable, false},
		{"storage down", true, &readinessMockStorage{existsErr: errors.New("denied")}, http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/ready", readinessHandler(newHealthDB(t, tt.pingOK), tt.store))

			w := serve(r, http.MethodGet, "/ready", "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decode(t, w); body["ready"] != tt.wantReady {
				t.Errorf("ready = %v, want %v", body["ready"], tt.wantReady)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// versionHandler
// ---------------------------------------------------------------------------

func TestVersionHandler(t *testing.T) {
	r := gin.New()
	r.GET("/version", versionHandler())

	w := serve(r, http.MethodGet, "/version", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if body := decode(t, w); body["version"] != Version {
		t.Errorf("version = %v, want %s", body["version"], Version)
	}
}

// ---------------------------------------------------------------------------
// LoggerMiddleware
// ---------------------------------------------------------------------------

func TestLoggerMiddleware_PassesThrough(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError} {
		r := gin.New()
		r.Use(LoggerMiddleware(&config.Config{}))
		r.GET("/", func(c *gin.Context) { c.Status(status) })

		if w := serve(r, http.MethodGet, "/", ""); w.Code != status {
			t.Errorf("status = %d, want %d", w.Code, status)
		}
	}
}

// ---------------------------------------------------------------------------
// CORSMiddleware
// ---------------------------------------------------------------------------

func corsRequest(t *testing.T, origins []string, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	cfg := &config.Config{}
	cfg.Security.CORS.AllowedOrigins = origins
	cfg.Security.CORS.AllowedMethods = []string{"GET", "POST"}

	r := gin.New()
	r.Use(CORSMiddleware(cfg))
	r.Handle(method, "/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	w := corsRequest(t, []string{"https://example.com"}, http.MethodGet, "https://example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want https://example.com", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Errorf("Access-Control-Allow-Methods = %q, want GET, POST", got)
	}
}

func TestCORSMiddleware_Wildcard(t *testing.T) {
	w := corsRequest(t, []string{"*"}, http.MethodGet, "https://anything.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	w := corsRequest(t, []string{"https://allowed.com"}, http.MethodGet, "https://evil.com")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestCORSMiddleware_PreflightOptions(t *testing.T) {
	w := corsRequest(t, []string{"*"}, http.MethodOptions, "https://example.com")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 for OPTIONS preflight", w.Code)
	}
}

// ---------------------------------------------------------------------------
// NewRouter
// ---------------------------------------------------------------------------

func TestNewRouter_ScrapeRouteOnlyWithJob(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), Services{})
	if w := serve(r, http.MethodPost, "/api/scrape", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without pipeline job", w.Code)
	}
}

func TestNewRouter_ScrapeSuccess(t *testing.T) {
	runner := &stubRunner{}
	r, _ := newTestRouter(t, testConfig(), Services{PipelineJob: jobs.NewPipelineJob(runner)})

	w := serve(r, http.MethodPost, "/api/scrape", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["status"] != "success" || body["message"] != "Pipeline complete!" {
		t.Errorf("body = %v", body)
	}
	if runner.calls != 1 {
		t.Errorf("runner calls = %d, want 1", runner.calls)
	}
}

func TestNewRouter_ScrapeFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("push: events API returned 500")}
	r, _ := newTestRouter(t, testConfig(), Services{PipelineJob: jobs.NewPipelineJob(runner)})

	w := serve(r, http.MethodPost, "/api/scrape", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "error" || !strings.Contains(body["error"].(string), "events API returned 500") {
		t.Errorf("body = %v", body)
	}
}

func TestNewRouter_ScrapeOutlastsWriteTimeout(t *testing.T) {
	runner := &stubRunner{delay: 400 * time.Millisecond}
	r, _ := newTestRouter(t, testConfig(), Services{PipelineJob: jobs.NewPipelineJob(runner)})

	srv := httptest.NewUnstartedServer(r)
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/scrape", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/scrape: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "success" {
		t.Errorf("body = %v", body)
	}
}

func TestNewRouter_ScrapeStatus(t *testing.T) {
	runner := &stubRunner{}
	job := jobs.NewPipelineJob(runner)
	r, _ := newTestRouter(t, testConfig(), Services{PipelineJob: job})

	body := decode(t, serve(r, http.MethodGet, "/api/scrape", ""))
	if body["running"] != false || body["last_run"] != nil || body["last_error"] != nil {
		t.Errorf("before any run: body = %v", body)
	}

	runner.err = errors.New("clean: disk full")
	serve(r, http.MethodPost, "/api/scrape", "")

	body = decode(t, serve(r, http.MethodGet, "/api/scrape", ""))
	if body["last_run"] == nil {
		t.Error("last_run = nil after a run")
	}
	if body["last_error"] != "clean: disk full" {
		t.Errorf("last_error = %v, want clean: disk full", body["last_error"])
	}
}

func TestNewRouter_BatchIngest(t *testing.T) {
	r, mock := newTestRouter(t, testConfig(), Services{})
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w := serve(r, http.MethodPost, "/events/batch", `[{"name":"A","startdate":"2025-06-12"}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers on ingest route")
	}
}

func TestNewRouter_IngestRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimiting = config.RateLimitingConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}
	r, _ := newTestRouter(t, cfg, Services{})

	// Both requests are rejected as bodies; only the limiter decides the second.
	if w := serve(r, http.MethodPost, "/events/batch", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("first status = %d, want 400", w.Code)
	}
	if w := serve(r, http.MethodPost, "/events/batch", `{}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", w.Code)
	}
}

func TestNewRouter_PreflightOnIngest(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), Services{})
	if w := serve(r, http.MethodOptions, "/events/batch", ""); w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestNewRouter_PageGetsPageCSP(t *testing.T) {
	r, mock := newTestRouter(t, testConfig(), Services{})
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := serve(r, http.MethodGet, "/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if csp := w.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "style-src 'unsafe-inline'") {
		t.Errorf("Content-Security-Policy = %q", csp)
	}
}
