package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseledger/caseledger/internal/actors"
	"github.com/caseledger/caseledger/internal/auth"
	"github.com/caseledger/caseledger/internal/observability"
	"github.com/caseledger/caseledger/internal/records"
	recordhttp "github.com/caseledger/caseledger/internal/records/http"
	"github.com/caseledger/caseledger/internal/reporting"
	reporthttp "github.com/caseledger/caseledger/internal/reporting/http"
	"github.com/caseledger/caseledger/internal/shared"
	_ "github.com/caseledger/caseledger/internal/testing/guard"
)

func TestInTestModeUnderGuard(t *testing.T) {
	assert.True(t, InTestMode())
}

func TestRefreshTestModeFollowsEnvironment(t *testing.T) {
	t.Cleanup(RefreshTestMode)
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	assert.True(t, InTestMode(), "cached until refreshed")
	RefreshTestMode()
	assert.False(t, InTestMode())

	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "csrf")
	t.Setenv("DEMO_PASSWORD", "123")

	_, err := LoadConfig()
	require.EqualError(t, err, "session secret must be provided")

	cfg, err := LoadToolConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.RecordStore)
	assert.Equal(t, "*/15 * * * *", cfg.WarmupCron)
	assert.Equal(t, 5*time.Minute, cfg.SnapshotCacheTTL)
}

func TestValidateRecordStoreAndDirectory(t *testing.T) {
	cfg := &Config{SessionSecret: "s", CSRFSecret: "c", RecordStore: "sqlite", DemoPassword: "123"}
	require.EqualError(t, cfg.Validate(), `unknown record store "sqlite"`)

	cfg.RecordStore = StorePostgres
	require.NoError(t, cfg.Validate())

	cfg.DemoPassword = ""
	require.Error(t, cfg.Validate())

	cfg.DirectoryFile = "/etc/caseledger/directory.yaml"
	require.NoError(t, cfg.Validate())
}

func TestIsProduction(t *testing.T) {
	var nilCfg *Config
	assert.False(t, nilCfg.IsProduction())
	assert.True(t, (&Config{AppEnv: "production"}).IsProduction())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel(&Config{LogLevel: "DEBUG"}))
	assert.Equal(t, slog.LevelInfo, parseLevel(&Config{LogLevel: "verbose"}))
	assert.Equal(t, slog.LevelInfo, parseLevel(nil))
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &Config{AppEnv: "test", RecordStore: StoreMemory, SnapshotCacheTTL: time.Minute, DemoPassword: "123"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	directory, err := LoadDirectory(cfg)
	require.NoError(t, err)

	backend, err := OpenBackend(context.Background(), cfg, directory, client, logger)
	require.NoError(t, err)
	require.NotNil(t, backend.Cache)

	sessions := shared.NewSessionManager(client, "caseledger_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	audit := shared.NewAuditLogger(logger, nil)
	loader := records.NewLoader(backend.Repository, logger)
	authHandler := auth.NewHandler(logger, auth.NewService(directory, backend.Repository.Actors, logger), sessions, csrf, audit)

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		AuthHandler:    authHandler,
		RecordsHandler: recordhttp.NewHandler(logger, loader, audit, shared.NewIdempotencyStore(client, time.Hour)),
		ReportsHandler: reporthttp.NewHandler(logger, reporting.NewService(loader, logger), audit),
		ActorsHandler:  actors.NewHandler(logger, actors.NewService(backend.Repository, audit, logger)),
		Metrics:        observability.NewMetrics(),
	})
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "caseledger_http_requests_total")
}

func TestRouterAPIRequiresSession(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterLoginThenDashboard(t *testing.T) {
	router := newTestRouter(t)

	login := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"123"}`))
	login.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, login)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary reporting.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Len(t, summary.OfficeBreakdown, 1)
}

func TestDirectoryActorsCarryStableIDs(t *testing.T) {
	directory, err := auth.DemoDirectory("123")
	require.NoError(t, err)

	actors := directoryActors(context.Background(), directory)
	require.Len(t, actors, 4)
	assert.Equal(t, "actor-admin", actors[0].ID)
	assert.Nil(t, directoryActors(context.Background(), nil))
}
