package auth_test

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
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/auth"
	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/shared"
	_ "github.com/caseledger/caseledger/testing"
)

type authEnv struct {
	router http.Handler
	store  *records.MemoryStore
}

func newAuthEnv(t *testing.T, actors ...access.Actor) *authEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")

	dir, err := auth.DemoDirectory("123")
	require.NoError(t, err)
	store := records.NewMemoryStore(records.Snapshot{}, actors)
	svc := auth.NewService(dir, store.Repository().Actors, nil)
	handler := auth.NewHandler(nil, svc, sessions, csrf, shared.NewAuditLogger(nil, nil))

	r := chi.NewRouter()
	r.Use(sessions.Middleware(slogDiscard()))
	r.Use(shared.CSRFMiddleware(csrf, slogDiscard(), "/auth/login"))
	r.Route("/auth", handler.MountRoutes)
	return &authEnv{router: r, store: store}
}

type loginResult struct {
	Actor     access.Actor `json:"actor"`
	CSRFToken string       `json:"csrf_token"`
}

func (e *authEnv) login(t *testing.T, username, password string) (*httptest.ResponseRecorder, []*http.Cookie, loginResult) {
	t.Helper()
	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	e.router.ServeHTTP(res, req)
	var out loginResult
	if res.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	}
	return res, res.Result().Cookies(), out
}

func (e *authEnv) do(method, path string, cookies []*http.Cookie, csrf string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	if csrf != "" {
		req.Header.Set(shared.CSRFHeader, csrf)
	}
	res := httptest.NewRecorder()
	e.router.ServeHTTP(res, req)
	return res
}

func TestLoginIssuesSessionAndToken(t *testing.T) {
	env := newAuthEnv(t)
	res, cookies, out := env.login(t, "manager", "123")
	require.Equal(t, http.StatusOK, res.Code)
	require.NotEmpty(t, cookies)
	assert.NotEmpty(t, out.CSRFToken)
	assert.Equal(t, access.RoleManager, out.Actor.Role)
	assert.Equal(t, auth.DemoOffice, out.Actor.OfficeName)
	assert.True(t, out.Actor.Capabilities.Allows(access.CategoryReports, access.ActionExport))

	session := env.do(http.MethodGet, "/auth/session", cookies, "")
	require.Equal(t, http.StatusOK, session.Code)
	assert.Contains(t, session.Body.String(), `"username":"manager"`)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newAuthEnv(t)
	res, _, _ := env.login(t, "manager", "wrong")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res, _, _ = env.login(t, "nobody", "123")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res, _, _ = env.login(t, "", "")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestStoredActorOverridesDirectory(t *testing.T) {
	stored := access.Actor{
		ID: "u-7", Username: "entry", Role: access.RoleEntry, Scope: access.ScopeOfficeOnly,
		OfficeName: "بنغازي", Status: access.StatusActive, Capabilities: access.Preset(access.RoleInquiry),
	}
	env := newAuthEnv(t, stored)
	res, cookies, out := env.login(t, "entry", "123")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "u-7", out.Actor.ID)
	assert.Equal(t, "بنغازي", out.Actor.OfficeName)
	assert.False(t, out.Actor.Capabilities.Allows(access.CategoryFallen, access.ActionEdit))

	// Disabling the stored record locks out the live session on its next request.
	require.NoError(t, env.store.UpdateStatus(context.Background(), "u-7", access.StatusDisabled))
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/auth/session", cookies, "").Code)

	res, _, _ = env.login(t, "entry", "123")
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestLogoutRequiresCSRF(t *testing.T) {
	env := newAuthEnv(t)
	_, cookies, out := env.login(t, "inquiry", "123")

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/auth/logout", cookies, "").Code)
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodPost, "/auth/logout", cookies, out.CSRFToken).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/auth/session", cookies, "").Code)
}

func TestParseDirectory(t *testing.T) {
	raw := []byte(`
users:
  - username: clerk
    name: موظف
    password_hash: "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z8G0uWmkd2J4rQeZrRuWWnZa"
    role: مدخل بيانات
    access_scope: office_only
    office_name: مصراتة
    capabilities: [fallen.view, reports.export]
  - username: boss
    password_hash: "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z8G0uWmkd2J4rQeZrRuWWnZa"
    role: admin
    access_scope: all_offices
`)
	dir, err := auth.ParseDirectory(raw)
	require.NoError(t, err)

	clerk, err := dir.FindByUsername(context.Background(), "CLERK")
	require.NoError(t, err)
	assert.Equal(t, access.RoleEntry, clerk.Role)
	assert.Equal(t, []access.Capability{
		{Category: access.CategoryFallen, Action: access.ActionView},
		{Category: access.CategoryReports, Action: access.ActionExport},
	}, clerk.Capabilities.Granted())

	boss, err := dir.FindByUsername(context.Background(), "boss")
	require.NoError(t, err)
	assert.Equal(t, access.Preset(access.RoleAdmin), boss.Capabilities)
	assert.Equal(t, access.ScopeAllOffices, boss.Scope)

	_, err = auth.ParseDirectory([]byte("users:\n  - username: x\n    password_hash: plain\n"))
	assert.Error(t, err)
	_, err = auth.ParseDirectory([]byte("users:\n  - username: x\n    password_hash: \"$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z8G0uWmkd2J4rQeZrRuWWnZa\"\n    capabilities: [fallen.fly]\n"))
	assert.Error(t, err)
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
