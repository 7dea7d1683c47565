package shared

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0, 120)
	assert.Equal(t, Pagination{Page: 1, PerPage: 50, Total: 120, TotalPages: 3}, p)

	items := make([]int, 120)
	for i := range items {
		items[i] = i
	}
	last := Page(items, NewPagination(3, 50, 120))
	assert.Len(t, last, 20)
	assert.Equal(t, 100, last[0])

	assert.Empty(t, Page(items, NewPagination(9, 50, 120)))
	assert.Equal(t, 500, NewPagination(1, 10000, 1).PerPage)

	r := httptest.NewRequest(http.MethodGet, "/fallen?page=2&per_page=10", nil)
	assert.Equal(t, Pagination{Page: 2, PerPage: 10, Total: 25, TotalPages: 3}, PaginationFromRequest(r, 25))
}

func TestRespondErrorMapping(t *testing.T) {
	denied := access.Require(access.Actor{}, access.CategoryReports, access.ActionExport)
	cases := []struct {
		err  error
		code int
	}{
		{denied, http.StatusForbidden},
		{&records.ValidationError{Fields: map[string]string{"name": "required"}}, http.StatusBadRequest},
		{fmt.Errorf("load: %w", records.ErrNotFound), http.StatusNotFound},
		{records.ErrUnavailable, http.StatusServiceUnavailable},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrIdempotencyConflict, http.StatusConflict},
		{ErrAccountDisabled, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}

	rec := httptest.NewRecorder()
	RespondError(rec, denied)
	assert.Contains(t, rec.Body.String(), "ليس لديك صلاحية التصدير")
}

func TestIdempotencyStore(t *testing.T) {
	mr, client := newRedis(t)
	store := NewIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "k1", "fallen"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "k1", "fallen"), ErrIdempotencyConflict)
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "dependents"))
	assert.True(t, mr.Exists("caseledger:idempotency:fallen:k1"))

	require.NoError(t, store.Delete(ctx, "k1", "fallen"))
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "fallen"))

	mr.FastForward(2 * time.Minute)
	require.NoError(t, store.CheckAndInsert(ctx, "k1", "fallen"))

	require.NoError(t, store.CheckAndInsert(ctx, "", "fallen"))
	require.Error(t, store.CheckAndInsert(ctx, "k2", ""))

	var disabled *IdempotencyStore
	require.NoError(t, disabled.CheckAndInsert(ctx, "k1", "fallen"))
}

func TestCSRFTokens(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "s1"}

	token, err := m.EnsureToken(sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	require.NoError(t, m.VerifyToken(sess, token))
	require.ErrorIs(t, m.VerifyToken(sess, "forged"), ErrCSRFTokenMismatch)
	require.ErrorIs(t, m.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	require.ErrorIs(t, m.VerifyToken(&Session{ID: "s2"}, token), ErrCSRFTokenMissing)
}

func TestSessionRoundTrip(t *testing.T) {
	_, client := newRedis(t)
	sm := NewSessionManager(client, "caseledger_session", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	login := sm.Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		require.NoError(t, sm.Renew(r.Context(), sess))
		sess.SetUsername("manager")
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	login.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	var seen string
	whoami := sm.Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context()).Username()
	}))
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(cookies[0])
	whoami.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "manager", seen)

	anon := httptest.NewRecorder()
	whoami.ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, anon.Result().Cookies())
}

func TestCSRFMiddleware(t *testing.T) {
	m := NewCSRFManager("secret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := &Session{ID: "s1"}
	token, err := m.EnsureToken(sess)
	require.NoError(t, err)

	handler := CSRFMiddleware(m, logger, "/auth/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	do := func(method, path, header string) int {
		req := httptest.NewRequest(method, path, nil)
		req = req.WithContext(ContextWithSession(req.Context(), sess))
		if header != "" {
			req.Header.Set(CSRFHeader, header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do(http.MethodGet, "/fallen", ""))
	assert.Equal(t, http.StatusNoContent, do(http.MethodPost, "/auth/login", ""))
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/fallen", ""))
	assert.Equal(t, http.StatusNoContent, do(http.MethodPost, "/fallen", token))
}

func TestRateLimitKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/reports/export", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	key, err := RateLimitKey(req)
	require.NoError(t, err)
	assert.Equal(t, "ip:10.0.0.7", key)

	sess := &Session{ID: "s"}
	sess.SetUsername("Entry")
	req = req.WithContext(ContextWithSession(req.Context(), sess))
	key, err = RateLimitKey(req)
	require.NoError(t, err)
	assert.Equal(t, "user:entry", key)

	req = req.WithContext(ContextWithActor(req.Context(), access.Actor{Username: "Manager"}))
	key, err = RateLimitKey(req)
	require.NoError(t, err)
	assert.Equal(t, "user:manager", key)
}

func TestActorLimiter(t *testing.T) {
	handler := ActorLimiter(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	call := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/fallen", nil)
		req = req.WithContext(ContextWithActor(req.Context(), access.Actor{Username: user}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, call("entry"))
	assert.Equal(t, http.StatusOK, call("entry"))
	assert.Equal(t, http.StatusTooManyRequests, call("entry"))
	assert.Equal(t, http.StatusOK, call("manager"))
}
