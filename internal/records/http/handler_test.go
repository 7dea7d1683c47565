package recordhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/shared"
)

const (
	tripoli  = "مكتب طرابلس الرئيسي"
	benghazi = "بنغازي"
)

type testEnv struct {
	store  *records.MemoryStore
	router *chi.Mux
	actor  access.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := records.NewMemoryStore(records.Snapshot{
		Offices: []records.Office{{ID: "o1", Name: tripoli}, {ID: "o2", Name: benghazi}},
		Fallen: []records.FallenPerson{
			{ID: "1", FullName: "أحمد علي", NationalID: "11", Office: tripoli, Status: records.StatusFulfilled},
			{ID: "2", FullName: "سالم خليفة", NationalID: "22", Office: benghazi, Status: records.StatusInProgress},
		},
		Dependents: []records.Dependent{
			{ID: "d1", FullName: "فاطمة", NationalID: "101", Relationship: "زوجة", CaseID: "1", Status: records.StatusFulfilled, LastGrantAmount: decimal.NewFromInt(1200)},
			{ID: "d2", FullName: "عمر", NationalID: "102", Relationship: "ابن", CaseID: "2", Status: records.StatusFulfilled},
		},
	}, nil)

	mr := miniredis.RunT(t)
	idem := shared.NewIdempotencyStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	h := NewHandler(nil, records.NewLoader(store.Repository(), nil), shared.NewAuditLogger(nil, nil), idem)

	env := &testEnv{store: store, router: chi.NewRouter()}
	env.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), env.actor)))
		})
	})
	h.MountRoutes(env.router)
	return env
}

func actorFor(role access.Role, office string) access.Actor {
	scopeKind := access.ScopeOfficeOnly
	if role == access.RoleAdmin {
		scopeKind = access.ScopeAllOffices
	}
	return access.Actor{
		Username: string(role), Role: role, Scope: scopeKind, OfficeName: office,
		Status: access.StatusActive, Capabilities: access.Preset(role),
	}
}

func (e *testEnv) call(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res := httptest.NewRecorder()
	e.router.ServeHTTP(res, req)
	return res
}

func decodeItems[T any](t *testing.T, res *httptest.ResponseRecorder) []T {
	t.Helper()
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var out listResponse[T]
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out.Items
}

func TestListIsScopedToOffice(t *testing.T) {
	env := newTestEnv(t)
	env.actor = actorFor(access.RoleEntry, tripoli)

	fallen := decodeItems[records.FallenPerson](t, env.call(http.MethodGet, "/fallen", ""))
	require.Len(t, fallen, 1)
	assert.Equal(t, "1", fallen[0].ID)

	deps := decodeItems[records.Dependent](t, env.call(http.MethodGet, "/dependents", ""))
	require.Len(t, deps, 1)
	assert.Equal(t, "d1", deps[0].ID)

	env.actor = actorFor(access.RoleAdmin, "")
	assert.Len(t, decodeItems[records.FallenPerson](t, env.call(http.MethodGet, "/fallen", "")), 2)
}

func TestListAppliesQuery(t *testing.T) {
	env := newTestEnv(t)
	env.actor = actorFor(access.RoleAdmin, "")

	deps := decodeItems[records.Dependent](t, env.call(http.MethodGet, "/dependents?relationship="+url.QueryEscape("ابن"), ""))
	require.Len(t, deps, 1)
	assert.Equal(t, "d2", deps[0].ID)

	fallen := decodeItems[records.FallenPerson](t, env.call(http.MethodGet, "/fallen?sort=national_id&order=desc&per_page=1", ""))
	require.Len(t, fallen, 1)
	assert.Equal(t, "2", fallen[0].ID)
}

func TestRecordOutsideScopeIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.actor = actorFor(access.RoleInquiry, tripoli)

	assert.Equal(t, http.StatusNotFound, env.call(http.MethodGet, "/fallen/2", "").Code)
	// Scope is checked before capabilities, so a hidden record never yields 403.
	assert.Equal(t, http.StatusNotFound, env.call(http.MethodDelete, "/fallen/2", "").Code)
	assert.Equal(t, http.StatusOK, env.call(http.MethodGet, "/fallen/1", "").Code)
}

func TestMutationDeniedWithoutCapability(t *testing.T) {
	env := newTestEnv(t)
	env.actor = actorFor(access.RoleInquiry, tripoli)

	res := env.call(http.MethodPost, "/fallen", `{"full_name":"جديد","national_id":"9","status":"fulfilled"}`)
	require.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "ليس لديك صلاحية التعديل")

	env.actor = actorFor(access.RoleEntry, tripoli)
	res = env.call(http.MethodDelete, "/fallen/1", "")
	require.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "ليس لديك صلاحية الحذف")

	all, err := env.store.Repository().Fallen.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2, "denied mutations have no side effect")
}

func TestCreateDefaultsAndConfinesOffice(t *testing.T) {
	env := newTestEnv(t)
	env.actor = actorFor(access.RoleEntry, tripoli)

	res := env.call(http.MethodPost, "/fallen", `{"full_name":"جديد","national_id":"9","status":"مستوفي"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var created records.FallenPerson
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, tripoli, created.Office)

	res = env.call(http.MethodPost, "/fallen", `{"full_name":"آخر","national_id":"10","status":"fulfilled","office":"بنغازي"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = env.call(http.MethodPost, "/fallen", `{"full_name":"آخر","national_id":"10","status":"unknown"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "record_status")
}

func TestCreateDependentLinksByCaseName(t *testing.T) {
	env := newTestEnv(t)
	env.actor = actorFor(access.RoleManager, tripoli)

	res := env.call(http.MethodPost, "/dependents", `{"full_name":"مريم","national_id":"103","relationship":"ابنة","case_name":"أحمد علي","status":"fulfilled"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var created records.Dependent
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	assert.Equal(t, "1", created.CaseID)

	res = env.call(http.MethodPost, "/dependents", `{"full_name":"ليلى","national_id":"104","case_id":"2","status":"fulfilled"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code, "case in another office")
}

func TestUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.actor = actorFor(access.RoleManager, tripoli)

	res := env.call(http.MethodPut, "/fallen/1", `{"full_name":"أحمد علي","national_id":"11","status":"suspended"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	env.actor = actorFor(access.RoleAdmin, "")
	require.Equal(t, http.StatusNoContent, env.call(http.MethodDelete, "/fallen/2", "").Code)

	all, err := env.store.Repository().Fallen.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, records.StatusSuspended, all[0].Status)
	assert.Equal(t, tripoli, all[0].Office)
}

func TestOfficesNeedManageOffices(t *testing.T) {
	env := newTestEnv(t)
	env.actor = actorFor(access.RoleManager, tripoli)

	offices := decodeItems[records.Office](t, env.call(http.MethodGet, "/offices", ""))
	require.Len(t, offices, 1)

	res := env.call(http.MethodPost, "/offices", `{"name":"مصراتة"}`)
	require.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "ليس لديك صلاحية إدارة المكاتب")

	env.actor = actorFor(access.RoleAdmin, "")
	assert.Equal(t, http.StatusCreated, env.call(http.MethodPost, "/offices", `{"name":"مصراتة"}`).Code)
	assert.Len(t, decodeItems[records.Office](t, env.call(http.MethodGet, "/offices", "")), 3)
}

func TestCreateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.actor = actorFor(access.RoleAdmin, "")
	body := `{"name":"مصراتة"}`

	assert.Equal(t, http.StatusCreated, env.call(http.MethodPost, "/offices", body, shared.IdempotencyHeader, "k-1").Code)
	assert.Equal(t, http.StatusConflict, env.call(http.MethodPost, "/offices", body, shared.IdempotencyHeader, "k-1").Code)
	assert.Len(t, decodeItems[records.Office](t, env.call(http.MethodGet, "/offices", "")), 3)
}
