package actors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/shared"
)

var (
	admin = access.Actor{
		ID: "u1", Username: "admin", Role: access.RoleAdmin, Scope: access.ScopeAllOffices,
		Status: access.StatusActive, Capabilities: access.Preset(access.RoleAdmin),
	}
	clerk = access.Actor{
		ID: "u2", Username: "clerk", Role: access.RoleEntry, Scope: access.ScopeOfficeOnly, OfficeName: "مكتب طرابلس",
		Status: access.StatusActive, Capabilities: access.Preset(access.RoleEntry),
	}
)

func newService(t *testing.T) (*Service, *records.MemoryStore) {
	t.Helper()
	store := records.NewMemoryStore(records.Snapshot{}, []access.Actor{admin, clerk})
	return NewService(store.Repository(), shared.NewAuditLogger(nil, nil), nil), store
}

func storedActor(t *testing.T, store *records.MemoryStore, id string) access.Actor {
	t.Helper()
	all, err := store.Repository().Actors.List(context.Background())
	require.NoError(t, err)
	for _, a := range all {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("actor %s not stored", id)
	return access.Actor{}
}

func TestToggleFlipsOnlyTheNamedCapability(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	updated, err := svc.Toggle(ctx, admin, "u2", "fallen.delete")
	require.NoError(t, err)
	assert.True(t, updated.Capabilities.Allows(access.CategoryFallen, access.ActionDelete))

	persisted := storedActor(t, store, "u2")
	assert.Equal(t, updated.Capabilities, persisted.Capabilities)
	assert.Equal(t, clerk.Capabilities.Toggle(access.CategoryFallen, access.ActionDelete), persisted.Capabilities)
	assert.False(t, clerk.Capabilities.Allows(access.CategoryFallen, access.ActionDelete), "source value untouched")

	_, err = svc.Toggle(ctx, admin, "u2", "fallen.delete")
	require.NoError(t, err)
	assert.Equal(t, clerk.Capabilities, storedActor(t, store, "u2").Capabilities)
}

func TestToggleRejectsUnknownCapabilityAndMissingActor(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Toggle(ctx, admin, "u2", "fallen.fly")
	var invalid *records.ValidationError
	require.ErrorAs(t, err, &invalid)

	_, err = svc.Toggle(ctx, admin, "missing", "fallen.view")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestAdministrationRequiresManageActors(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, clerk)
	assert.ErrorIs(t, err, access.ErrDenied)
	_, err = svc.Toggle(ctx, clerk, "u2", "admin.manage_actors")
	assert.ErrorIs(t, err, access.ErrDenied)
	assert.Equal(t, clerk.Capabilities, storedActor(t, store, "u2").Capabilities)
}

func TestSetStatus(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	updated, err := svc.SetStatus(ctx, admin, "u2", "معطل")
	require.NoError(t, err)
	assert.Equal(t, access.StatusDisabled, updated.Status)
	assert.Equal(t, access.StatusDisabled, storedActor(t, store, "u2").Status)

	_, err = svc.SetStatus(ctx, admin, "u1", "disabled")
	var invalid *records.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "self", invalid.Fields["status"])

	_, err = svc.SetStatus(ctx, admin, "u2", "sleeping")
	require.ErrorAs(t, err, &invalid)
}

func TestCreateAppliesDefaultGrant(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, admin, NewActor{Name: "سعاد", Username: "suad", Role: "inquiry", OfficeName: "بنغازي"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, access.DefaultGrant(), created.Capabilities)
	assert.Equal(t, access.ScopeOfficeOnly, created.Scope)
	assert.Equal(t, access.StatusActive, storedActor(t, store, created.ID).Status)

	_, err = svc.Create(ctx, admin, NewActor{Name: "x", Username: "SUAD", Role: "entry", OfficeName: "بنغازي"})
	var invalid *records.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "unique", invalid.Fields["username"])

	_, err = svc.Create(ctx, admin, NewActor{Name: "x", Username: "nooffice", Role: "entry"})
	require.ErrorAs(t, err, &invalid)

	explicit, err := svc.Create(ctx, admin, NewActor{Name: "y", Username: "reporter", Role: "manager", Scope: "all_offices", Capabilities: []string{"reports.view", "reports.export"}})
	require.NoError(t, err)
	assert.Len(t, explicit.Capabilities.Granted(), 2)
}

func TestHandlerToggleEndpoint(t *testing.T) {
	svc, store := newService(t)
	r := chi.NewRouter()
	by := admin
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), by)))
		})
	})
	NewHandler(nil, svc).MountRoutes(r)

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/u2/permissions/toggle", strings.NewReader(`{"capability":"reports.export"}`)))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var view View
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &view))
	assert.Contains(t, view.Granted, "reports.export")
	assert.True(t, storedActor(t, store, "u2").Capabilities.Allows(access.CategoryReports, access.ActionExport))

	by = clerk
	res = httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "ليس لديك صلاحية إدارة المستخدمين")
}
