package pgstore

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
)

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(pgx.ErrNoRows), records.ErrNotFound)
	assert.ErrorIs(t, classify(errors.New("dial tcp: connection refused")), records.ErrUnavailable)
	assert.ErrorIs(t, classify(context.Canceled), context.Canceled)

	var invalid *records.ValidationError
	require.ErrorAs(t, classify(&pgconn.PgError{Code: "23505", ConstraintName: "offices_name_key"}), &invalid)
	assert.Equal(t, "unique", invalid.Fields["name"])

	err := classify(&pgconn.PgError{Code: "42P01"})
	assert.NotErrorIs(t, err, records.ErrUnavailable)
}

func TestDates(t *testing.T) {
	assert.Nil(t, nullDate(time.Time{}))
	assert.Equal(t, "2011-03-01", nullDate(time.Date(2011, 3, 1, 23, 0, 0, 0, time.UTC)))
	assert.True(t, dateOf(nil).IsZero())
}

// newTestStore connects to CASELEDGER_TEST_PG_DSN inside a throwaway schema.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("CASELEDGER_TEST_PG_DSN"))
	if dsn == "" {
		t.Skip("CASELEDGER_TEST_PG_DSN not set; skipping postgres store test")
	}
	ctx := context.Background()
	schemaName := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schemaName)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schemaName+" CASCADE")
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schemaName
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := New(pool)
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	repo := store.Repository()
	ctx := context.Background()

	office, err := repo.Offices.Create(ctx, records.Office{Name: "طرابلس"})
	require.NoError(t, err)
	event, _ := records.ParseDate("2011-03-01")
	fallen, err := repo.Fallen.Create(ctx, records.FallenPerson{
		FullName: "أحمد", NationalID: "11", Office: "طرابلس", Status: records.StatusFulfilled,
		EventDate: event, LastGrantAmount: decimal.RequireFromString("1200.50"),
	})
	require.NoError(t, err)
	_, err = repo.Dependents.Create(ctx, records.Dependent{
		FullName: "فاطمة", NationalID: "101", CaseCategory: access.CategoryFallen, CaseID: fallen.ID,
		Status: records.StatusFulfilled, LastGrantAmount: decimal.NewFromInt(300),
	})
	require.NoError(t, err)

	list, err := repo.Fallen.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].EventDate.Equal(event))
	assert.True(t, decimal.RequireFromString("1200.5").Equal(list[0].LastGrantAmount))

	_, err = repo.Offices.Update(ctx, office.ID, records.Office{Name: "طرابلس المركز"})
	require.NoError(t, err)
	list, err = repo.Fallen.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "طرابلس المركز", list[0].Office, "rename cascades to affiliated records")

	assert.ErrorIs(t, repo.Fallen.Delete(ctx, "missing"), records.ErrNotFound)
	_, err = repo.Offices.Create(ctx, records.Office{Name: "طرابلس المركز"})
	var invalid *records.ValidationError
	assert.ErrorAs(t, err, &invalid)
}

func TestStoreActorAdmin(t *testing.T) {
	store := newTestStore(t)
	repo := store.Repository()
	ctx := context.Background()

	actor, err := repo.Actors.Create(ctx, access.Actor{
		Name: "مدخل", Username: "entry", Role: access.RoleEntry, Scope: access.ScopeOfficeOnly,
		OfficeName: "طرابلس", Status: access.StatusActive, Capabilities: access.Preset(access.RoleEntry),
	})
	require.NoError(t, err)

	toggled := actor.Capabilities.Toggle(access.CategoryFallen, access.ActionDelete)
	require.NoError(t, repo.ActorAdmin.UpdatePermissions(ctx, actor.ID, toggled))
	require.NoError(t, repo.ActorAdmin.UpdateStatus(ctx, actor.ID, access.StatusDisabled))
	assert.ErrorIs(t, repo.ActorAdmin.UpdateStatus(ctx, "missing", access.StatusDisabled), records.ErrNotFound)

	all, err := repo.Actors.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, toggled, all[0].Capabilities)
	assert.Equal(t, access.StatusDisabled, all[0].Status)
}
