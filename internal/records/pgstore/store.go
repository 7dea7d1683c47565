// Package pgstore persists records in PostgreSQL.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/platform/db"
	"github.com/caseledger/caseledger/internal/records"
)

//go:embed schema.sql
var schema string

// Store implements the record repository on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

// Repository exposes the store through the record repository contract.
func (s *Store) Repository() records.Repository {
	return records.Repository{
		Offices:    &officeTable{s: s},
		Fallen:     &table[records.FallenPerson]{s: s, def: fallenDef},
		Disability: &table[records.DisabilityCase]{s: s, def: disabilityDef},
		Dependents: &table[records.Dependent]{s: s, def: dependentDef},
		Actors:     &table[access.Actor]{s: s, def: actorDef},
		ActorAdmin: s,
	}
}

// UpdatePermissions replaces the capability matrix of actor id.
func (s *Store) UpdatePermissions(ctx context.Context, id string, m access.Matrix) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.exec(ctx, `UPDATE actors SET capabilities = $2 WHERE id = $1`, id, raw)
}

// UpdateStatus changes the account status of actor id.
func (s *Store) UpdateStatus(ctx context.Context, id string, status access.Status) error {
	return s.exec(ctx, `UPDATE actors SET status = $2 WHERE id = $1`, id, string(status))
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return records.ErrNotFound
	}
	return nil
}

// tableDef describes how one entity maps onto its table.
type tableDef[T any] struct {
	list   string
	insert string
	update string
	remove string
	scan   func(pgx.Rows) (T, error)
	args   func(T) []any
	setID  func(T, string) T
}

type table[T any] struct {
	s   *Store
	def tableDef[T]
}

func (t *table[T]) List(ctx context.Context) ([]T, error) {
	return query(ctx, t.s.pool, t.def.list, t.def.scan)
}

func (t *table[T]) Create(ctx context.Context, item T) (T, error) {
	item = t.def.setID(item, uuid.NewString())
	if _, err := t.s.pool.Exec(ctx, t.def.insert, t.def.args(item)...); err != nil {
		var zero T
		return zero, classify(err)
	}
	return item, nil
}

func (t *table[T]) Update(ctx context.Context, id string, item T) (T, error) {
	item = t.def.setID(item, id)
	if err := t.s.exec(ctx, t.def.update, t.def.args(item)...); err != nil {
		var zero T
		return zero, err
	}
	return item, nil
}

func (t *table[T]) Delete(ctx context.Context, id string) error {
	return t.s.exec(ctx, t.def.remove, id)
}

// officeTable renames cascade to the records affiliated with the office.
type officeTable struct {
	s *Store
}

func (o *officeTable) List(ctx context.Context) ([]records.Office, error) {
	return query(ctx, o.s.pool, officeList, scanOffice)
}

func (o *officeTable) Create(ctx context.Context, item records.Office) (records.Office, error) {
	item.ID = uuid.NewString()
	if _, err := o.s.pool.Exec(ctx, officeInsert, officeArgs(item)...); err != nil {
		return records.Office{}, classify(err)
	}
	return item, nil
}

func (o *officeTable) Update(ctx context.Context, id string, item records.Office) (records.Office, error) {
	item.ID = id
	err := db.WithTx(ctx, o.s.pool, func(tx pgx.Tx) error {
		var previous string
		if err := tx.QueryRow(ctx, `SELECT name FROM offices WHERE id = $1 FOR UPDATE`, id).Scan(&previous); err != nil {
			return classify(err)
		}
		if _, err := tx.Exec(ctx, officeUpdate, officeArgs(item)...); err != nil {
			return classify(err)
		}
		if previous == item.Name {
			return nil
		}
		for _, stmt := range []string{
			`UPDATE fallen SET office = $2 WHERE office = $1`,
			`UPDATE disability SET office = $2 WHERE office = $1`,
			`UPDATE actors SET office_name = $2 WHERE office_name = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, previous, item.Name); err != nil {
				return classify(err)
			}
		}
		return nil
	})
	if err != nil {
		return records.Office{}, err
	}
	return item, nil
}

func (o *officeTable) Delete(ctx context.Context, id string) error {
	return o.s.exec(ctx, `DELETE FROM offices WHERE id = $1`, id)
}

func query[T any](ctx context.Context, pool *pgxpool.Pool, sql string, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// classify maps driver failures onto the repository error set. Statement errors
// reported by the server are returned as they are.
func classify(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return records.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &pgErr):
		if pgErr.Code == "23505" {
			field, ok := uniqueFields[pgErr.ConstraintName]
			if !ok {
				field = "record"
			}
			return &records.ValidationError{Fields: map[string]string{field: "unique"}}
		}
		return fmt.Errorf("pgstore: %w", err)
	default:
		return fmt.Errorf("%w: %v", records.ErrUnavailable, err)
	}
}

var uniqueFields = map[string]string{
	"offices_name_key":    "name",
	"actors_username_key": "username",
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return records.FormatDate(t)
}

func dateOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func amount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
