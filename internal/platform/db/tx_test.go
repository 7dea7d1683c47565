package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	commits   *int
	rollbacks *int
}

func (f fakeTx) Commit(context.Context) error   { *f.commits++; return nil }
func (f fakeTx) Rollback(context.Context) error { *f.rollbacks++; return nil }

type fakeBeginner struct {
	begins, commits, rollbacks int
	beginErr                   error
}

func (f *fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.begins++
	return fakeTx{commits: &f.commits, rollbacks: &f.rollbacks}, nil
}

func TestWithTxCommits(t *testing.T) {
	b := &fakeBeginner{}
	require.NoError(t, WithTx(context.Background(), b, func(pgx.Tx) error { return nil }))
	assert.Equal(t, 1, b.begins)
	assert.Equal(t, 1, b.commits)
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	b := &fakeBeginner{}
	calls := 0
	err := WithTx(context.Background(), b, func(pgx.Tx) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, b.commits)
	assert.Equal(t, 3, b.rollbacks)
}

func TestWithTxGivesUpAfterRetries(t *testing.T) {
	b := &fakeBeginner{}
	err := WithTx(context.Background(), b, func(pgx.Tx) error { return &pgconn.PgError{Code: "40001"} })
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, serializationRetries, b.begins)
	assert.Zero(t, b.commits)
}

func TestWithTxDoesNotRetryOtherErrors(t *testing.T) {
	b := &fakeBeginner{}
	boom := errors.New("boom")
	require.ErrorIs(t, WithTx(context.Background(), b, func(pgx.Tx) error { return boom }), boom)
	assert.Equal(t, 1, b.begins)

	b = &fakeBeginner{beginErr: errors.New("refused")}
	require.ErrorContains(t, WithTx(context.Background(), b, func(pgx.Tx) error { return nil }), "begin tx")
}

func TestNewRejectsBadDSN(t *testing.T) {
	_, err := New(context.Background(), "://not-a-dsn", Options{})
	require.ErrorContains(t, err, "parse config")
}
