package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one entry of the audit trail.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Outcome  string
	Meta     map[string]any
	At       time.Time
}

// Audit outcomes.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeFailed  = "failed"
)

// AuditLogger writes the audit trail to the log and, when a pool is configured, to
// the audit_logs table.
type AuditLogger struct {
	logger *slog.Logger
	pool   *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger. pool may be nil.
func NewAuditLogger(logger *slog.Logger, pool *pgxpool.Pool) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger, pool: pool}
}

// Record emits the entry. A failed insert is logged and returned.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if l == nil {
		return nil
	}
	if entry.Action == "" || entry.Entity == "" {
		return errors.New("audit log requires action and entity")
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	if entry.Outcome == "" {
		entry.Outcome = OutcomeAllowed
	}
	level := slog.LevelInfo
	if entry.Outcome != OutcomeAllowed {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(ctx, level, "audit",
		slog.String("actor", entry.Actor),
		slog.String("action", entry.Action),
		slog.String("entity", entry.Entity),
		slog.String("entity_id", entry.EntityID),
		slog.String("outcome", entry.Outcome),
	)
	if l.pool == nil {
		return nil
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor, action, entity, entity_id, outcome, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.Actor, entry.Action, entry.Entity, entry.EntityID, entry.Outcome, metaJSON, entry.At)
	if err != nil {
		l.logger.Error("audit insert failed", slog.Any("error", err))
	}
	return err
}
