package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/caseledger/caseledger/internal/access"
	jobmetrics "github.com/caseledger/caseledger/internal/jobs"
	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/reporting"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SnapshotLoader supplies the record snapshot the warm-up runs over.
type SnapshotLoader interface {
	Snapshot(ctx context.Context) (records.Snapshot, error)
}

// SummaryObserver receives the unscoped summary computed by the warm-up.
type SummaryObserver interface {
	ObserveSummary(reporting.Summary)
}

// ReportsWarmupJob loads every record collection through the cache and publishes
// the resulting figures.
type ReportsWarmupJob struct {
	Loader   SnapshotLoader
	Observer SummaryObserver
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	timeout  time.Duration
}

// NewReportsWarmupJob wires dependencies for the warm-up handler.
func NewReportsWarmupJob(loader SnapshotLoader, observer SummaryObserver, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{
		Loader:   loader,
		Observer: observer,
		Logger:   logger,
		Metrics:  metrics,
		timeout:  time.Minute,
	}
}

// Handle processes warm-up tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Loader == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload.Reason)
	return err
}

// Run performs one warm-up and returns the summary it published.
func (j *ReportsWarmupJob) Run(ctx context.Context, reason string) (summary reporting.Summary, err error) {
	if reason == "" {
		reason = "scheduled"
	}
	tracker := j.metrics().Track(TaskReportsWarmup)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("reason", reason))
	logger.Info("starting reports warmup")
	start := time.Now()

	loadCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	snap, err := j.Loader.Snapshot(loadCtx)
	if err != nil {
		logger.Error("load snapshot", slog.Any("error", err))
		return reporting.Summary{}, err
	}

	j.metrics().ObserveSnapshot("offices", len(snap.Offices))
	j.metrics().ObserveSnapshot("fallen", len(snap.Fallen))
	j.metrics().ObserveSnapshot("disability", len(snap.Disability))
	j.metrics().ObserveSnapshot("dependents", len(snap.Dependents))

	summary = reporting.Summarize(snap, reporting.SummaryOptions{IncludeOffices: true})
	if j.Observer != nil {
		j.Observer.ObserveSummary(summary)
	}
	logger.Info("completed reports warmup",
		slog.Int("offices", len(summary.OfficeBreakdown)),
		slog.Int("dependents", summary.Counts[access.CategoryDependent]),
		slog.Duration("duration", time.Since(start)))
	return summary, nil
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *ReportsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
