package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/caseledger/caseledger/internal/jobs"
)

// VersionBumper invalidates every cached record listing at once.
type VersionBumper interface {
	Bump(ctx context.Context) error
}

// Enqueuer submits follow-up tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RecordsInvalidateJob bumps the record cache version.
type RecordsInvalidateJob struct {
	Cache   VersionBumper
	Queue   Enqueuer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes invalidation tasks.
func (j *RecordsInvalidateJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Cache == nil {
		return errors.New("records invalidate: handler not configured")
	}
	var payload RecordsInvalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskRecordsInvalidate)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := j.Cache.Bump(ctx); err != nil {
		logger.Error("bump record cache", slog.Any("error", err))
		return err
	}
	if payload.Warm && j.Queue != nil {
		task, err := NewReportsWarmupTask("invalidated")
		if err != nil {
			return err
		}
		if _, err := j.Queue.EnqueueContext(ctx, task); err != nil {
			return err
		}
	}
	logger.Info("record cache invalidated", slog.Bool("warm", payload.Warm))
	return nil
}
