package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup loads a fresh snapshot into the cache and refreshes the record gauges.
	TaskReportsWarmup = "reports:warmup"
	// TaskRecordsInvalidate drops every cached record listing.
	TaskRecordsInvalidate = "records:invalidate"
)

// ReportsWarmupPayload describes why a warm-up was requested.
type ReportsWarmupPayload struct {
	Reason string `json:"reason"`
}

// NewReportsWarmupTask constructs a warm-up task.
func NewReportsWarmupTask(reason string) (*asynq.Task, error) {
	body, err := json.Marshal(ReportsWarmupPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, body, asynq.Queue(QueueDefault)), nil
}

// RecordsInvalidatePayload contains options for the invalidation job.
type RecordsInvalidatePayload struct {
	Warm bool `json:"warm"`
}

// NewRecordsInvalidateTask builds an invalidation task. When warm is set the job
// enqueues a warm-up once the cache has been dropped.
func NewRecordsInvalidateTask(warm bool) (*asynq.Task, error) {
	body, err := json.Marshal(RecordsInvalidatePayload{Warm: warm})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecordsInvalidate, body, asynq.Queue(QueueDefault)), nil
}
