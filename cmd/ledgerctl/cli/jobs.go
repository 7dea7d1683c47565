package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/caseledger/caseledger/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers against the given Redis options.
func NewJobsCLI(opts asynq.RedisClientOpt) (*JobsCLI, error) {
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// EnqueueReportsWarmup submits a warm-up run.
func (c *JobsCLI) EnqueueReportsWarmup(ctx context.Context, reason string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueReportsWarmup(ctx, reason)
}

// EnqueueRecordsInvalidate submits a cache invalidation.
func (c *JobsCLI) EnqueueRecordsInvalidate(ctx context.Context, warm bool) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueRecordsInvalidate(ctx, warm)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = int(info.Pending)
		stats.Active = int(info.Active)
		stats.Scheduled = int(info.Scheduled)
		stats.Retry = int(info.Retry)
	}
	return stats, nil
}

func newJobsCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	var reason string
	warmup := &cobra.Command{
		Use:   "warmup",
		Short: "Enqueue a report warm-up",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd, open, func(q JobQueue) (*asynq.TaskInfo, error) {
				return q.EnqueueReportsWarmup(cmd.Context(), reason)
			})
		},
	}
	warmup.Flags().StringVar(&reason, "reason", "manual", "Reason recorded with the run")

	var warm bool
	invalidate := &cobra.Command{
		Use:   "invalidate",
		Short: "Enqueue a record cache invalidation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd, open, func(q JobQueue) (*asynq.TaskInfo, error) {
				return q.EnqueueRecordsInvalidate(cmd.Context(), warm)
			})
		},
	}
	invalidate.Flags().BoolVar(&warm, "warm", false, "Chain a warm-up after the invalidation")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, cleanup, err := openDeps(cmd, open)
			if err != nil {
				return err
			}
			defer cleanup()
			if deps.Jobs == nil {
				return errors.New("jobs: queue not configured")
			}
			s, err := deps.Jobs.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
			return err
		},
	}

	cmd.AddCommand(warmup, invalidate, stats)
	return cmd
}

func withQueue(cmd *cobra.Command, open Opener, enqueue func(JobQueue) (*asynq.TaskInfo, error)) error {
	deps, cleanup, err := openDeps(cmd, open)
	if err != nil {
		return err
	}
	defer cleanup()
	if deps.Jobs == nil {
		return errors.New("jobs: queue not configured")
	}
	info, err := enqueue(deps.Jobs)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s\n", info.Type, info.ID)
	return err
}
