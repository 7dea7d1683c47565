// Package cli implements the ledgerctl operator commands.
package cli

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/reporting"
)

// ReportBuilder runs scoped reports.
type ReportBuilder interface {
	Build(ctx context.Context, actor access.Actor, req reporting.Request) (reporting.Report, error)
}

// ActorResolver looks up the actor a command acts on behalf of.
type ActorResolver interface {
	Resolve(ctx context.Context, username string) (access.Actor, error)
}

// JobQueue submits and inspects background jobs.
type JobQueue interface {
	EnqueueReportsWarmup(ctx context.Context, reason string) (*asynq.TaskInfo, error)
	EnqueueRecordsInvalidate(ctx context.Context, warm bool) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

// Deps are the services commands run against. Any of them may be nil when the
// command does not need it.
type Deps struct {
	Records *records.Repository
	Reports ReportBuilder
	Actors  ActorResolver
	Jobs    JobQueue
	Now     func() time.Time
}

// Opener builds Deps for one invocation and returns a cleanup func.
type Opener func(ctx context.Context) (*Deps, func(), error)

// NewRootCmd assembles the command tree.
func NewRootCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tools for the case ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newExportCmd(open), newJobsCmd(open), newSeedCmd(open))
	return cmd
}

func openDeps(cmd *cobra.Command, open Opener) (*Deps, func(), error) {
	if open == nil {
		return nil, nil, errors.New("ledgerctl: runtime not configured")
	}
	deps, cleanup, err := open(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	if cleanup == nil {
		cleanup = func() {}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return deps, cleanup, nil
}
