package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/caseledger/caseledger/cmd/ledgerctl/cli"
	"github.com/caseledger/caseledger/internal/app"
	"github.com/caseledger/caseledger/internal/auth"
	"github.com/caseledger/caseledger/internal/platform/cache"
	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/reporting"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(open).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

// open wires the record store and queue from the environment. Redis is optional:
// without it exports read the store directly and job commands fail.
func open(ctx context.Context) (*cli.Deps, func(), error) {
	cfg, err := app.LoadToolConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(cfg)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	directory, err := app.LoadDirectory(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	backend, err := app.OpenBackend(ctx, cfg, directory, redisClient, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, backend.Close)

	deps := &cli.Deps{
		Records: &backend.Repository,
		Reports: reporting.NewService(records.NewLoader(backend.Repository, logger), logger),
		Actors:  auth.NewService(directory, backend.Repository.Actors, logger),
	}
	if redisClient != nil {
		queue, err := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = queue.Close() })
		deps.Jobs = queue
	}
	return deps, cleanup, nil
}
