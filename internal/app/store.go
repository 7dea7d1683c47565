package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/auth"
	"github.com/caseledger/caseledger/internal/platform/db"
	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/records/pgstore"
)

// Backend bundles the record repository with the resources it holds open.
type Backend struct {
	Repository records.Repository
	Cache      *records.Cache
	Pool       *pgxpool.Pool
}

// Close releases the pool, if any.
func (b *Backend) Close() {
	if b != nil && b.Pool != nil {
		b.Pool.Close()
	}
}

// OpenBackend builds the record repository selected by cfg.RecordStore and wraps it
// in the Redis list cache when a client is supplied.
func OpenBackend(ctx context.Context, cfg *Config, directory *auth.Directory, redisClient *redis.Client, logger *slog.Logger) (*Backend, error) {
	backend := &Backend{}
	switch cfg.RecordStore {
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		store := pgstore.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		backend.Pool = pool
		backend.Repository = store.Repository()
	case StoreHTTP:
		client := records.NewClient(cfg.RecordStoreURL, &http.Client{Timeout: cfg.RecordStoreTimeout})
		backend.Repository = client.Repository()
	case StoreMemory:
		backend.Repository = records.NewMemoryStore(DemoSnapshot(), directoryActors(ctx, directory)).Repository()
	default:
		return nil, fmt.Errorf("app: unknown record store %q", cfg.RecordStore)
	}

	if redisClient != nil {
		backend.Cache = records.NewCache(redisClient, cfg.SnapshotCacheTTL, logger)
		backend.Repository = records.WithCache(backend.Repository, backend.Cache)
	}
	logger.Info("record store ready", slog.String("backend", cfg.RecordStore), slog.Bool("cached", backend.Cache != nil))
	return backend, nil
}

// DemoSnapshot seeds the in-memory store with the demo office.
func DemoSnapshot() records.Snapshot {
	return records.Snapshot{
		Offices: []records.Office{{ID: "demo-office", Name: auth.DemoOffice}},
	}
}

func directoryActors(ctx context.Context, directory *auth.Directory) []access.Actor {
	if directory == nil {
		return nil
	}
	var out []access.Actor
	for _, username := range directory.Usernames() {
		cred, err := directory.FindByUsername(ctx, username)
		if err != nil || cred == nil {
			continue
		}
		actor := cred.Actor()
		actor.ID = "actor-" + actor.Username
		out = append(out, actor)
	}
	return out
}

// LoadDirectory reads the credential directory from DIRECTORY_FILE, falling back to
// the demo accounts.
func LoadDirectory(cfg *Config) (*auth.Directory, error) {
	if cfg.DirectoryFile != "" {
		return auth.LoadDirectory(cfg.DirectoryFile)
	}
	return auth.DemoDirectory(cfg.DemoPassword)
}
