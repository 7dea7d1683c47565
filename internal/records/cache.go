package records

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caseledger/caseledger/internal/access"
)

const (
	cacheVersionKey = "records:version"
	bumpChannel     = "records.bump"
)

// Cache keeps versioned listings of the record store in Redis. A nil Cache, or one
// without a client, passes every call through to the loader.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil || (err == nil && ver <= 0) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *Cache) key(ctx context.Context, name string) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("records:%s:%d", name, ver), nil
}

// fetch loads the cached listing or populates it using load. Redis failures degrade
// to a direct load.
func fetch[T any](ctx context.Context, c *Cache, name string, load func(context.Context) ([]T, error)) ([]T, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	key, err := c.key(ctx, name)
	if err != nil {
		c.warn("cache version", err)
		return load(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var items []T
		if err := json.Unmarshal(payload, &items); err == nil {
			return items, nil
		}
	} else if err != redis.Nil {
		c.warn("cache get", err)
	}
	items, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(items); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.warn("cache set", err)
		}
	}
	return items, nil
}

// Bump invalidates every cached listing by incrementing the version and publishing it.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation follows version bumps published by other instances.
func (c *Cache) ListenForInvalidation(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	pubsub := c.client.Subscribe(ctx, bumpChannel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
					_ = c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
				}
			}
		}
	}()
}

func (c *Cache) warn(msg string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, slog.Any("error", err))
	}
}

type cachedCollection[T any] struct {
	next  Collection[T]
	cache *Cache
	name  string
}

func (c *cachedCollection[T]) List(ctx context.Context) ([]T, error) {
	return fetch(ctx, c.cache, c.name, c.next.List)
}

func (c *cachedCollection[T]) Create(ctx context.Context, item T) (T, error) {
	created, err := c.next.Create(ctx, item)
	if err == nil {
		c.bump(ctx)
	}
	return created, err
}

func (c *cachedCollection[T]) Update(ctx context.Context, id string, item T) (T, error) {
	updated, err := c.next.Update(ctx, id, item)
	if err == nil {
		c.bump(ctx)
	}
	return updated, err
}

func (c *cachedCollection[T]) Delete(ctx context.Context, id string) error {
	err := c.next.Delete(ctx, id)
	if err == nil {
		c.bump(ctx)
	}
	return err
}

func (c *cachedCollection[T]) bump(ctx context.Context) {
	if err := c.cache.Bump(ctx); err != nil {
		c.cache.warn("cache bump", err)
	}
}

type cachedActorAdmin struct {
	next  ActorAdmin
	cache *Cache
}

func (c cachedActorAdmin) UpdatePermissions(ctx context.Context, id string, m access.Matrix) error {
	if err := c.next.UpdatePermissions(ctx, id, m); err != nil {
		return err
	}
	if err := c.cache.Bump(ctx); err != nil {
		c.cache.warn("cache bump", err)
	}
	return nil
}

func (c cachedActorAdmin) UpdateStatus(ctx context.Context, id string, status access.Status) error {
	if err := c.next.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if err := c.cache.Bump(ctx); err != nil {
		c.cache.warn("cache bump", err)
	}
	return nil
}

// WithCache wraps every collection of repo so listings are served from c and any
// successful mutation invalidates them.
func WithCache(repo Repository, c *Cache) Repository {
	if c == nil || c.client == nil {
		return repo
	}
	out := Repository{
		Offices:    &cachedCollection[Office]{next: repo.Offices, cache: c, name: "offices"},
		Fallen:     &cachedCollection[FallenPerson]{next: repo.Fallen, cache: c, name: "fallen"},
		Disability: &cachedCollection[DisabilityCase]{next: repo.Disability, cache: c, name: "disability"},
		Dependents: &cachedCollection[Dependent]{next: repo.Dependents, cache: c, name: "dependents"},
		Actors:     &cachedCollection[access.Actor]{next: repo.Actors, cache: c, name: "actors"},
	}
	if repo.ActorAdmin != nil {
		out.ActorAdmin = cachedActorAdmin{next: repo.ActorAdmin, cache: c}
	}
	return out
}
