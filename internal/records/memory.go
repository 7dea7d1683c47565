package records

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/caseledger/caseledger/internal/access"
)

// MemoryStore is an in-process record store used for demos and tests.
type MemoryStore struct {
	offices    *memCollection[Office]
	fallen     *memCollection[FallenPerson]
	disability *memCollection[DisabilityCase]
	dependents *memCollection[Dependent]
	actors     *memCollection[access.Actor]
}

// NewMemoryStore seeds a MemoryStore with snap and actors.
func NewMemoryStore(snap Snapshot, actors []access.Actor) *MemoryStore {
	return &MemoryStore{
		offices: newMemCollection(snap.Offices,
			func(o Office) string { return o.ID },
			func(o Office, id string) Office { o.ID = id; return o }),
		fallen: newMemCollection(snap.Fallen,
			func(f FallenPerson) string { return f.ID },
			func(f FallenPerson, id string) FallenPerson { f.ID = id; return f }),
		disability: newMemCollection(snap.Disability,
			func(d DisabilityCase) string { return d.ID },
			func(d DisabilityCase, id string) DisabilityCase { d.ID = id; return d }),
		dependents: newMemCollection(snap.Dependents,
			func(d Dependent) string { return d.ID },
			func(d Dependent, id string) Dependent { d.ID = id; return d }),
		actors: newMemCollection(actors,
			func(a access.Actor) string { return a.ID },
			func(a access.Actor, id string) access.Actor { a.ID = id; return a }),
	}
}

// Repository exposes the store as a Repository.
func (m *MemoryStore) Repository() Repository {
	return Repository{
		Offices:    m.offices,
		Fallen:     m.fallen,
		Disability: m.disability,
		Dependents: m.dependents,
		Actors:     m.actors,
		ActorAdmin: m,
	}
}

// UpdatePermissions replaces the matrix of actor id.
func (m *MemoryStore) UpdatePermissions(_ context.Context, id string, matrix access.Matrix) error {
	return m.actors.modify(id, func(a access.Actor) access.Actor { return a.WithCapabilities(matrix) })
}

// UpdateStatus changes the status of actor id.
func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status access.Status) error {
	return m.actors.modify(id, func(a access.Actor) access.Actor { a.Status = status; return a })
}

type memCollection[T any] struct {
	mu    sync.RWMutex
	items []T
	id    func(T) string
	setID func(T, string) T
}

func newMemCollection[T any](seed []T, id func(T) string, setID func(T, string) T) *memCollection[T] {
	return &memCollection[T]{items: append([]T(nil), seed...), id: id, setID: setID}
}

func (c *memCollection[T]) List(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...), nil
}

func (c *memCollection[T]) Create(ctx context.Context, item T) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	if c.id(item) == "" {
		item = c.setID(item, uuid.NewString())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
	return item, nil
}

func (c *memCollection[T]) Update(ctx context.Context, id string, item T) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	item = c.setID(item, id)
	err := c.modify(id, func(T) T { return item })
	return item, err
}

func (c *memCollection[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.items {
		if c.id(existing) == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (c *memCollection[T]) modify(id string, fn func(T) T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.items {
		if c.id(existing) == id {
			c.items[i] = fn(existing)
			return nil
		}
	}
	return ErrNotFound
}
