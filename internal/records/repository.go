package records

import (
	"context"
	"errors"

	"github.com/caseledger/caseledger/internal/access"
)

var (
	// ErrNotFound indicates the record store has no such record.
	ErrNotFound = errors.New("records: not found")
	// ErrUnavailable indicates the record store could not be reached or failed.
	ErrUnavailable = errors.New("records: store unavailable")
)

// Collection is the per-category contract of the record store.
type Collection[T any] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id string, item T) (T, error)
	Delete(ctx context.Context, id string) error
}

// ActorAdmin covers the actor-specific mutations of the record store.
type ActorAdmin interface {
	UpdatePermissions(ctx context.Context, id string, m access.Matrix) error
	UpdateStatus(ctx context.Context, id string, status access.Status) error
}

// Repository groups the collections exposed by a record store.
type Repository struct {
	Offices    Collection[Office]
	Fallen     Collection[FallenPerson]
	Disability Collection[DisabilityCase]
	Dependents Collection[Dependent]
	Actors     Collection[access.Actor]
	ActorAdmin ActorAdmin
}

// FindByID scans a listing for the record with the given id.
func FindByID[T interface{ RecordID() string }](items []T, id string) (T, bool) {
	for _, item := range items {
		if item.RecordID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (o Office) RecordID() string { return o.ID }
func (d Dependent) RecordID() string { return d.ID }
