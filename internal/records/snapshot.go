package records

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/caseledger/caseledger/internal/access"
)

// Snapshot is an immutable point-in-time copy of the records a report runs over.
type Snapshot struct {
	Offices    []Office         `json:"offices"`
	Fallen     []FallenPerson   `json:"fallen"`
	Disability []DisabilityCase `json:"disability"`
	Dependents []Dependent      `json:"dependents"`
}

// Cases returns fallen cases followed by disability cases, in input order.
func (s Snapshot) Cases() []Case {
	out := make([]Case, 0, len(s.Fallen)+len(s.Disability))
	for _, f := range s.Fallen {
		out = append(out, f)
	}
	for _, d := range s.Disability {
		out = append(out, d)
	}
	return out
}

// DependentsByCase groups dependents by CaseKey preserving input order per case.
func (s Snapshot) DependentsByCase() map[string][]Dependent {
	grouped := make(map[string][]Dependent)
	for _, d := range s.Dependents {
		if ref := d.CaseRef(); ref != "" {
			grouped[ref] = append(grouped[ref], d)
		}
	}
	return grouped
}

// DefaultFetchTimeout bounds a shared snapshot fetch.
const DefaultFetchTimeout = 30 * time.Second

// Loader fetches snapshots from a Repository.
type Loader struct {
	repo    Repository
	logger  *slog.Logger
	group   singleflight.Group
	timeout time.Duration
}

// NewLoader constructs a Loader.
func NewLoader(repo Repository, logger *slog.Logger) *Loader {
	return &Loader{repo: repo, logger: logger, timeout: DefaultFetchTimeout}
}

// WithTimeout overrides the bound on a shared fetch.
func (l *Loader) WithTimeout(d time.Duration) *Loader {
	if d > 0 {
		l.timeout = d
	}
	return l
}

// Repository exposes the underlying collections.
func (l *Loader) Repository() Repository {
	return l.repo
}

// Snapshot loads every record collection concurrently. Concurrent callers share one
// in-flight fetch; each receives its own copy. The shared fetch outlives any single
// caller's cancellation and is bounded by the loader's timeout instead.
func (l *Loader) Snapshot(ctx context.Context) (Snapshot, error) {
	ch := l.group.DoChan("snapshot", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		return l.fetch(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot).clone(), nil
	}
}

func (l *Loader) fetch(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		offices, err := l.repo.Offices.List(ctx)
		snap.Offices = offices
		return err
	})
	g.Go(func() error {
		fallen, err := l.repo.Fallen.List(ctx)
		snap.Fallen = fallen
		return err
	})
	g.Go(func() error {
		cases, err := l.repo.Disability.List(ctx)
		snap.Disability = cases
		return err
	})
	g.Go(func() error {
		deps, err := l.repo.Dependents.List(ctx)
		snap.Dependents = deps
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	normalizeStatuses(&snap, l.logger)
	snap.Dependents = LinkDependents(snap.Fallen, snap.Dependents, l.logger)
	return snap, nil
}

// normalizeStatuses rewrites statuses outside the fixed set to StatusInProgress.
func normalizeStatuses(snap *Snapshot, logger *slog.Logger) {
	fix := func(kind, id string, s *Status) {
		if s.Valid() {
			return
		}
		if logger != nil {
			logger.Warn("record has unknown status", slog.String("kind", kind), slog.String("id", id), slog.String("status", string(*s)))
		}
		*s = StatusInProgress
	}
	for i := range snap.Fallen {
		fix("fallen", snap.Fallen[i].ID, &snap.Fallen[i].Status)
	}
	for i := range snap.Disability {
		fix("disability", snap.Disability[i].ID, &snap.Disability[i].Status)
	}
	for i := range snap.Dependents {
		fix("dependent", snap.Dependents[i].ID, &snap.Dependents[i].Status)
	}
}

// LinkDependents fills CaseID for dependents that only carry the case holder's name.
// A name is resolved only when exactly one fallen-person record carries it; ambiguous
// or unknown names stay unlinked.
func LinkDependents(fallen []FallenPerson, deps []Dependent, logger *slog.Logger) []Dependent {
	byName := make(map[string][]string, len(fallen))
	for _, f := range fallen {
		byName[f.FullName] = append(byName[f.FullName], f.ID)
	}
	out := make([]Dependent, len(deps))
	for i, d := range deps {
		if d.CaseID == "" && d.CaseName != "" {
			switch ids := byName[d.CaseName]; len(ids) {
			case 1:
				d.CaseID = ids[0]
				d.CaseCategory = access.CategoryFallen
			case 0:
				if logger != nil {
					logger.Warn("dependent references unknown case", slog.String("dependent_id", d.ID))
				}
			default:
				if logger != nil {
					logger.Warn("dependent case name is ambiguous", slog.String("dependent_id", d.ID), slog.Int("matches", len(ids)))
				}
			}
		}
		out[i] = d
	}
	return out
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Offices:    append([]Office(nil), s.Offices...),
		Fallen:     append([]FallenPerson(nil), s.Fallen...),
		Disability: append([]DisabilityCase(nil), s.Disability...),
		Dependents: append([]Dependent(nil), s.Dependents...),
	}
}
