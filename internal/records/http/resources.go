package recordhttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/scope"
	"github.com/caseledger/caseledger/internal/shared"
)

// resource describes how one record collection is exposed.
type resource[T any] struct {
	entity string
	// category guards view/edit/delete. Empty means reads are open to any actor
	// and mutations need admin.manage_offices.
	category access.Category
	coll     func(records.Repository) records.Collection[T]
	pick     func(records.Snapshot) []T
	id       func(T) string
	setID    func(T, string) T
	office   func(records.Snapshot, T) string
	query    func([]T, records.Query) []T
	prepare  func(*Handler, access.Actor, records.Snapshot, T) T
}

func (res resource[T]) require(actor access.Actor, act access.Action) error {
	if res.category == "" {
		if act == access.ActionView {
			return nil
		}
		return access.Require(actor, access.CategoryAdmin, access.ActionManageOffices)
	}
	return access.Require(actor, res.category, act)
}

// admit validates item and checks that it lands inside the actor's scope.
func admit[T any](actor access.Actor, res resource[T], snap records.Snapshot, item T) error {
	if err := records.Validate(validate, item); err != nil {
		return err
	}
	if res.office == nil {
		return nil
	}
	if office := res.office(snap, item); !scope.CanTouch(actor, office) {
		return &records.ValidationError{Fields: map[string]string{"office": "scope"}}
	}
	return nil
}

var validate = records.NewValidator()

var fallenResource = resource[records.FallenPerson]{
	entity:   "fallen",
	category: access.CategoryFallen,
	coll:     func(r records.Repository) records.Collection[records.FallenPerson] { return r.Fallen },
	pick:     func(s records.Snapshot) []records.FallenPerson { return s.Fallen },
	id:       func(f records.FallenPerson) string { return f.ID },
	setID:    func(f records.FallenPerson, id string) records.FallenPerson { f.ID = id; return f },
	office:   func(_ records.Snapshot, f records.FallenPerson) string { return f.Office },
	query:    records.Apply[records.FallenPerson],
	prepare: func(_ *Handler, actor access.Actor, _ records.Snapshot, f records.FallenPerson) records.FallenPerson {
		f.Office = defaultOffice(actor, f.Office)
		return f
	},
}

var disabilityResource = resource[records.DisabilityCase]{
	entity:   "disability",
	category: access.CategoryDisability,
	coll:     func(r records.Repository) records.Collection[records.DisabilityCase] { return r.Disability },
	pick:     func(s records.Snapshot) []records.DisabilityCase { return s.Disability },
	id:       func(d records.DisabilityCase) string { return d.ID },
	setID:    func(d records.DisabilityCase, id string) records.DisabilityCase { d.ID = id; return d },
	office:   func(_ records.Snapshot, d records.DisabilityCase) string { return d.Office },
	query:    records.Apply[records.DisabilityCase],
	prepare: func(_ *Handler, actor access.Actor, _ records.Snapshot, d records.DisabilityCase) records.DisabilityCase {
		d.Office = defaultOffice(actor, d.Office)
		return d
	},
}

var dependentResource = resource[records.Dependent]{
	entity:   "dependents",
	category: access.CategoryDependent,
	coll:     func(r records.Repository) records.Collection[records.Dependent] { return r.Dependents },
	pick:     func(s records.Snapshot) []records.Dependent { return s.Dependents },
	id:       func(d records.Dependent) string { return d.ID },
	setID:    func(d records.Dependent, id string) records.Dependent { d.ID = id; return d },
	office:   caseOffice,
	query:    records.Apply[records.Dependent],
	prepare: func(h *Handler, _ access.Actor, snap records.Snapshot, d records.Dependent) records.Dependent {
		linked := records.LinkDependents(snap.Fallen, []records.Dependent{d}, h.logger)[0]
		for _, c := range snap.Cases() {
			if records.KeyOf(c) == linked.CaseRef() {
				linked.CaseName = c.Name()
				break
			}
		}
		return linked
	},
}

var officeResource = resource[records.Office]{
	entity: "offices",
	coll:   func(r records.Repository) records.Collection[records.Office] { return r.Offices },
	pick:   func(s records.Snapshot) []records.Office { return s.Offices },
	id:     func(o records.Office) string { return o.ID },
	setID:  func(o records.Office, id string) records.Office { o.ID = id; return o },
}

// caseOffice resolves a dependent's office through its case. Unlinked dependents
// belong to no office.
func caseOffice(snap records.Snapshot, d records.Dependent) string {
	ref := d.CaseRef()
	for _, c := range snap.Cases() {
		if records.KeyOf(c) == ref {
			return c.AffiliatedOffice()
		}
	}
	return ""
}

func defaultOffice(actor access.Actor, office string) string {
	if strings.TrimSpace(office) == "" && !scope.BypassesTenancy(actor) {
		return actor.OfficeName
	}
	return office
}

func queryFromRequest(r *http.Request) records.Query {
	q := r.URL.Query()
	status, _ := records.ParseStatus(q.Get("status"))
	return records.Query{
		Text:         q.Get("q"),
		Status:       status,
		Relationship: q.Get("relationship"),
		SortBy:       records.ParseSortField(q.Get("sort")),
		Descending:   strings.EqualFold(q.Get("order"), "desc"),
	}
}

func mustActor(r *http.Request) access.Actor {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor
}

func (h *Handler) record(r *http.Request, actor access.Actor, entity, action, id, outcome string) {
	_ = h.audit.Record(r.Context(), shared.AuditLog{
		Actor: actor.Username, Action: action, Entity: entity, EntityID: id, Outcome: outcome,
	})
}

func (h *Handler) deny(r *http.Request, actor access.Actor, entity, action, id string, err error) {
	var denied *access.DeniedError
	meta := map[string]any{}
	if errors.As(err, &denied) {
		meta["capability"] = denied.Capability.String()
	}
	_ = h.audit.Record(r.Context(), shared.AuditLog{
		Actor: actor.Username, Action: action, Entity: entity, EntityID: id, Outcome: shared.OutcomeDenied, Meta: meta,
	})
}

func (h *Handler) fail(r *http.Request, actor access.Actor, entity, action, id string, err error) {
	h.logger.Error("record mutation failed",
		slog.String("entity", entity), slog.String("action", action), slog.String("id", id), slog.Any("error", err))
	h.record(r, actor, entity, action, id, shared.OutcomeFailed)
}
