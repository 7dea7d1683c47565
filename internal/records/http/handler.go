// Package recordhttp exposes scoped inquiry and capability-gated mutation endpoints for
// case records and offices.
package recordhttp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/platform/httpx"
	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/scope"
	"github.com/caseledger/caseledger/internal/shared"
)

const mutationsPerMinute = 120

// Handler serves record endpoints.
type Handler struct {
	logger      *slog.Logger
	loader      *records.Loader
	audit       *shared.AuditLogger
	idempotency *shared.IdempotencyStore
	limiter     func(http.Handler) http.Handler
}

// NewHandler builds the HTTP handler.
func NewHandler(logger *slog.Logger, loader *records.Loader, audit *shared.AuditLogger, idem *shared.IdempotencyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		loader:      loader,
		audit:       audit,
		idempotency: idem,
		limiter:     shared.ActorLimiter(mutationsPerMinute, time.Minute),
	}
}

// MountRoutes registers record routes. The router must already resolve the actor.
func (h *Handler) MountRoutes(r chi.Router) {
	mount(r, "/fallen", h, fallenResource)
	mount(r, "/disability", h, disabilityResource)
	mount(r, "/dependents", h, dependentResource)
	mount(r, "/offices", h, officeResource)
}

func mount[T any](r chi.Router, prefix string, h *Handler, res resource[T]) {
	r.Route(prefix, func(r chi.Router) {
		r.Get("/", list(h, res))
		r.Get("/{id}", get(h, res))
		r.Group(func(gr chi.Router) {
			gr.Use(h.limiter)
			gr.Post("/", create(h, res))
			gr.Put("/{id}", update(h, res))
			gr.Delete("/{id}", remove(h, res))
		})
	})
}

type listResponse[T any] struct {
	Items      []T               `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func list[T any](h *Handler, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := mustActor(r)
		if err := res.require(actor, access.ActionView); err != nil {
			h.deny(r, actor, res.entity, "list", "", err)
			shared.RespondError(w, err)
			return
		}
		snap, err := h.loader.Snapshot(r.Context())
		if err != nil {
			h.logger.Error("load records", slog.String("entity", res.entity), slog.Any("error", err))
			shared.RespondError(w, err)
			return
		}
		items := res.pick(scope.Filter(actor, snap))
		if res.query != nil {
			items = res.query(items, queryFromRequest(r))
		}
		page := shared.PaginationFromRequest(r, len(items))
		httpx.JSON(w, http.StatusOK, listResponse[T]{Items: shared.Page(items, page), Pagination: page})
	}
}

func get[T any](h *Handler, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := mustActor(r)
		if err := res.require(actor, access.ActionView); err != nil {
			h.deny(r, actor, res.entity, "view", chi.URLParam(r, "id"), err)
			shared.RespondError(w, err)
			return
		}
		item, _, err := visible(h, r, actor, res, chi.URLParam(r, "id"))
		if err != nil {
			shared.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, item)
	}
}

func create[T any](h *Handler, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := mustActor(r)
		if err := res.require(actor, access.ActionEdit); err != nil {
			h.deny(r, actor, res.entity, "create", "", err)
			shared.RespondError(w, err)
			return
		}
		var item T
		if err := httpx.DecodeJSON(r, &item); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "تعذر قراءة الطلب")
			return
		}
		snap, err := h.loader.Snapshot(r.Context())
		if err != nil {
			shared.RespondError(w, err)
			return
		}
		item = res.setID(item, "")
		if res.prepare != nil {
			item = res.prepare(h, actor, snap, item)
		}
		if err := admit(actor, res, snap, item); err != nil {
			shared.RespondError(w, err)
			return
		}

		key := r.Header.Get(shared.IdempotencyHeader)
		if err := h.idempotency.CheckAndInsert(r.Context(), key, res.entity); err != nil {
			shared.RespondError(w, err)
			return
		}
		created, err := res.coll(h.loader.Repository()).Create(r.Context(), item)
		if err != nil {
			_ = h.idempotency.Delete(r.Context(), key, res.entity)
			h.fail(r, actor, res.entity, "create", "", err)
			shared.RespondError(w, err)
			return
		}
		h.record(r, actor, res.entity, "create", res.id(created), shared.OutcomeAllowed)
		httpx.JSON(w, http.StatusCreated, created)
	}
}

func update[T any](h *Handler, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := mustActor(r)
		id := chi.URLParam(r, "id")
		_, snap, err := visible(h, r, actor, res, id)
		if err != nil {
			shared.RespondError(w, err)
			return
		}
		if err := res.require(actor, access.ActionEdit); err != nil {
			h.deny(r, actor, res.entity, "update", id, err)
			shared.RespondError(w, err)
			return
		}
		var item T
		if err := httpx.DecodeJSON(r, &item); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "تعذر قراءة الطلب")
			return
		}
		item = res.setID(item, id)
		if res.prepare != nil {
			item = res.prepare(h, actor, snap, item)
		}
		if err := admit(actor, res, snap, item); err != nil {
			shared.RespondError(w, err)
			return
		}
		updated, err := res.coll(h.loader.Repository()).Update(r.Context(), id, item)
		if err != nil {
			h.fail(r, actor, res.entity, "update", id, err)
			shared.RespondError(w, err)
			return
		}
		h.record(r, actor, res.entity, "update", id, shared.OutcomeAllowed)
		httpx.JSON(w, http.StatusOK, updated)
	}
}

func remove[T any](h *Handler, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := mustActor(r)
		id := chi.URLParam(r, "id")
		if _, _, err := visible(h, r, actor, res, id); err != nil {
			shared.RespondError(w, err)
			return
		}
		if err := res.require(actor, access.ActionDelete); err != nil {
			h.deny(r, actor, res.entity, "delete", id, err)
			shared.RespondError(w, err)
			return
		}
		if err := res.coll(h.loader.Repository()).Delete(r.Context(), id); err != nil {
			h.fail(r, actor, res.entity, "delete", id, err)
			shared.RespondError(w, err)
			return
		}
		h.record(r, actor, res.entity, "delete", id, shared.OutcomeAllowed)
		w.WriteHeader(http.StatusNoContent)
	}
}

// visible returns the record id when actor may see it; records outside the actor's
// scope are reported as not found.
func visible[T any](h *Handler, r *http.Request, actor access.Actor, res resource[T], id string) (T, records.Snapshot, error) {
	var zero T
	snap, err := h.loader.Snapshot(r.Context())
	if err != nil {
		return zero, records.Snapshot{}, err
	}
	for _, item := range res.pick(scope.Filter(actor, snap)) {
		if res.id(item) == id {
			return item, snap, nil
		}
	}
	return zero, snap, records.ErrNotFound
}
