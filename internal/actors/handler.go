package actors

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/caseledger/caseledger/internal/platform/httpx"
	"github.com/caseledger/caseledger/internal/shared"
)

// Handler manages actor administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers actor routes. The router must already resolve the actor.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listActors)
	r.Post("/", h.createActor)
	r.Get("/{id}", h.getActor)
	r.Post("/{id}/permissions/toggle", h.toggleCapability)
	r.Put("/{id}/status", h.setStatus)
}

func (h *Handler) listActors(w http.ResponseWriter, r *http.Request) {
	by, _ := shared.ActorFromContext(r.Context())
	list, err := h.service.List(r.Context(), by)
	if err != nil {
		h.respondError(w, "list actors", err)
		return
	}
	views := make([]View, 0, len(list))
	for _, a := range list {
		views = append(views, viewOf(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": views})
}

func (h *Handler) getActor(w http.ResponseWriter, r *http.Request) {
	by, _ := shared.ActorFromContext(r.Context())
	actor, err := h.service.Get(r.Context(), by, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get actor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(actor))
}

func (h *Handler) createActor(w http.ResponseWriter, r *http.Request) {
	by, _ := shared.ActorFromContext(r.Context())
	var in NewActor
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "تعذر قراءة الطلب")
		return
	}
	actor, err := h.service.Create(r.Context(), by, in)
	if err != nil {
		h.respondError(w, "create actor", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, viewOf(actor))
}

func (h *Handler) toggleCapability(w http.ResponseWriter, r *http.Request) {
	by, _ := shared.ActorFromContext(r.Context())
	var in ToggleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "تعذر قراءة الطلب")
		return
	}
	actor, err := h.service.Toggle(r.Context(), by, chi.URLParam(r, "id"), in.Capability)
	if err != nil {
		h.respondError(w, "toggle capability", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(actor))
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	by, _ := shared.ActorFromContext(r.Context())
	var in StatusInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "تعذر قراءة الطلب")
		return
	}
	actor, err := h.service.SetStatus(r.Context(), by, chi.URLParam(r, "id"), in.Status)
	if err != nil {
		h.respondError(w, "set actor status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(actor))
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op+" failed", slog.Any("error", err))
	shared.RespondError(w, err)
}
