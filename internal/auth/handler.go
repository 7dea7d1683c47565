package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/platform/httpx"
	"github.com/caseledger/caseledger/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	audit          *shared.AuditLogger
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, audit *shared.AuditLogger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		audit:          audit,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.With(h.RequireActor).Get("/session", h.showSession)
}

type loginForm struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type sessionView struct {
	Actor     access.Actor `json:"actor"`
	RoleLabel string       `json:"role_label"`
	CSRFToken string       `json:"csrf_token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "تعذر قراءة الطلب")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		httpx.JSON(w, http.StatusBadRequest, httpx.ValidationProblem(fields))
		return
	}

	actor, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		h.logger.Info("login rejected", slog.String("username", form.Username), slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Error("renew session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUsername(actor.Username)
	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	_ = h.audit.Record(r.Context(), shared.AuditLog{Actor: actor.Username, Action: "login", Entity: "session", EntityID: sess.ID})
	httpx.JSON(w, http.StatusOK, sessionView{Actor: actor, RoleLabel: actor.Role.Label(), CSRFToken: token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if username := sess.Username(); username != "" {
			_ = h.audit.Record(r.Context(), shared.AuditLog{Actor: username, Action: "logout", Entity: "session", EntityID: sess.ID})
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) showSession(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(shared.SessionFromContext(r.Context()))
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, sessionView{Actor: actor, RoleLabel: actor.Role.Label(), CSRFToken: token})
}

// RequireActor resolves the session's actor into the request context. Anonymous
// requests get 401 and disabled actors 403.
func (h *Handler) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.Username() == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "يجب تسجيل الدخول")
			return
		}
		actor, err := h.service.Resolve(r.Context(), sess.Username())
		if err != nil {
			if errors.Is(err, shared.ErrInvalidCredentials) {
				h.sessionManager.Destroy(sess)
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "يجب تسجيل الدخول")
				return
			}
			shared.RespondError(w, err)
			return
		}
		if actor.Status == access.StatusDisabled {
			shared.RespondError(w, shared.ErrAccountDisabled)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}
