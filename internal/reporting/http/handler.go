// Package reporthttp serves scoped reports, CSV exports and the dashboard.
package reporthttp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/platform/httpx"
	"github.com/caseledger/caseledger/internal/reporting"
	"github.com/caseledger/caseledger/internal/reporting/export"
	"github.com/caseledger/caseledger/internal/shared"
)

const (
	requestTimeout   = 10 * time.Second
	exportsPerMinute = 10
)

// Handler coordinates report requests.
type Handler struct {
	logger  *slog.Logger
	service *reporting.Service
	audit   *shared.AuditLogger
	csvPool sync.Pool
	now     func() time.Time
}

// NewHandler constructs the reporting HTTP handler.
func NewHandler(logger *slog.Logger, service *reporting.Service, audit *shared.AuditLogger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service, audit: audit, now: time.Now}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// MountRoutes registers report endpoints. The router must already resolve the actor.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/dashboard", h.handleDashboard)
	r.Get("/reports", h.handleReport)
	r.With(shared.ActorLimiter(exportsPerMinute, time.Minute)).Get("/reports/export", h.handleExport)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summary, err := h.service.Dashboard(ctx, actor)
	if err != nil {
		h.logger.Error("load dashboard", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	report, err := h.build(r, actor)
	if err != nil {
		h.respond(w, r, actor, "view", err)
		return
	}
	h.audited(r, actor, "view", report)
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if err := access.Require(actor, access.CategoryReports, access.ActionExport); err != nil {
		h.respond(w, r, actor, "export", err)
		return
	}
	report, err := h.build(r, actor)
	if err != nil {
		h.respond(w, r, actor, "export", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if werr := export.Write(buf, report.View, report); werr != nil {
		h.logger.Error("write report csv", slog.Any("error", werr))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "تعذر إنشاء الملف")
		return
	}
	h.audited(r, actor, "export", report)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", contentDisposition(export.FileName(report.Office, h.now())))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) build(r *http.Request, actor access.Actor) (reporting.Report, error) {
	q := r.URL.Query()
	req := reporting.Request{
		View:   reporting.ParseView(q.Get("view")),
		Window: reporting.ParseWindow(q.Get("start"), q.Get("end")),
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	return h.service.Build(ctx, actor, req)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, actor access.Actor, action string, err error) {
	outcome := shared.OutcomeFailed
	if errors.Is(err, access.ErrDenied) {
		outcome = shared.OutcomeDenied
	} else {
		h.logger.Error("build report", slog.String("action", action), slog.Any("error", err))
	}
	_ = h.audit.Record(r.Context(), shared.AuditLog{
		Actor: actor.Username, Action: action, Entity: "reports", Outcome: outcome,
	})
	shared.RespondError(w, err)
}

func (h *Handler) audited(r *http.Request, actor access.Actor, action string, report reporting.Report) {
	_ = h.audit.Record(r.Context(), shared.AuditLog{
		Actor: actor.Username, Action: action, Entity: "reports", Outcome: shared.OutcomeAllowed,
		Meta: map[string]any{"view": string(report.View), "rows": len(report.Rows) + len(report.Detail)},
	})
}

// contentDisposition renders an attachment header with an RFC 2231 encoded name and
// an ASCII fallback for older clients.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v + `; filename="report.csv"`
	}
	return `attachment; filename="report.csv"`
}
