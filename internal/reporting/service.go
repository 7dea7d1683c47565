package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/scope"
)

// View selects the row shape of a report.
type View string

const (
	ViewSummary  View = "summary"
	ViewDetailed View = "detailed"
)

// ParseView defaults to the summary view.
func ParseView(raw string) View {
	if strings.EqualFold(strings.TrimSpace(raw), string(ViewDetailed)) {
		return ViewDetailed
	}
	return ViewSummary
}

// SnapshotSource supplies the raw records a report runs over.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (records.Snapshot, error)
}

// Request describes one report run.
type Request struct {
	View   View
	Window Window
}

// Report is the result of a report run.
type Report struct {
	View        View         `json:"view"`
	Window      Window       `json:"window"`
	Office      string       `json:"office"`
	GeneratedAt time.Time    `json:"generated_at"`
	Summary     Summary      `json:"summary"`
	Rows        []SummaryRow `json:"rows,omitempty"`
	Detail      []DetailRow  `json:"detail,omitempty"`
}

// Service runs scoped reports.
type Service struct {
	source SnapshotSource
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(source SnapshotSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, logger: logger, now: time.Now}
}

// Build loads a snapshot, narrows it to what actor may see, applies the window and
// derives the requested view.
func (s *Service) Build(ctx context.Context, actor access.Actor, req Request) (Report, error) {
	if err := access.Require(actor, access.CategoryReports, access.ActionView); err != nil {
		return Report{}, err
	}
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reporting: load snapshot: %w", err)
	}
	return s.Compose(actor, snap, req), nil
}

// Compose derives a report from an already loaded snapshot. It performs no
// capability check.
func (s *Service) Compose(actor access.Actor, snap records.Snapshot, req Request) Report {
	visible := ApplyWindow(scope.Filter(actor, snap), req.Window)
	report := Report{
		View:        req.View,
		Window:      req.Window,
		Office:      actor.OfficeName,
		GeneratedAt: s.now(),
		Summary:     Summarize(visible, SummaryOptions{IncludeOffices: scope.BypassesTenancy(actor)}),
	}
	if req.View == ViewDetailed {
		report.Detail = Detail(visible)
	} else {
		report.Rows = SummaryRows(visible)
	}
	s.logger.Debug("report composed",
		slog.String("actor", actor.Username),
		slog.String("view", string(req.View)),
		slog.Int("cases", len(visible.Fallen)+len(visible.Disability)),
		slog.Int("dependents", len(visible.Dependents)),
	)
	return report
}

// Dashboard returns headline figures over everything actor may see, without a window.
func (s *Service) Dashboard(ctx context.Context, actor access.Actor) (Summary, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("reporting: load snapshot: %w", err)
	}
	visible := scope.Filter(actor, snap)
	return Summarize(visible, SummaryOptions{IncludeOffices: scope.BypassesTenancy(actor)}), nil
}
