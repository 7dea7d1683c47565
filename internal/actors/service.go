package actors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
	"github.com/caseledger/caseledger/internal/shared"
)

// Service applies actor administration on behalf of a signed-in administrator.
type Service struct {
	actors   records.Collection[access.Actor]
	admin    records.ActorAdmin
	audit    *shared.AuditLogger
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds the Service over the actor collections of repo.
func NewService(repo records.Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		actors:   repo.Actors,
		admin:    repo.ActorAdmin,
		audit:    audit,
		logger:   logger,
		validate: records.NewValidator(),
	}
}

// List returns every actor. Requires admin.manage_actors.
func (s *Service) List(ctx context.Context, by access.Actor) ([]access.Actor, error) {
	if err := s.require(ctx, by, "list", ""); err != nil {
		return nil, err
	}
	return s.actors.List(ctx)
}

// Get returns one actor.
func (s *Service) Get(ctx context.Context, by access.Actor, id string) (access.Actor, error) {
	if err := s.require(ctx, by, "view", id); err != nil {
		return access.Actor{}, err
	}
	return s.find(ctx, id)
}

// Create provisions an active actor. Without explicit capabilities the default
// grant applies.
func (s *Service) Create(ctx context.Context, by access.Actor, in NewActor) (access.Actor, error) {
	if err := s.require(ctx, by, "create", ""); err != nil {
		return access.Actor{}, err
	}
	if err := records.Validate(s.validate, in); err != nil {
		return access.Actor{}, err
	}
	matrix := access.DefaultGrant()
	if len(in.Capabilities) > 0 {
		matrix = access.Matrix{}
		for _, raw := range in.Capabilities {
			c, ok := access.ParseCapability(raw)
			if !ok {
				return access.Actor{}, &records.ValidationError{Fields: map[string]string{"capabilities": "unknown"}}
			}
			matrix = matrix.Grant(c)
		}
	}
	existing, err := s.actors.List(ctx)
	if err != nil {
		return access.Actor{}, err
	}
	for _, a := range existing {
		if strings.EqualFold(a.Username, in.Username) {
			return access.Actor{}, &records.ValidationError{Fields: map[string]string{"username": "unique"}}
		}
	}

	actor := access.Actor{
		Name:         strings.TrimSpace(in.Name),
		Username:     strings.TrimSpace(in.Username),
		Role:         access.ParseRole(in.Role),
		Scope:        access.ParseScope(in.Scope),
		OfficeID:     in.OfficeID,
		OfficeName:   strings.TrimSpace(in.OfficeName),
		Status:       access.StatusActive,
		Capabilities: matrix,
	}
	if actor.Scope == access.ScopeOfficeOnly && actor.OfficeName == "" {
		return access.Actor{}, &records.ValidationError{Fields: map[string]string{"office_name": "required"}}
	}
	created, err := s.actors.Create(ctx, actor)
	if err != nil {
		return access.Actor{}, err
	}
	s.record(ctx, by, "create", created.ID, map[string]any{"username": created.Username})
	return created, nil
}

// Toggle flips one capability of actor id and persists the resulting matrix.
func (s *Service) Toggle(ctx context.Context, by access.Actor, id, capability string) (access.Actor, error) {
	if err := s.require(ctx, by, "toggle", id); err != nil {
		return access.Actor{}, err
	}
	c, ok := access.ParseCapability(capability)
	if !ok {
		return access.Actor{}, &records.ValidationError{Fields: map[string]string{"capability": "unknown"}}
	}
	target, err := s.find(ctx, id)
	if err != nil {
		return access.Actor{}, err
	}
	matrix := target.Capabilities.Toggle(c.Category, c.Action)
	if err := s.admin.UpdatePermissions(ctx, id, matrix); err != nil {
		return access.Actor{}, fmt.Errorf("actors: update permissions: %w", err)
	}
	s.record(ctx, by, "toggle", id, map[string]any{
		"capability": c.String(),
		"granted":    matrix.Allows(c.Category, c.Action),
	})
	return target.WithCapabilities(matrix), nil
}

// SetStatus activates or disables actor id. Administrators cannot disable themselves.
func (s *Service) SetStatus(ctx context.Context, by access.Actor, id, status string) (access.Actor, error) {
	if err := s.require(ctx, by, "status", id); err != nil {
		return access.Actor{}, err
	}
	if _, ok := knownStatuses[strings.TrimSpace(status)]; !ok {
		return access.Actor{}, &records.ValidationError{Fields: map[string]string{"status": "oneof"}}
	}
	next := access.ParseStatus(status)
	target, err := s.find(ctx, id)
	if err != nil {
		return access.Actor{}, err
	}
	if next == access.StatusDisabled && strings.EqualFold(target.Username, by.Username) {
		return access.Actor{}, &records.ValidationError{Fields: map[string]string{"status": "self"}}
	}
	if err := s.admin.UpdateStatus(ctx, id, next); err != nil {
		return access.Actor{}, fmt.Errorf("actors: update status: %w", err)
	}
	s.record(ctx, by, "status", id, map[string]any{"status": string(next)})
	target.Status = next
	return target, nil
}

var knownStatuses = map[string]struct{}{
	string(access.StatusActive): {}, string(access.StatusDisabled): {}, "نشط": {}, "معطل": {},
}

func (s *Service) find(ctx context.Context, id string) (access.Actor, error) {
	all, err := s.actors.List(ctx)
	if err != nil {
		return access.Actor{}, err
	}
	for _, a := range all {
		if a.ID == id {
			return a, nil
		}
	}
	return access.Actor{}, records.ErrNotFound
}

func (s *Service) require(ctx context.Context, by access.Actor, action, id string) error {
	err := access.Require(by, access.CategoryAdmin, access.ActionManageActors)
	if err != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor: by.Username, Action: action, Entity: "actors", EntityID: id, Outcome: shared.OutcomeDenied,
		})
	}
	return err
}

func (s *Service) record(ctx context.Context, by access.Actor, action, id string, meta map[string]any) {
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor: by.Username, Action: action, Entity: "actors", EntityID: id, Outcome: shared.OutcomeAllowed, Meta: meta,
	})
}
