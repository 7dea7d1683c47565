package auth

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/shared"
)

// ActorLister lists the actor records held by the record store.
type ActorLister interface {
	List(ctx context.Context) ([]access.Actor, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	actors ActorLister
	logger *slog.Logger
}

// NewService constructs a new Service. actors may be nil, in which case the directory
// profile is authoritative.
func NewService(repo Repository, actors ActorLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, actors: actors, logger: logger}
}

// Authenticate checks username/password and returns the resolved actor.
func (s *Service) Authenticate(ctx context.Context, username, password string) (access.Actor, error) {
	cred, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return access.Actor{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return access.Actor{}, shared.ErrInvalidCredentials
	}
	actor, err := s.resolve(ctx, *cred)
	if err != nil {
		return access.Actor{}, err
	}
	if actor.Status == access.StatusDisabled {
		return access.Actor{}, shared.ErrAccountDisabled
	}
	return actor, nil
}

// Resolve rebuilds the actor of an authenticated session so grant and status
// changes apply on the next request.
func (s *Service) Resolve(ctx context.Context, username string) (access.Actor, error) {
	cred, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return access.Actor{}, shared.ErrInvalidCredentials
	}
	return s.resolve(ctx, *cred)
}

func (s *Service) resolve(ctx context.Context, cred Credential) (access.Actor, error) {
	actor := cred.Actor()
	if s.actors == nil {
		return actor, nil
	}
	stored, err := s.actors.List(ctx)
	if err != nil {
		// A stored override may revoke grants, so the directory profile is not a
		// fallback.
		s.logger.Warn("resolve actor", slog.String("username", cred.Username), slog.Any("error", err))
		return access.Actor{}, err
	}
	for _, a := range stored {
		if strings.EqualFold(a.Username, cred.Username) {
			a.Username = cred.Username
			return a, nil
		}
	}
	return actor, nil
}
