package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tellerpos/backend/internal/cache"
	"tellerpos/backend/internal/domain"
	"tellerpos/backend/internal/store"
)

var (
	// ErrForbidden covers both a wrong role and a missing profile.
	ErrForbidden          = errors.New("forbidden")
	ErrEmptyCart          = errors.New("cart has no items")
	ErrProductNotFound    = fmt.Errorf("product %w", store.ErrNotFound)
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account inactive")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	// Location cuts calendar days for reports. Defaults to time.Local.
	Location       *time.Location
	ReportCacheTTL time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

type Service struct {
	repo      store.Repository
	reports   cache.ReportCache
	reportTTL time.Duration
	loc       *time.Location
	now       func() time.Time
}

func New(repo store.Repository, reports cache.ReportCache, opts Options) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:      repo,
		reports:   reports,
		reportTTL: opts.ReportCacheTTL,
		loc:       opts.Location,
		now:       opts.Now,
	}
}

// ResolveRole looks up the actor's profile. Any failure, including a missing
// user or profile, yields no role.
func (s *Service) ResolveRole(ctx context.Context, actor domain.Actor) (domain.Role, bool) {
	if actor.UserID == "" {
		return "", false
	}
	account, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("user_id", actor.UserID).Msg("role lookup failed")
		}
		return "", false
	}
	if account.Profile == nil || !account.Profile.Role.Valid() {
		return "", false
	}
	return account.Profile.Role, true
}

// RequireRole reports whether the actor currently holds role.
func (s *Service) RequireRole(ctx context.Context, actor domain.Actor, role domain.Role) bool {
	resolved, ok := s.ResolveRole(ctx, actor)
	return ok && domain.HasRole(&domain.Profile{Role: resolved}, role)
}

// authorize resolves the context actor and checks it holds role.
func (s *Service) authorize(ctx context.Context, role domain.Role) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !s.RequireRole(ctx, actor, role) {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

func (s *Service) currentTime() time.Time {
	return s.now().In(s.loc)
}
