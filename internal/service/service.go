package service

import (
	"context"
	"log/slog"
	"time"

	"stockroom/backend/internal/authz"
	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
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
	// DefaultLowStockThreshold applies to items created without one.
	DefaultLowStockThreshold int
	// Now is the clock used for timestamps. Defaults to time.Now in UTC.
	Now func() time.Time
}

type Service struct {
	repo             store.Repository
	logger           *slog.Logger
	defaultThreshold int
	now              func() time.Time
}

func New(repo store.Repository, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultLowStockThreshold <= 0 {
		opts.DefaultLowStockThreshold = domain.DefaultLowStockThreshold
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:             repo,
		logger:           logger,
		defaultThreshold: opts.DefaultLowStockThreshold,
		now:              opts.Now,
	}
}

// authorize resolves the actor from ctx and checks the action against the
// resource in one step.
func (s *Service) authorize(ctx context.Context, action authz.Action, resource authz.Resource) (domain.Actor, error) {
	actor, _ := ActorFromContext(ctx)
	if err := authz.Can(actor, action, resource); err != nil {
		return domain.Actor{}, err
	}
	return actor, nil
}
