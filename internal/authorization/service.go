package authorization

import (
	"context"
	"errors"

	"github.com/smallbiznis/dealshark/internal/actorcontext"
	"go.uber.org/fx"
)

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

type Service interface {
	// Authorize checks that the actor's role may perform action on object.
	Authorize(ctx context.Context, actor actorcontext.Actor, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
