package actorcontext

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Type is the kind of authenticated caller.
type Type string

const (
	TypeCustomer Type = "customer"
	TypeBusiness Type = "business"
)

var ErrInvalidActorType = errors.New("invalid_actor_type")

// Actor is an identity already verified by the gateway.
type Actor struct {
	Type Type
	ID   snowflake.ID
}

func (a Actor) IsCustomer() bool { return a.Type == TypeCustomer && a.ID != 0 }
func (a Actor) IsBusiness() bool { return a.Type == TypeBusiness && a.ID != 0 }

// Subject is the casbin subject for the actor.
func (a Actor) Subject() string {
	return string(a.Type) + ":" + a.ID.String()
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || actor.ID == 0 {
		return Actor{}, false
	}
	return actor, true
}

func ParseType(raw string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeCustomer:
		return TypeCustomer, nil
	case TypeBusiness:
		return TypeBusiness, nil
	default:
		return "", ErrInvalidActorType
	}
}
