package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dealshark/internal/actorcontext"
	"github.com/smallbiznis/dealshark/internal/auditcontext"
	obscontext "github.com/smallbiznis/dealshark/internal/observability/context"
)

// The identity gateway authenticates callers and forwards these headers.
const (
	HeaderActorType = "X-Actor-Type"
	HeaderActorID   = "X-Actor-ID"
)

// ActorContext copies the gateway identity and request metadata onto the
// request context. Requests without identity headers continue anonymously.
func (s *Server) ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = auditcontext.WithRequestID(ctx, c.GetString("request_id"))
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())

		rawType := strings.TrimSpace(c.GetHeader(HeaderActorType))
		rawID := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if rawType != "" || rawID != "" {
			actor, err := parseActor(rawType, rawID)
			if err != nil {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			ctx = actorcontext.WithActor(ctx, actor)
			ctx = obscontext.WithActor(ctx, string(actor.Type), actor.ID.String())
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireActor rejects anonymous callers and callers whose role lacks action on object.
func (s *Server) RequireActor(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorcontext.FromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func parseActor(rawType, rawID string) (actorcontext.Actor, error) {
	actorType, err := actorcontext.ParseType(rawType)
	if err != nil {
		return actorcontext.Actor{}, err
	}
	id, err := snowflake.ParseString(rawID)
	if err != nil || id <= 0 {
		return actorcontext.Actor{}, ErrUnauthorized
	}
	return actorcontext.Actor{Type: actorType, ID: id}, nil
}

func actorFromRequest(c *gin.Context) (actorcontext.Actor, bool) {
	return actorcontext.FromContext(c.Request.Context())
}
