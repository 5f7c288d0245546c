package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
	"go.uber.org/zap"
)

type subscribeRequest struct {
	DealID     string `json:"deal_id"`
	ReferrerID string `json:"referrer_id"`
}

func (s *Server) Subscribe(c *gin.Context) {
	req, ok := s.bindSubscribeRequest(c)
	if !ok {
		return
	}

	resp, err := s.subscriptionSvc.Subscribe(c.Request.Context(), req)
	if errors.Is(err, subscriptiondomain.ErrConflict) {
		// A concurrent subscribe won the insert; the retry observes its row.
		s.log.Debug("subscribe conflict, retrying",
			zap.String("deal_id", req.DealID.String()),
			zap.String("referrer_id", req.ReferrerID.String()),
		)
		resp, err = s.subscriptionSvc.Subscribe(c.Request.Context(), req)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Unsubscribe(c *gin.Context) {
	req, ok := s.bindSubscribeRequest(c)
	if !ok {
		return
	}

	resp, err := s.subscriptionSvc.Unsubscribe(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// bindSubscribeRequest writes the error response itself when it returns false.
func (s *Server) bindSubscribeRequest(c *gin.Context) (subscriptiondomain.SubscribeRequest, bool) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return subscriptiondomain.SubscribeRequest{}, false
	}

	var body subscribeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return subscriptiondomain.SubscribeRequest{}, false
	}

	dealID, err := snowflake.ParseString(strings.TrimSpace(body.DealID))
	if err != nil || dealID <= 0 {
		AbortWithError(c, subscriptiondomain.ErrInvalidDeal)
		return subscriptiondomain.SubscribeRequest{}, false
	}

	referrerID, err := parseOptionalSnowflakeID(body.ReferrerID)
	if err != nil {
		AbortWithError(c, subscriptiondomain.ErrInvalidReferrer)
		return subscriptiondomain.SubscribeRequest{}, false
	}
	if referrerID != nil && *referrerID != actor.ID {
		AbortWithError(c, subscriptiondomain.ErrForbidden)
		return subscriptiondomain.SubscribeRequest{}, false
	}

	return subscriptiondomain.SubscribeRequest{DealID: dealID, ReferrerID: actor.ID}, true
}

func (s *Server) MySubscriptions(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.subscriptionSvc.ListForReferrer(c.Request.Context(), actor.ID, active != nil && *active)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSubscribers(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	businessID, err := snowflake.ParseString(strings.TrimSpace(c.Param("business_id")))
	if err != nil || businessID <= 0 {
		AbortWithError(c, subscriptiondomain.ErrInvalidBusiness)
		return
	}
	if businessID != actor.ID {
		AbortWithError(c, subscriptiondomain.ErrForbidden)
		return
	}

	dealID, err := parseOptionalSnowflakeID(c.Query("deal_id"))
	if err != nil {
		AbortWithError(c, subscriptiondomain.ErrInvalidDeal)
		return
	}

	resp, err := s.subscriptionSvc.ListSubscribersForBusiness(c.Request.Context(), subscriptiondomain.ListSubscribersRequest{
		BusinessID: businessID,
		DealID:     dealID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) IsSubscribed(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	dealID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || dealID <= 0 {
		AbortWithError(c, subscriptiondomain.ErrInvalidDeal)
		return
	}

	subscribed, err := s.subscriptionSvc.IsSubscribed(c.Request.Context(), dealID, actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"deal_id":       dealID.String(),
		"is_subscribed": subscribed,
	}})
}
