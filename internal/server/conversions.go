package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	attributiondomain "github.com/smallbiznis/dealshark/internal/attribution/domain"
)

type recordConversionRequest struct {
	ReferralCode   string          `json:"referral_code"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	OrderReference string          `json:"order_reference"`
	OccurredAt     string          `json:"occurred_at"`
	Metadata       map[string]any  `json:"metadata"`
}

func (s *Server) RecordConversion(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req recordConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	occurredAt, err := parseOptionalTime(req.OccurredAt, false)
	if err != nil {
		AbortWithError(c, attributiondomain.ErrInvalidOccurredAt)
		return
	}

	resp, err := s.attributionSvc.RecordConversion(c.Request.Context(), attributiondomain.RecordConversionRequest{
		ReferralCode:   strings.TrimSpace(req.ReferralCode),
		PurchaseAmount: req.PurchaseAmount,
		OrderReference: strings.TrimSpace(req.OrderReference),
		OccurredAt:     occurredAt,
		Metadata:       req.Metadata,
		BusinessID:     actor.ID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"data": resp})
}

func (s *Server) GetEarnings(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.attributionSvc.GetEarningsSummary(c.Request.Context(), actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetEarningsStatement(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	doc, err := s.attributionSvc.RenderEarningsStatement(c.Request.Context(), actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="earnings-%s.pdf"`, actor.ID.String()))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (s *Server) GetPerformance(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.attributionSvc.GetReferrerPerformance(c.Request.Context(), actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
