package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
)

type createDealRequest struct {
	BusinessName      string           `json:"business_name"`
	Industry          string           `json:"industry"`
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	PosterText        string           `json:"poster_text"`
	RewardType        string           `json:"reward_type"`
	CustomerIncentive *decimal.Decimal `json:"customer_incentive"`
	NoRewardReason    string           `json:"no_reward_reason"`
	IsFeatured        bool             `json:"is_featured"`
}

func (s *Server) CreateDeal(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reward, err := dealdomain.ParseReward(req.RewardType, req.CustomerIncentive, req.NoRewardReason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dealSvc.Create(c.Request.Context(), dealdomain.CreateDealRequest{
		BusinessID:   actor.ID,
		BusinessName: strings.TrimSpace(req.BusinessName),
		Industry:     strings.TrimSpace(req.Industry),
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		PosterText:   strings.TrimSpace(req.PosterText),
		Reward:       reward,
		IsFeatured:   req.IsFeatured,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListDeals(c *gin.Context) {
	var query struct {
		PageToken       string `form:"page_token"`
		PageSize        int32  `form:"page_size"`
		Search          string `form:"search"`
		Industry        string `form:"industry"`
		RewardType      string `form:"reward_type"`
		BusinessID      string `form:"business_id"`
		MinIncentive    string `form:"min_incentive"`
		IsFeatured      string `form:"is_featured"`
		IncludeInactive string `form:"include_inactive"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	businessID, err := parseOptionalSnowflakeID(query.BusinessID)
	if err != nil {
		AbortWithError(c, newValidationError("business_id", "invalid_business_id", "invalid business_id"))
		return
	}
	isFeatured, err := parseOptionalBool(query.IsFeatured)
	if err != nil {
		AbortWithError(c, newValidationError("is_featured", "invalid_is_featured", "invalid is_featured"))
		return
	}
	minIncentive, err := parseOptionalDecimal(query.MinIncentive)
	if err != nil {
		AbortWithError(c, newValidationError("min_incentive", "invalid_min_incentive", "invalid min_incentive"))
		return
	}
	includeInactive, err := parseOptionalBool(query.IncludeInactive)
	if err != nil {
		AbortWithError(c, newValidationError("include_inactive", "invalid_include_inactive", "invalid include_inactive"))
		return
	}

	resp, err := s.dealSvc.List(c.Request.Context(), dealdomain.ListDealRequest{
		PageToken:       strings.TrimSpace(query.PageToken),
		PageSize:        query.PageSize,
		Search:          strings.TrimSpace(query.Search),
		Industry:        strings.TrimSpace(query.Industry),
		RewardType:      strings.TrimSpace(query.RewardType),
		BusinessID:      businessID,
		MinIncentive:    minIncentive,
		IsFeatured:      isFeatured,
		IncludeInactive: includeInactive != nil && *includeInactive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Deals, "page_info": resp.PageInfo})
}

func (s *Server) TrendingDeals(c *gin.Context) {
	limit, err := parseOptionalInt64(c.Query("limit"))
	if err != nil || (limit != nil && *limit < 0) {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	n := 0
	if limit != nil {
		n = int(*limit)
	}

	resp, err := s.dealSvc.Trending(c.Request.Context(), n)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PosterOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.dealSvc.PosterOptions()})
}

func (s *Server) MyDeals(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.dealSvc.ListByBusiness(c.Request.Context(), actor.ID, true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDeal(c *gin.Context) {
	id, err := parseDealID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	viewer, err := parseOptionalSnowflakeID(c.Query("viewer"))
	if err != nil {
		AbortWithError(c, newValidationError("viewer", "invalid_viewer", "invalid viewer"))
		return
	}
	if viewer == nil {
		if actor, ok := actorFromRequest(c); ok && actor.IsCustomer() {
			viewer = &actor.ID
		}
	}

	resp, err := s.dealSvc.Get(c.Request.Context(), dealdomain.GetDealRequest{ID: id, ViewerID: viewer})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateDeal(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := parseDealID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.dealSvc.Deactivate(c.Request.Context(), dealdomain.DeactivateDealRequest{
		DealID:     id,
		BusinessID: actor.ID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBusinessDeals(c *gin.Context) {
	businessID, err := snowflake.ParseString(strings.TrimSpace(c.Param("business_id")))
	if err != nil || businessID <= 0 {
		AbortWithError(c, dealdomain.ErrInvalidBusiness)
		return
	}

	resp, err := s.dealSvc.ListByBusiness(c.Request.Context(), businessID, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseDealID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, dealdomain.ErrInvalidID
	}
	return id, nil
}
