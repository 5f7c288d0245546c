package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	attributiondomain "github.com/smallbiznis/dealshark/internal/attribution/domain"
	auditdomain "github.com/smallbiznis/dealshark/internal/audit/domain"
	"github.com/smallbiznis/dealshark/pkg/db/pagination"
)

func (s *Server) GetRevenue(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.attributionSvc.GetRevenueSummary(c.Request.Context(), actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAnalytics(c *gin.Context) {
	actor, ok := actorFromRequest(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	days, err := parseOptionalInt64(c.Query("days"))
	if err != nil {
		AbortWithError(c, attributiondomain.ErrInvalidDays)
		return
	}
	window := 0
	if days != nil {
		if *days == 0 {
			AbortWithError(c, attributiondomain.ErrInvalidDays)
			return
		}
		window = int(*days)
	}

	resp, err := s.attributionSvc.GetBusinessAnalytics(c.Request.Context(), actor.ID, window)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type listAuditLogsQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
	Action    string `form:"action"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Action: strings.TrimSpace(query.Action),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}
