package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/dealshark/pkg/db/pagination"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action string
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// AuditLog records an action by the actor found on ctx.
	AuditLog(ctx context.Context, action string, targetType string, targetID *string, metadata map[string]any) error
	// List returns entries written by the actor found on ctx, newest first.
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidActor     = errors.New("invalid_actor")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidAction    = errors.New("invalid_action")
)
