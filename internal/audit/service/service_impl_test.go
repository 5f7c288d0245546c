package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealshark/internal/actorcontext"
	auditdomain "github.com/smallbiznis/dealshark/internal/audit/domain"
	"github.com/smallbiznis/dealshark/internal/audit/repository"
	"github.com/smallbiznis/dealshark/internal/auditcontext"
	"github.com/smallbiznis/dealshark/internal/clock"
	"github.com/smallbiznis/dealshark/internal/testutil"
	"github.com/smallbiznis/dealshark/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) auditdomain.Service {
	t.Helper()
	db := testutil.NewDB(t, &auditdomain.AuditLog{})
	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func businessCtx(id int64) context.Context {
	ctx := actorcontext.WithActor(context.Background(), actorcontext.Actor{Type: actorcontext.TypeBusiness, ID: snowflake.ID(id)})
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	return auditcontext.WithIPAddress(ctx, "10.0.0.1")
}

func TestAuditLogRecordsActorAndRequest(t *testing.T) {
	svc := newTestService(t)
	ctx := businessCtx(900)
	target := " 42 "

	require.NoError(t, svc.AuditLog(ctx, "deal.deactivated", "deal", &target, map[string]any{"reason": "owner"}))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	entry := resp.AuditLogs[0]
	assert.Equal(t, "business", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "900", *entry.ActorID)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "42", *entry.TargetID)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
}

func TestAuditLogRejectsBlankAction(t *testing.T) {
	svc := newTestService(t)
	assert.ErrorIs(t, svc.AuditLog(businessCtx(900), " ", "deal", nil, nil), auditdomain.ErrInvalidAction)
}

func TestListIsScopedToActorAndPaged(t *testing.T) {
	svc := newTestService(t)
	own := businessCtx(900)
	other := businessCtx(901)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(own, "deal.deactivated", "deal", nil, nil))
	}
	require.NoError(t, svc.AuditLog(other, "deal.deactivated", "deal", nil, nil))

	first, err := svc.List(own, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.Greater(t, first.AuditLogs[0].ID, first.AuditLogs[1].ID)

	second, err := svc.List(own, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)

	_, err = svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidActor)

	_, err = svc.List(own, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "%%"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
