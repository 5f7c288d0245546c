package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/dealshark/internal/actorcontext"
	auditdomain "github.com/smallbiznis/dealshark/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	RoleCustomer = "role:customer"
	RoleBusiness = "role:business"
)

const (
	ObjectDeal         = "deal"
	ObjectSubscription = "subscription"
	ObjectAttribution  = "attribution"
	ObjectAnalytics    = "analytics"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionDealCreate     = "deal.create"
	ActionDealDeactivate = "deal.deactivate"
	ActionDealListOwn    = "deal.list_own"

	ActionSubscriptionSubscribe       = "subscription.subscribe"
	ActionSubscriptionUnsubscribe     = "subscription.unsubscribe"
	ActionSubscriptionListOwn         = "subscription.list_own"
	ActionSubscriptionListSubscribers = "subscription.list_subscribers"

	ActionAttributionRecord       = "attribution.record"
	ActionAttributionViewEarnings = "attribution.view_earnings"

	ActionAnalyticsViewRevenue   = "analytics.view_revenue"
	ActionAnalyticsViewBusiness  = "analytics.view_business"
	ActionAnalyticsViewReferrals = "analytics.view_referrals"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor actorcontext.Actor, object string, action string) error {
	roleName, ok := roleFor(actor)
	if !ok {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := actor.Subject()
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actor, object, action)
		return ErrForbidden
	}
	return nil
}

func roleFor(actor actorcontext.Actor) (string, bool) {
	switch {
	case actor.IsCustomer():
		return RoleCustomer, true
	case actor.IsBusiness():
		return RoleBusiness, true
	default:
		return "", false
	}
}

// ensureGrouping keeps exactly one role link per subject.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor actorcontext.Actor, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	targetID := "capability"
	if err := s.auditSvc.AuditLog(ctx, "authorization.denied", "authorization", &targetID, map[string]any{
		"object":  object,
		"action":  action,
		"subject": actor.Subject(),
	}); err != nil {
		s.log.Warn("audit denied failed", zap.Error(err))
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Customers subscribe and earn.
		{RoleCustomer, ObjectSubscription, ActionSubscriptionSubscribe},
		{RoleCustomer, ObjectSubscription, ActionSubscriptionUnsubscribe},
		{RoleCustomer, ObjectSubscription, ActionSubscriptionListOwn},
		{RoleCustomer, ObjectAttribution, ActionAttributionViewEarnings},
		{RoleCustomer, ObjectAnalytics, ActionAnalyticsViewReferrals},

		// Businesses own deals and record conversions.
		{RoleBusiness, ObjectDeal, ActionDealCreate},
		{RoleBusiness, ObjectDeal, ActionDealDeactivate},
		{RoleBusiness, ObjectDeal, ActionDealListOwn},
		{RoleBusiness, ObjectSubscription, ActionSubscriptionListSubscribers},
		{RoleBusiness, ObjectAttribution, ActionAttributionRecord},
		{RoleBusiness, ObjectAnalytics, ActionAnalyticsViewRevenue},
		{RoleBusiness, ObjectAnalytics, ActionAnalyticsViewBusiness},
		{RoleBusiness, ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
