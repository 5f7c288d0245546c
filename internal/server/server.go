package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/dealshark/internal/attribution"
	attributiondomain "github.com/smallbiznis/dealshark/internal/attribution/domain"
	"github.com/smallbiznis/dealshark/internal/audit"
	auditdomain "github.com/smallbiznis/dealshark/internal/audit/domain"
	"github.com/smallbiznis/dealshark/internal/authorization"
	"github.com/smallbiznis/dealshark/internal/config"
	"github.com/smallbiznis/dealshark/internal/deal"
	dealdomain "github.com/smallbiznis/dealshark/internal/deal/domain"
	"github.com/smallbiznis/dealshark/internal/events"
	"github.com/smallbiznis/dealshark/internal/observability"
	obslogger "github.com/smallbiznis/dealshark/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dealshark/internal/observability/metrics"
	obstracing "github.com/smallbiznis/dealshark/internal/observability/tracing"
	"github.com/smallbiznis/dealshark/internal/providers/pdf"
	"github.com/smallbiznis/dealshark/internal/ratelimit"
	"github.com/smallbiznis/dealshark/internal/referrallink"
	referrallinkdomain "github.com/smallbiznis/dealshark/internal/referrallink/domain"
	"github.com/smallbiznis/dealshark/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/dealshark/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	events.Module,
	ratelimit.Module,
	pdf.Module,
	deal.Module,
	subscription.Module,
	referrallink.Module,
	attribution.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	r := gin.New()
	// ClientIP keys the /r/:code limiter, so forwarded headers are only
	// honored from configured proxies.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r, nil
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	return NewEngine(cfg, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	dealSvc         dealdomain.Service
	subscriptionSvc subscriptiondomain.Service
	attributionSvc  attributiondomain.Service
	resolver        referrallinkdomain.Resolver
	resolveLimiter  *ratelimit.ResolveLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	DealSvc         dealdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	AttributionSvc  attributiondomain.Service
	Resolver        referrallinkdomain.Resolver
	ResolveLimiter  *ratelimit.ResolveLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		dealSvc:         p.DealSvc,
		subscriptionSvc: p.SubscriptionSvc,
		attributionSvc:  p.AttributionSvc,
		resolver:        p.Resolver,
		resolveLimiter:  p.ResolveLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerPublicRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.ActorContext())

	// -------- Deals --------
	api.POST("/deals", s.RequireActor(authorization.ObjectDeal, authorization.ActionDealCreate), s.CreateDeal)
	api.GET("/deals", s.ListDeals)
	api.GET("/deals/trending", s.TrendingDeals)
	api.GET("/deals/poster-options", s.PosterOptions)
	api.GET("/deals/my", s.RequireActor(authorization.ObjectDeal, authorization.ActionDealListOwn), s.MyDeals)
	api.GET("/deals/:id", s.GetDeal)
	api.POST("/deals/:id/deactivate", s.RequireActor(authorization.ObjectDeal, authorization.ActionDealDeactivate), s.DeactivateDeal)

	// -------- Referrals --------
	referrals := api.Group("/referrals")
	referrals.POST("/subscribe", s.RequireActor(authorization.ObjectSubscription, authorization.ActionSubscriptionSubscribe), s.Subscribe)
	referrals.POST("/unsubscribe", s.RequireActor(authorization.ObjectSubscription, authorization.ActionSubscriptionUnsubscribe), s.Unsubscribe)
	referrals.GET("/my-subscriptions", s.RequireActor(authorization.ObjectSubscription, authorization.ActionSubscriptionListOwn), s.MySubscriptions)
	referrals.GET("/:business_id/subscribers", s.RequireActor(authorization.ObjectSubscription, authorization.ActionSubscriptionListSubscribers), s.ListSubscribers)
	referrals.GET("/deals/:id/subscribed", s.RequireActor(authorization.ObjectSubscription, authorization.ActionSubscriptionListOwn), s.IsSubscribed)
	referrals.POST("/conversions", s.RequireActor(authorization.ObjectAttribution, authorization.ActionAttributionRecord), s.RecordConversion)
	referrals.GET("/earnings", s.RequireActor(authorization.ObjectAttribution, authorization.ActionAttributionViewEarnings), s.GetEarnings)
	referrals.GET("/earnings/statement.pdf", s.RequireActor(authorization.ObjectAttribution, authorization.ActionAttributionViewEarnings), s.GetEarningsStatement)
	referrals.GET("/performance", s.RequireActor(authorization.ObjectAnalytics, authorization.ActionAnalyticsViewReferrals), s.GetPerformance)

	// -------- Businesses --------
	businesses := api.Group("/businesses")
	businesses.GET("/:business_id/deals", s.ListBusinessDeals)
	businesses.GET("/me/revenue", s.RequireActor(authorization.ObjectAnalytics, authorization.ActionAnalyticsViewRevenue), s.GetRevenue)
	businesses.GET("/me/analytics", s.RequireActor(authorization.ObjectAnalytics, authorization.ActionAnalyticsViewBusiness), s.GetAnalytics)
	businesses.GET("/me/audit-logs", s.RequireActor(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerPublicRoutes() {
	s.engine.GET("/r/:code", s.ResolveRateLimit(), s.ResolveReferral)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
