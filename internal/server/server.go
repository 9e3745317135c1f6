package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/storesync/internal/config"
	ingestiondomain "github.com/smallbiznis/storesync/internal/ingestion/domain"
	"github.com/smallbiznis/storesync/internal/observability"
	obsmiddleware "github.com/smallbiznis/storesync/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storesync/internal/observability/metrics"
	obstracing "github.com/smallbiznis/storesync/internal/observability/tracing"
	tenantdomain "github.com/smallbiznis/storesync/internal/tenant/domain"
	webhookdomain "github.com/smallbiznis/storesync/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// maxWebhookBody bounds a single delivery; larger bodies are rejected
// before signature verification.
const maxWebhookBody = 2 << 20

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterAPIRoutes()
		s.RegisterWebhookRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
		// Webhook logs line up with the source's delivery id.
		CorrelationHeaders: []string{webhookdomain.HeaderWebhookID},
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
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
	engine    *gin.Engine
	cfg       config.Config
	ingestion ingestiondomain.Service
	webhooks  webhookdomain.Service
	tenants   tenantdomain.Service
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Ingestion ingestiondomain.Service
	Webhooks  webhookdomain.Service
	Tenants   tenantdomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		ingestion: p.Ingestion,
		webhooks:  p.Webhooks,
		tenants:   p.Tenants,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Sync --------
	tenants := api.Group("/tenants/:tenant_id")
	tenants.POST("/sync", s.TriggerSync)
	tenants.GET("/sync/logs", s.ListSyncLogs)
	tenants.GET("/sync/checkpoints", s.ListSyncCheckpoints)

	// -------- Tenants --------
	tenants.PUT("/status", s.UpdateTenantStatus)
}

func (s *Server) RegisterWebhookRoutes() {
	s.engine.POST("/webhooks/*topic", s.HandleWebhook)
}
