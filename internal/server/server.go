package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voxora/voxora/internal/admission"
	"github.com/voxora/voxora/internal/config"
	ledgerdomain "github.com/voxora/voxora/internal/ledger/domain"
	"github.com/voxora/voxora/internal/observability/logger"
	"github.com/voxora/voxora/internal/rate"
	"github.com/voxora/voxora/internal/reaper"
	sessiondomain "github.com/voxora/voxora/internal/session/domain"
)

type ServerParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Cfg          config.Config
	Rates        rate.Table
	LedgerSvc    ledgerdomain.Service
	AdmissionSvc admission.Service
	SessionSvc   sessiondomain.Service
	Reaper       *reaper.Worker
}

// Server carries the HTTP handlers and their dependencies.
type Server struct {
	db  *gorm.DB
	log *zap.Logger
	cfg config.Config

	rates        rate.Table
	ledgerSvc    ledgerdomain.Service
	admissionSvc admission.Service
	sessionSvc   sessiondomain.Service
	reaper       *reaper.Worker
	limiter      *rateLimiter
}

func NewServer(p ServerParam) *Server {
	return &Server{
		db:  p.DB,
		log: p.Log.Named("server"),
		cfg: p.Cfg,

		rates:        p.Rates,
		ledgerSvc:    p.LedgerSvc,
		admissionSvc: p.AdmissionSvc,
		sessionSvc:   p.SessionSvc,
		reaper:       p.Reaper,
		limiter:      newRateLimiter(p.Cfg.HTTP.RateLimitPerMin, p.Cfg.HTTP.RateLimitWindow),
	}
}

// NewEngine builds the gin engine with the shared middleware stack.
func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	return engine
}

// RegisterRoutes mounts all HTTP routes on the engine.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	api.Use(s.AuthRequired(), s.RateLimit())
	{
		api.GET("/tokens/balance", s.GetBalance)
		api.GET("/tokens/transactions", s.ListTransactions)
		api.POST("/tokens/check", s.CheckBalance)
		api.POST("/tokens/credit", s.CreditTokens)
		api.POST("/tokens/debit", s.DebitTokens)

		api.POST("/sessions/start", s.StartSession)
		api.POST("/sessions/end", s.EndSession)
		api.GET("/sessions/:id", s.GetSession)

		api.POST("/jobs/reap", s.RunReap)
	}
}

func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP owns the HTTP listener lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, server *Server, engine *gin.Engine) {
	server.RegisterRoutes(engine)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	})
}
