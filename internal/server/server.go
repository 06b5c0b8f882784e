package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apikeydomain "github.com/smallbiznis/featureflags/internal/apikey/domain"
	authdomain "github.com/smallbiznis/featureflags/internal/auth/domain"
	"github.com/smallbiznis/featureflags/internal/authorization"
	"github.com/smallbiznis/featureflags/internal/config"
	evaluationdomain "github.com/smallbiznis/featureflags/internal/evaluation/domain"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	"github.com/smallbiznis/featureflags/internal/observability"
	obsmiddleware "github.com/smallbiznis/featureflags/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/featureflags/internal/observability/metrics"
	obstracing "github.com/smallbiznis/featureflags/internal/observability/tracing"
	"github.com/smallbiznis/featureflags/internal/ratelimit"
	"github.com/smallbiznis/featureflags/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the engine and server and serves HTTP. Binaries choose
// which route groups to register.
var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *telemetry.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{SkipPaths: obsCfg.TraceSkipPaths}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	flagSvc     flagdomain.Service
	evaluator   evaluationdomain.Service
	apiKeySvc   apikeydomain.Service
	authn       authdomain.Authenticator
	authzSvc    authorization.Service
	limiter     *ratelimit.EvaluateLimiter
	obsMetrics  *obsmetrics.Metrics
	httpMetrics *telemetry.Metrics
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	FlagSvc   flagdomain.Service       `optional:"true"`
	Evaluator evaluationdomain.Service `optional:"true"`
	APIKeySvc apikeydomain.Service
	Authn     authdomain.Authenticator `optional:"true"`
	AuthzSvc  authorization.Service

	Limiter     *ratelimit.EvaluateLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics        `optional:"true"`
	HTTPMetrics *telemetry.Metrics         `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		flagSvc:     p.FlagSvc,
		evaluator:   p.Evaluator,
		apiKeySvc:   p.APIKeySvc,
		authn:       p.Authn,
		authzSvc:    p.AuthzSvc,
		limiter:     p.Limiter,
		obsMetrics:  p.ObsMetrics,
		httpMetrics: p.HTTPMetrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// RegisterEvaluateRoutes mounts the API-key protected evaluation surface.
func (s *Server) RegisterEvaluateRoutes() error {
	if s.evaluator == nil {
		return errors.New("evaluate routes require the evaluation service")
	}

	api := s.engine.Group("/api/flags")
	api.GET("/:featureKey/evaluate",
		s.APIKeyRequired(),
		s.authorizeAction(authorization.ObjectFlag, authorization.ActionFlagEvaluate),
		s.EvaluateRateLimit(),
		s.EvaluateFlag,
	)
	return nil
}

// RegisterAdminRoutes mounts the Basic-auth protected admin surface.
func (s *Server) RegisterAdminRoutes() error {
	if s.flagSvc == nil || s.authn == nil {
		return errors.New("admin routes require the flag service and an authenticator")
	}

	admin := s.engine.Group("/api/admin")
	admin.Use(s.AdminAuthRequired())

	// -------- Flags --------
	admin.GET("/flags", s.authorizeAction(authorization.ObjectFlag, authorization.ActionFlagView), s.ListFlags)
	admin.POST("/flags", s.authorizeAction(authorization.ObjectFlag, authorization.ActionFlagCreate), s.CreateFlag)
	admin.GET("/flags/:featureKey", s.authorizeAction(authorization.ObjectFlag, authorization.ActionFlagView), s.GetFlag)
	admin.PATCH("/flags/:featureKey", s.authorizeAction(authorization.ObjectFlag, authorization.ActionFlagUpdate), s.UpdateFlag)

	// -------- Targets --------
	admin.GET("/flags/:featureKey/targets", s.authorizeAction(authorization.ObjectFlagTarget, authorization.ActionFlagTargetView), s.ListTargets)
	admin.POST("/flags/:featureKey/targets", s.authorizeAction(authorization.ObjectFlagTarget, authorization.ActionFlagTargetCreate), s.AddTarget)
	admin.DELETE("/flags/:featureKey/targets/:userId", s.authorizeAction(authorization.ObjectFlagTarget, authorization.ActionFlagTargetDelete), s.RemoveTarget)

	// -------- History --------
	admin.GET("/flags/:featureKey/history", s.authorizeAction(authorization.ObjectFlagHistory, authorization.ActionFlagHistoryView), s.ListFlagHistory)

	// -------- API keys --------
	admin.GET("/api-keys", s.authorizeAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyView), s.ListAPIKeys)
	admin.POST("/api-keys", s.authorizeAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyCreate), s.CreateAPIKey)
	admin.DELETE("/api-keys/:id", s.authorizeAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyRevoke), s.RevokeAPIKey)
	return nil
}

func (s *Server) RegisterFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
