package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zenara-designs/reviews-gateway/internal/circuitbreaker"
	"github.com/zenara-designs/reviews-gateway/internal/config"
	"github.com/zenara-designs/reviews-gateway/internal/handler"
	"github.com/zenara-designs/reviews-gateway/internal/healthcheck"
	"github.com/zenara-designs/reviews-gateway/internal/metrics"
	"github.com/zenara-designs/reviews-gateway/internal/middleware"
	"github.com/zenara-designs/reviews-gateway/internal/places"
	"github.com/zenara-designs/reviews-gateway/internal/ratelimit"
	"github.com/zenara-designs/reviews-gateway/internal/repository"
	"github.com/zenara-designs/reviews-gateway/internal/service"
	"github.com/zenara-designs/reviews-gateway/internal/storage"
)

type Server struct {
	router      *gin.Engine
	config      *config.Config
	log         *zap.Logger
	version     string
	redis       *storage.RedisClient
	postgres    *storage.Postgres
	metrics     *metrics.Metrics
	limiter     ratelimit.Limiter
	breaker     *circuitbreaker.CircuitBreaker
	checker     *healthcheck.Checker
	requestLogs *middleware.RequestLogWriter
	httpServer  *http.Server

	reviewsHandler   *handler.ReviewsHandler
	healthHandler    *handler.HealthHandler
	systemHandler    *handler.SystemHandler
	authHandler      *handler.AuthHandler
	analyticsHandler *handler.AnalyticsHandler
	authService      *service.AuthService
}

type Option func(*Server)

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New wires the gateway. redis and postgres are optional; nil disables the
// features that need them.
func New(cfg *config.Config, log *zap.Logger, redis *storage.RedisClient, postgres *storage.Postgres, opts ...Option) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	s := &Server{
		router:   router,
		config:   cfg,
		log:      log,
		version:  "dev",
		redis:    redis,
		postgres: postgres,
		metrics:  metrics.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initializeUpstream()
	s.initializeRateLimiter()
	s.initializeStorage()

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) initializeUpstream() {
	s.breaker = circuitbreaker.New(circuitbreaker.Config{
		MaxFailures: s.config.Breaker.MaxFailures,
		Timeout:     s.config.Breaker.Timeout,
		IsFailure:   places.IsBreakerFailure,
		IsNeutral:   places.IsCallerError,
		OnStateChange: func(from, to circuitbreaker.State) {
			s.metrics.SetBreakerState(int(to))
			s.log.Warn("places api circuit changed state",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	client := places.NewClient(s.config.Places.BaseURL, s.config.Places.Timeout,
		places.WithBreaker(s.breaker),
		places.WithObserver(s.metrics.ObserveUpstream),
	)

	reviews := service.NewReviewsService(client, s.config.Places.PlaceID, s.config.Places.APIKey)
	if !reviews.Configured() {
		s.log.Warn("places credentials are not set; /api/reviews will answer 500 until they are")
	}

	s.reviewsHandler = handler.NewReviewsHandler(reviews, s.log)
}

func (s *Server) initializeRateLimiter() {
	rl := s.config.RateLimit
	backend := rl.Backend
	if backend == ratelimit.BackendRedis && s.redis == nil {
		s.log.Warn("redis rate limit backend requested without a redis client, using memory")
		backend = ratelimit.BackendMemory
	}

	s.limiter = ratelimit.NewLimiter(backend, s.redis, rl.Requests, rl.Window,
		ratelimit.WithSweepInterval(rl.SweepInterval),
		ratelimit.WithMaxEntries(rl.MaxEntries),
	)

	s.log.Info("rate limiter ready",
		zap.String("backend", backend),
		zap.Int("requests", rl.Requests),
		zap.Duration("window", rl.Window),
	)

	s.systemHandler = handler.NewSystemHandler(s.limiter, backend, s.breaker, s.version, s.log)
}

func (s *Server) initializeStorage() {
	s.checker = healthcheck.NewChecker(healthcheck.Config{
		Interval:    10 * time.Second,
		MaxFailures: 1,
		Logger:      s.log,
	})
	if s.redis != nil {
		s.checker.Register("redis", s.redis.Ping)
	}

	// a nil *RequestLogRepository must not reach the interface
	var store service.RequestLogStore
	if s.postgres != nil {
		s.checker.Register("database", s.postgres.Ping)

		repo := repository.NewRequestLogRepository(s.postgres)
		store = repo
		s.requestLogs = middleware.NewRequestLogWriter(repo, s.config.Database.RequestLogBuffer, s.log,
			middleware.WithDropHook(s.metrics.RequestLogDropped),
		)
	}

	s.healthHandler = handler.NewHealthHandler(s.checker, s.breaker, s.version)
	s.analyticsHandler = handler.NewAnalyticsHandler(service.NewAnalyticsService(store))

	admin := s.config.Admin
	s.authService = service.NewAuthService(admin.Email, admin.PasswordHash, admin.JWTSecret, admin.TokenTTL)
	s.authHandler = handler.NewAuthHandler(s.authService, s.log)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Identity())
	s.router.Use(middleware.Logger(s.log))
	s.router.Use(middleware.Metrics(s.metrics))
	if s.requestLogs != nil {
		s.router.Use(middleware.RequestLogger(s.requestLogs))
	}
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.CORS(s.config.CORS.AllowedOrigins, s.config.CORS.DefaultOrigin))
}

func (s *Server) setupRoutes() {
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	api := s.router.Group("/api")
	{
		// rate limited after the method gate, which the router applies
		api.GET("/reviews", middleware.RateLimit(s.limiter, s.log, s.metrics), s.reviewsHandler.Get)
		// CORS answers preflight before this runs
		api.OPTIONS("/reviews", func(c *gin.Context) { c.Status(http.StatusOK) })
	}

	s.router.GET("/health", s.healthHandler.Check)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.router.POST("/admin/login", s.authHandler.Login)

	admin := s.router.Group("/admin", middleware.RequireAdmin(s.authService))
	{
		admin.GET("/status", s.systemHandler.Status)
		admin.DELETE("/ratelimit/:key", s.systemHandler.ClearRateLimit)
		admin.POST("/circuit/reset", s.systemHandler.ResetCircuitBreaker)
		admin.GET("/analytics", s.analyticsHandler.GetSummary)
		admin.GET("/logs", s.analyticsHandler.GetLogs)
		admin.DELETE("/logs", s.analyticsHandler.Cleanup)
	}
}

// Run starts background checks and serves until Shutdown is called.
func (s *Server) Run(addr string) error {
	sc := s.config.Server
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	s.checker.Start()

	s.log.Info("starting reviews gateway",
		zap.String("addr", addr),
		zap.String("environment", sc.Environment),
		zap.String("version", s.version),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.checker.Stop()

	if s.requestLogs != nil {
		if err := s.requestLogs.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
