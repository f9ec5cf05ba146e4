package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/outreach/internal/config"
	"github.com/ifuryst/outreach/internal/service"
	"github.com/ifuryst/outreach/internal/service/gemini"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Automation   *service.AutomationService
	Monitoring   *service.MonitoringService
	Scheduler    *service.Scheduler
	StatsUpdater *service.StatsUpdater
	Auth         *service.AuthService

	closers []io.Closer
}

func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	srv := &Server{
		Config: cfg,
		DB:     db,
		Router: gin.New(),
		Logger: logger,
	}

	// Initialize services
	store := service.NewStore(db)
	registry := buildRegistry(ctx, &cfg.Platforms, logger)
	monitoring := service.NewMonitoringService(db, logger)
	callTimeout := config.Duration(cfg.Scheduler.CallTimeout, 30*time.Second)

	var generator gemini.Generator
	if client := buildGenerator(ctx, &cfg.Gemini, logger); client != nil {
		generator = client
		srv.closers = append(srv.closers, client)
	}

	notifier := buildNotifier(&cfg.Notify, logger)
	srv.closers = append(srv.closers, notifier)

	opts := []service.ExecutorOption{
		service.WithNotifier(notifier),
		service.WithMonitor(monitoring),
	}
	if generator != nil {
		matcher, err := gemini.NewMatcher(generator, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithScreener(matcher))
	}

	executor := service.NewExecutor(
		store,
		registry,
		service.NewPersonalizer(generator, cfg.Gemini.MaxMessageLength, callTimeout, logger),
		service.NewPacingPolicy(cfg.Scheduler.Pacing, service.TimerSleeper),
		service.ExecutorConfig{
			RunInterval: config.Duration(cfg.Scheduler.RunInterval, time.Hour),
			CallTimeout: callTimeout,
			SearchLimit: cfg.Scheduler.SearchLimit,
		},
		logger,
		opts...,
	)

	srv.Monitoring = monitoring
	srv.Scheduler = service.NewScheduler(&cfg.Scheduler, logger, store, executor, nil)
	srv.Automation = service.NewAutomationService(store, registry, cfg.Scheduler.DefaultDailyLimit, nil, logger)

	if cfg.Stats.Enabled {
		srv.StatsUpdater = service.NewStatsUpdater(monitoring, logger,
			config.Duration(cfg.Stats.Interval, 15*time.Minute), cfg.Stats.RetentionDays)
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.TOTPSecret == "" || cfg.Auth.JWTSecret == "" {
			return nil, errors.New("auth is enabled but totp_secret or jwt_secret is missing")
		}
		srv.Auth = service.NewAuthService(logger, cfg.Auth.TOTPSecret, cfg.Auth.JWTSecret,
			config.Duration(cfg.Auth.SessionTTL, 24*time.Hour))
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("HTTP request",
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
	})

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	if s.Auth != nil {
		s.Router.Use(s.Auth.AuthMiddleware())
	}
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	{
		if s.Auth != nil {
			api.POST("/auth/login", s.handleLogin)
		}

		campaigns := api.Group("/campaigns")
		{
			campaigns.POST("", s.handleCreateCampaign)
			campaigns.GET("/:id", s.handleGetCampaign)
		}

		jobs := api.Group("/jobs")
		{
			jobs.POST("", s.handleStartJob)
			jobs.GET("", s.handleListJobs)
			jobs.GET("/:id", s.handleGetJob)
			jobs.PUT("/:id", s.handleUpdateJob)
			jobs.DELETE("/:id", s.handleDeleteJob)
			jobs.GET("/:id/stats", s.handleJobStats)
			jobs.GET("/:id/entries", s.handleListEntries)
			jobs.GET("/:id/runs", s.handleListRuns)
			jobs.POST("/:id/pause", s.handlePauseJob)
			jobs.POST("/:id/resume", s.handleResumeJob)
			jobs.POST("/:id/stop", s.handleStopJob)
		}

		api.GET("/platforms", s.handleListPlatforms)

		monitoring := api.Group("/monitoring")
		{
			monitoring.GET("/errors", s.handleRecentErrors)
			monitoring.GET("/stats", s.handlePlatformStats)
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if s.StatsUpdater != nil {
		s.StatsUpdater.Start(ctx)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	var err error
	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		err = s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	} else {
		err = s.Server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Tick runs a single scheduler pass without starting the HTTP server.
func (s *Server) Tick(ctx context.Context) error {
	defer s.closeAll()
	return s.Scheduler.Tick(ctx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()
	if s.StatsUpdater != nil {
		s.StatsUpdater.Stop()
	}
	defer s.closeAll()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}

func (s *Server) closeAll() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.Logger.Warn("Failed to close component", zap.Error(err))
		}
	}
	s.closers = nil
}
