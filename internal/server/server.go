package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/bundles/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/update"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/extract"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/host"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/store"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	manager *update.Manager
	store   *store.Store
	bridge  *host.Bridge
	hub     *ws.Hub
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
	started time.Time
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing bundle server",
		zap.String("port", cfg.Server.Port),
		zap.String("bundle_root", cfg.Bundles.Root),
		zap.String("base_version", cfg.Bundles.BaseVersion),
		zap.String("host_version", cfg.Bundles.HostVersion),
	)

	// Metrics first, every component reports into them
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	st, err := store.New(cfg.Bundles.Root, bundle.HostInfo{
		BaseVersion: cfg.Bundles.BaseVersion,
		HostVersion: cfg.Bundles.HostVersion,
		ReleaseDate: cfg.Bundles.BaseReleaseDate,
	}, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle store: %w", err)
	}

	hub := ws.NewHub(logger.Logger).WithMetrics(metrics)

	bridge, err := host.NewBridge(cfg.Host.PrefsFile, hub, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open host prefs: %w", err)
	}

	extractor := extract.New(cfg.Bundles.ExtractWorkers, logger.Logger).WithMaxFileBytes(cfg.Bundles.MaxFileBytes)
	manager := update.NewManager(st, extractor, bridge, logger.Logger).
		WithMetrics(metrics).
		WithEntryFile(cfg.Bundles.EntryFile)

	s := &Server{
		manager: manager,
		store:   st,
		bridge:  bridge,
		hub:     hub,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		started: time.Now(),
	}
	s.syncHost()

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Logger))
	router.Use(middleware.Recovery(logger.Logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	router.GET("/", s.root)
	router.GET("/health", s.health)
	router.GET("/ws", hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	var saveLimits []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		saveLimits = append(saveLimits, middleware.GlobalRateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.SaveRequestsPerSecond,
			Burst:             cfg.RateLimit.SaveBurst,
		}))
	}
	apihttp.NewHandlers(manager, cfg.Bundles.MaxPayloadBytes, logger.Logger).Register(router, saveLimits...)

	s.router = router
	logger.Info("Server initialized successfully")
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Manager returns the bundle update manager.
func (s *Server) Manager() *update.Manager {
	return s.manager
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases resources held by the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.hub.Close()

	// Sync logger before exit
	_ = s.logger.Sync()
	return nil
}

// syncHost applies an activation that was persisted without reloading the
// host, so a deferred Use takes effect on the next start.
func (s *Server) syncHost() {
	active := s.manager.Config().ActiveVersion
	want, err := s.store.PathOf(active)
	if err != nil || want == s.bridge.ContentRoot() {
		return
	}
	s.logger.Info("Applying pending bundle activation",
		zap.String("version", active),
		zap.String("previous_root", s.bridge.ContentRoot()),
	)
	if err := s.manager.Activate(); err != nil {
		s.logger.Warn("Pending bundle activation failed", zap.Error(err))
	}
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "bundled",
		"base":    s.config.Bundles.BaseVersion,
		"host":    s.config.Bundles.HostVersion,
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"uptime":       time.Since(s.started).String(),
		"bundles":      s.manager.Status(),
		"content_root": s.bridge.ContentRoot(),
		"ws_clients":   s.hub.Clients(),
	})
}
