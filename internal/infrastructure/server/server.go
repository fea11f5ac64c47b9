package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/devforge/workbench/internal/api/http"
	"github.com/devforge/workbench/internal/api/middleware"
	"github.com/devforge/workbench/internal/api/ws"
	"github.com/devforge/workbench/internal/auth"
	"github.com/devforge/workbench/internal/events"
	"github.com/devforge/workbench/internal/infrastructure/config"
	"github.com/devforge/workbench/internal/infrastructure/logging"
	"github.com/devforge/workbench/internal/infrastructure/monitoring"
	authProvider "github.com/devforge/workbench/internal/providers/auth"
	repoProvider "github.com/devforge/workbench/internal/providers/repo"
	terminalProvider "github.com/devforge/workbench/internal/providers/terminal"
	"github.com/devforge/workbench/internal/repo"
	"github.com/devforge/workbench/internal/service"
	"github.com/devforge/workbench/internal/term"
)

// Server wires the engines, the provider registry, and the HTTP/WS
// surface together.
type Server struct {
	router   *gin.Engine
	registry *service.Registry
	terms    *term.Manager
	flow     *auth.Flow
	bus      *events.Bus
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a fully wired server from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger, _ = logging.New(logging.Config{Level: cfg.Logging.Level})
		if logger == nil {
			logger = logging.NewDefault()
		}
	}

	logger.Info("initializing workbench daemon",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
	)

	metrics := monitoring.NewMetrics()
	bus := events.New()

	terms := term.NewManager(bus, logger, metrics, cfg.Terminal)
	repoEngine := repo.NewEngine(cfg.Repo, logger, metrics)
	flow := auth.NewFlow(auth.NewClient(cfg.Auth), bus, logger, metrics)

	registry := service.NewRegistry()
	for _, p := range []service.Provider{
		terminalProvider.NewProvider(terms),
		repoProvider.NewProvider(repoEngine, bus),
		authProvider.NewProvider(flow),
	} {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	logger.Info("service providers registered", zap.Any("stats", registry.Stats()))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(registry, terms, metrics, logger)
	wsHandler := ws.NewHandler(bus, logger, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/services", handlers.ListServices)
	router.POST("/services/execute", handlers.ExecuteService)
	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("server initialized")

	return &Server{
		router:   router,
		registry: registry,
		terms:    terms,
		flow:     flow,
		bus:      bus,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close tears down sessions, the auth flow, and the event bus.
func (s *Server) Close() error {
	s.logger.Info("shutting down")

	s.flow.Cancel()
	s.terms.Shutdown()
	s.bus.Close()
	s.logger.Sync()
	return nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
