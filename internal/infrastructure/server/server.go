package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/pool"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/procwatch"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/shell"
)

// Server wraps the HTTP server and the terminal host
type Server struct {
	router  *gin.Engine
	http    *http.Server
	pool    *pool.Pool
	watcher *procwatch.Watcher
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics

	cancelWatch context.CancelFunc
}

// Option customizes server construction
type Option func(*options)

type options struct {
	spawner pool.Spawner
	logger  *logging.Logger
}

// WithSpawner replaces the PTY spawner
func WithSpawner(s pool.Spawner) Option {
	return func(o *options) { o.spawner = s }
}

// WithLogger replaces the logger built from the config
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	o := options{spawner: pool.PTYSpawner{}}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
			OutputPaths: []string{"stdout"},
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Info("Initializing terminal host",
		zap.String("port", cfg.Server.Port),
		zap.Bool("prewarm", cfg.Terminal.Prewarm),
		zap.Bool("watch_owners", cfg.Terminal.WatchOwners),
	)

	metrics := monitoring.NewMetrics()

	resolver := shell.NewResolver(
		shell.WithProgram(cfg.Terminal.Program, cfg.Terminal.ProgramVersion),
		shell.WithSize(cfg.Terminal.Cols, cfg.Terminal.Rows),
	)

	ptyPool := pool.New(pool.Options{
		Spawner:    o.spawner,
		Resolver:   resolver,
		GraceDelay: cfg.Terminal.GraceDelay.Std(),
		Logger:     logger.Component("pool"),
		Metrics:    metrics,
	})

	watcher := procwatch.New(procwatch.Options{
		Interval: cfg.Terminal.WatchInterval.Std(),
		Logger:   logger.Component("procwatch"),
	})

	wsHandler := ws.NewHandler(ws.Options{
		Pool:          ptyPool,
		Resolver:      resolver,
		Watcher:       watcher,
		Metrics:       metrics,
		Logger:        logger.Component("terminal"),
		FlushInterval: cfg.Terminal.FlushInterval.Std(),
		ExitDebounce:  cfg.Terminal.ExitDebounce.Std(),
		SettleDelay:   cfg.Terminal.SettleDelay.Std(),
	})

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
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

	s := &Server{
		router:  router,
		pool:    ptyPool,
		watcher: watcher,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}

	// Register routes
	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/terminals", s.listTerminals)
	router.GET("/terminal", wsHandler.HandleConnection)

	logger.Info("Server initialized successfully")
	return s, nil
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Pool returns the PTY pool
func (s *Server) Pool() *pool.Pool {
	return s.pool
}

// Start prewarms the idle shell and starts the owner watcher
func (s *Server) Start() {
	if s.config.Terminal.Prewarm {
		if err := s.pool.PrepareNextIdlePty(); err != nil {
			s.logger.Warn("Failed to prewarm idle PTY", zap.Error(err))
		}
	}

	if s.config.Terminal.WatchOwners {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancelWatch = cancel
		go s.watcher.Run(ctx)
	}
}

// Run starts the host and serves HTTP until Close
func (s *Server) Run() error {
	s.Start()

	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server and destroys the PTY pool
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if s.cancelWatch != nil {
		s.cancelWatch()
	}

	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if err := s.pool.Destroy(ctx); err != nil {
		errs = append(errs, err)
	}

	_ = s.logger.Sync()
	return errors.Join(errs...)
}

func (s *Server) health(c *gin.Context) {
	status := "ok"
	if s.pool.Closed() {
		status = "closing"
	}
	_, idle := s.pool.IdlePid()
	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"live":     len(s.pool.Live()),
		"idle":     idle,
		"platform": s.config.Terminal.Program,
	})
}

func (s *Server) listTerminals(c *gin.Context) {
	resp := gin.H{"terminals": s.pool.List()}
	if pid, ok := s.pool.IdlePid(); ok {
		resp["idlePid"] = pid
	}
	c.JSON(http.StatusOK, resp)
}
