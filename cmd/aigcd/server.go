package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xiangyuzeng/newkenwei-aigc-platform3/api/handlers"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/config"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/internal/metrics"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/internal/server"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/media"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/taskwait"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/upstream"
	"github.com/xiangyuzeng/newkenwei-aigc-platform3/usage"
)

// Server wires the four surfaces, the upstream client, and the listeners.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	videoJobsHandler *handlers.VideoJobsHandler
	vendorHandler    *handlers.VendorHandler
	generateHandler  *handlers.GenerateHandler
	chatHandler      *handlers.ChatHandler
	usageHandler     *handlers.UsageHandler

	metricsCollector *metrics.Collector

	rateLimiterCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer creates the gateway server.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// Start initializes handlers and brings up the HTTP and metrics listeners.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("aigcd", s.logger)

	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return err
	}
	if err := s.startMetricsServer(); err != nil {
		return err
	}

	s.logger.Info("All servers started",
		zap.String("http_addr", s.cfg.Server.Addr),
		zap.String("metrics_addr", s.cfg.Server.MetricsAddr),
	)
	return nil
}

func (s *Server) initHandlers() {
	up := s.cfg.Upstream

	createPaths := make(map[upstream.JobKind][]string, len(up.CreatePaths))
	for family, candidates := range up.CreatePaths {
		createPaths[upstream.JobKind(family)] = candidates
	}
	client := upstream.NewClient(upstream.Config{
		BaseURL:        up.BaseURL,
		RequestTimeout: up.RequestTimeout,
		CreatePaths:    createPaths,
	}, s.logger).WithPollCache(up.PollCacheTTL)

	ingester := media.NewIngester(media.Config{
		BaseURL:        up.BaseURL,
		Endpoints:      up.UploadEndpoints,
		RequestTimeout: up.RequestTimeout,
	}, s.logger)

	waiter := taskwait.NewWaiter(taskwait.Config{
		Interval: up.PollInterval,
		Budget:   up.WaitBudget,
	}, s.logger)

	ledger := usage.NewLedger(0)

	s.videoJobsHandler = handlers.NewVideoJobsHandler(client, ingester, ledger, s.metricsCollector, s.logger)
	s.vendorHandler = handlers.NewVendorHandler(client, ingester, ledger, s.metricsCollector, s.logger)
	s.generateHandler = handlers.NewGenerateHandler(client, ingester, waiter, ledger, s.metricsCollector, s.logger)
	s.chatHandler = handlers.NewChatHandler(handlers.ChatConfig{
		BaseURL:   up.BaseURL,
		Endpoints: up.ChatEndpoints,
	}, ledger, s.metricsCollector, s.logger)
	s.usageHandler = handlers.NewUsageHandler(ledger, s.logger)

	s.logger.Info("Handlers initialized")
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)

	// video-job surface
	mux.HandleFunc("POST /v1/jobs", s.videoJobsHandler.HandleCreate)
	mux.HandleFunc("GET /v1/jobs/{id}", s.videoJobsHandler.HandleStatus)

	// vendor surface
	mux.HandleFunc("POST /vendor/v1/text2video", s.vendorHandler.HandleText2Video)
	mux.HandleFunc("POST /vendor/v1/image2video", s.vendorHandler.HandleImage2Video)
	mux.HandleFunc("GET /vendor/v1/videos/{id}", s.vendorHandler.HandlePoll)

	// multimodal generate surface
	mux.HandleFunc("POST /v1beta/generate/{model}", s.generateHandler.HandleGenerate)

	// chat-streaming surface
	mux.HandleFunc("POST /v1/chat/completions", s.chatHandler.HandleChat)

	// usage
	mux.HandleFunc("GET /v1/usage", s.usageHandler.HandleRecent)

	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		RateLimiter(rateLimiterCtx, s.cfg.RateLimit.RPS, s.cfg.RateLimit.Burst, s.logger),
	)

	serverConfig := server.DefaultConfig()
	serverConfig.Addr = s.cfg.Server.Addr
	serverConfig.ReadTimeout = s.cfg.Server.ReadTimeout
	serverConfig.WriteTimeout = s.cfg.Server.WriteTimeout
	serverConfig.IdleTimeout = s.cfg.Server.IdleTimeout
	serverConfig.ShutdownTimeout = s.cfg.Server.ShutdownTimeout

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.String("addr", s.cfg.Server.Addr))
	return nil
}

func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsAddr == "" {
		s.logger.Info("Metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.DefaultConfig()
	serverConfig.Addr = s.cfg.Server.MetricsAddr
	serverConfig.ShutdownTimeout = s.cfg.Server.ShutdownTimeout

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.String("addr", s.cfg.Server.MetricsAddr))
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

// WaitForShutdown blocks until a termination signal, then shuts down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops all listeners gracefully.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()
	s.logger.Info("Graceful shutdown completed")
}
