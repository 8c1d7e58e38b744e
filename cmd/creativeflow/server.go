package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/creativeflow/aimodel"
	"github.com/BaSui01/creativeflow/aimodel/factory"
	"github.com/BaSui01/creativeflow/api/handlers"
	"github.com/BaSui01/creativeflow/config"
	"github.com/BaSui01/creativeflow/internal/metrics"
	"github.com/BaSui01/creativeflow/internal/server"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 CreativeFlow 的主服务器。
type Server struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 业务组件
	store   *aimodel.ConfigStore
	manager *aimodel.Manager

	// Handlers
	healthHandler   *handlers.HealthHandler
	generateHandler *handlers.GenerateHandler
	modelHandler    *handlers.ModelConfigHandler

	// 指标收集器
	metricsCollector *metrics.Collector
}

// NewServer 创建新的服务器实例。
func NewServer(cfg *config.Config, db *gorm.DB, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		db:     db,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务。
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("creativeflow", s.logger)

	// 2. 初始化业务组件与 handlers
	s.initComponents()

	// 3. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 4. 启动 Metrics 服务器
	if s.cfg.MetricsAddr != "" {
		if err := s.startMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("All servers started",
		zap.String("http_addr", s.httpManager.Addr()),
		zap.String("metrics_addr", s.cfg.MetricsAddr),
	)
	return nil
}

// initComponents 初始化存储、注册表与 handlers。
func (s *Server) initComponents() {
	s.store = aimodel.NewConfigStore(s.db, s.logger)
	registry := factory.NewRegistry(s.store, s.logger)
	recorder := aimodel.NewUsageRecorder(s.store, s.logger)
	s.manager = aimodel.NewManager(registry, recorder, s.metricsCollector, s.logger)

	s.healthHandler = handlers.NewHealthHandler(s.db, Version, s.logger)
	s.generateHandler = handlers.NewGenerateHandler(s.manager, s.logger)
	s.modelHandler = handlers.NewModelConfigHandler(s.store, s.manager, s.logger)

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)

	// 生成接口
	mux.HandleFunc("POST /v1/generate", s.generateHandler.HandleGenerate)
	mux.HandleFunc("POST /v1/generate/stream", s.generateHandler.HandleGenerateStream)

	// 模型配置管理
	mux.HandleFunc("GET /v1/models", s.modelHandler.HandleList)
	mux.HandleFunc("POST /v1/models", s.modelHandler.HandleCreate)
	mux.HandleFunc("GET /v1/models/stats", s.modelHandler.HandleStats)
	mux.HandleFunc("PUT /v1/models/{id}", s.modelHandler.HandleUpdate)
	mux.HandleFunc("POST /v1/models/{id}/default", s.modelHandler.HandleSetDefault)
	mux.HandleFunc("POST /v1/models/{id}/test", s.modelHandler.HandleTest)

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
	)

	s.httpManager = server.NewManager(handler, s.cfg.Server, s.logger)
	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	metricsCfg := server.DefaultConfig()
	metricsCfg.Addr = s.cfg.MetricsAddr

	s.metricsManager = server.NewManager(mux, metricsCfg, s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 阻塞直到收到退出信号或服务器异常退出。
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		s.logger.Info("received signal", zap.String("signal", sig.String()))
	case err := <-s.httpManager.Err():
		s.logger.Error("HTTP server exited unexpectedly", zap.Error(err))
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务。
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	s.logger.Info("Shutdown complete")
}
