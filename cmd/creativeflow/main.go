// =============================================================================
// CreativeFlow 主入口
// =============================================================================
// 多供应商 AI 文本生成服务，包含 HTTP API、健康检查、Prometheus 指标
//
// 使用方法:
//
//	creativeflow serve                       # 启动服务
//	creativeflow serve --config config.yaml  # 指定配置文件
//	creativeflow version                     # 显示版本信息
//	creativeflow health                      # 健康检查
// =============================================================================
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/creativeflow/aimodel"
	"github.com/BaSui01/creativeflow/config"
	"github.com/BaSui01/creativeflow/internal/database"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	// 加载配置
	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting CreativeFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// 初始化数据库连接
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	// 表结构迁移
	store := aimodel.NewConfigStore(db, logger)
	if err := store.AutoMigrate(); err != nil {
		logger.Fatal("Database auto-migrate failed", zap.Error(err))
	}

	// 可选：写入示例配置档案
	if cfg.Seed {
		if err := seedConfigs(store, logger); err != nil {
			logger.Warn("Failed to seed model configs", zap.Error(err))
		}
	}

	// 创建并启动服务器
	srv := NewServer(cfg, db, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	srv.WaitForShutdown()
	logger.Info("CreativeFlow stopped")
}

// seedConfigs 在空表时写入示例配置，密钥留给环境变量或后续 API 更新。
func seedConfigs(store *aimodel.ConfigStore, logger *zap.Logger) error {
	existing, err := store.List()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	samples := []aimodel.ModelConfig{
		{Name: "openai-default", Provider: aimodel.ProviderOpenAI, ModelName: "gpt-3.5-turbo", IsActive: true, IsDefault: true},
		{Name: "deepseek-chat", Provider: aimodel.ProviderDeepSeek, ModelName: "deepseek-chat", IsActive: true},
		{Name: "qwen-turbo", Provider: aimodel.ProviderDashScope, ModelName: "qwen-turbo", IsActive: true},
	}
	for i := range samples {
		if err := store.Create(&samples[i]); err != nil {
			return err
		}
	}
	logger.Info("Seeded sample model configs", zap.Int("count", len(samples)))
	return nil
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("CreativeFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`CreativeFlow - Multi-Provider AI Text Generation Service

Usage:
  creativeflow <command> [options]

Commands:
  serve     Start the CreativeFlow server
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Examples:
  creativeflow serve
  creativeflow serve --config /etc/creativeflow/config.yaml
  creativeflow health --addr http://localhost:8080
  creativeflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
