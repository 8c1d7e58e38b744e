// =============================================================================
// 📦 CreativeFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/creativeflow/internal/database"
	"github.com/BaSui01/creativeflow/internal/server"
)

// Config 是 CreativeFlow 的完整配置结构。
type Config struct {
	// Server HTTP 服务配置
	Server server.Config `yaml:"server"`

	// MetricsAddr Prometheus /metrics 监听地址，空串禁用
	MetricsAddr string `yaml:"metrics_addr"`

	// Database 数据库配置
	Database database.Config `yaml:"database"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`

	// Seed 启动时写入示例配置档案（仅开发环境）
	Seed bool `yaml:"seed"`
}

// LogConfig 日志配置。
type LogConfig struct {
	// Level: debug / info / warn / error
	Level string `yaml:"level"`
	// Format: json / console
	Format string `yaml:"format"`
	// OutputPaths 输出目标
	OutputPaths []string `yaml:"output_paths"`
}

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		Server:      server.DefaultConfig(),
		MetricsAddr: ":9090",
		Database:    database.DefaultConfig(),
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
	}
}

// Validate 校验配置。
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	return nil
}

// =============================================================================
// 🔧 加载器
// =============================================================================

// Loader 配置加载器。
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader 创建加载器。
func NewLoader() *Loader {
	return &Loader{envPrefix: "CREATIVEFLOW"}
}

// WithConfigPath 指定 YAML 配置文件路径。
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 指定环境变量前缀。
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load 按 默认值 → YAML → 环境变量 的次序构建配置。
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	if v := l.env("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := l.env("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := l.env("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := l.env("DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := l.env("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := l.env("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := l.env("SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if v := l.env("SEED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Seed = b
		}
	}
}

func (l *Loader) env(key string) string {
	return os.Getenv(l.envPrefix + "_" + key)
}
