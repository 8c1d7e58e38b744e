// Package creativeflow provides a top-level convenience entry point for
// creating a generation manager with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/creativeflow"
//
//	mgr, err := creativeflow.New(db)
//	mgr, err := creativeflow.New(db, creativeflow.WithLogger(logger))
//
// 完整的服务端装配（HTTP、指标、配置加载）见 cmd/creativeflow。
package creativeflow

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/creativeflow/aimodel"
	"github.com/BaSui01/creativeflow/aimodel/factory"
	"github.com/BaSui01/creativeflow/internal/metrics"
)

// Option configures the manager created by [New].
type Option func(*options)

type options struct {
	logger    *zap.Logger
	collector *metrics.Collector
	migrate   bool
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *options) { o.collector = collector }
}

// WithoutMigration skips the automatic schema migration.
func WithoutMigration() Option {
	return func(o *options) { o.migrate = false }
}

// New 在给定数据库上装配一个可用的生成入口：
// 配置存储 → 变体注册表 → 用量记录 → Manager。
func New(db *gorm.DB, opts ...Option) (*aimodel.Manager, error) {
	o := options{logger: zap.NewNop(), migrate: true}
	for _, opt := range opts {
		opt(&o)
	}

	store := aimodel.NewConfigStore(db, o.logger)
	if o.migrate {
		if err := store.AutoMigrate(); err != nil {
			return nil, err
		}
	}

	registry := factory.NewRegistry(store, o.logger)
	recorder := aimodel.NewUsageRecorder(store, o.logger)
	return aimodel.NewManager(registry, recorder, o.collector, o.logger), nil
}
