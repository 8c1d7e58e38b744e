package aimodel

import (
	"go.uber.org/zap"
)

// ClientFactory 把一条配置档案实例化为对应变体的 Client。
// 具体的变体映射在 aimodel/factory 包中装配，避免本包与各变体
// 子包之间的循环依赖。
type ClientFactory func(cfg *ModelConfig, logger *zap.Logger) (Client, error)

// =============================================================================
// 🧭 模型注册表
// =============================================================================

// Registry 把配置标识（或缺省时的"默认配置"）解析为存活的 Client。
type Registry struct {
	store   *ConfigStore
	factory ClientFactory
	logger  *zap.Logger
}

// NewRegistry 创建注册表。
func NewRegistry(store *ConfigStore, factory ClientFactory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:   store,
		factory: factory,
		logger:  logger.With(zap.String("component", "model_registry")),
	}
}

// Resolve 查找启用中的配置（按 id，或 id 为 nil 时取启用中的默认
// 配置）并构造对应变体。无匹配配置或变体未注册时返回 (nil, nil)，
// 调用方把它当作"无可用模型"处理，而不是错误。
//
// 注意：构造 baidu 变体会立刻执行凭证换取网络调用，解析本身可能
// 偏慢；换取失败不会让解析失败，缺 token 由后续调用下游上报。
func (r *Registry) Resolve(configID *uint) (Client, *ModelConfig) {
	var (
		cfg *ModelConfig
		err error
	)
	if configID != nil {
		cfg, err = r.store.Get(*configID)
	} else {
		cfg, err = r.store.GetDefault()
	}
	if err != nil {
		r.logger.Error("config lookup failed", zap.Error(err))
		return nil, nil
	}
	if cfg == nil {
		return nil, nil
	}

	client, err := r.factory(cfg, r.logger)
	if err != nil {
		r.logger.Error("client construction failed",
			zap.Uint("config_id", cfg.ID),
			zap.String("provider", string(cfg.Provider)),
			zap.Error(err),
		)
		return nil, nil
	}
	return client, cfg
}
