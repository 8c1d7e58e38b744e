// Package factory 提供供应商变体的集中式工厂，
// 按配置档案的 provider 标签创建 Client 实例，打破 aimodel 包与
// 各变体子包之间的循环依赖。
package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/creativeflow/aimodel"
	"github.com/BaSui01/creativeflow/aimodel/providers/baidu"
	"github.com/BaSui01/creativeflow/aimodel/providers/dashscope"
	"github.com/BaSui01/creativeflow/aimodel/providers/deepseek"
	"github.com/BaSui01/creativeflow/aimodel/providers/openai"
)

// NewClient 按 provider 标签实例化对应的变体。
// 未注册的标签返回错误，由 Registry 转换为"无可用模型"。
func NewClient(cfg *aimodel.ModelConfig, logger *zap.Logger) (aimodel.Client, error) {
	switch cfg.Provider {
	case aimodel.ProviderOpenAI:
		return openai.New(cfg, logger), nil
	case aimodel.ProviderBaidu:
		return baidu.New(cfg, logger), nil
	case aimodel.ProviderDashScope:
		return dashscope.New(cfg, logger), nil
	case aimodel.ProviderDeepSeek:
		return deepseek.New(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// NewRegistry 用默认的变体工厂装配注册表。
func NewRegistry(store *aimodel.ConfigStore, logger *zap.Logger) *aimodel.Registry {
	return aimodel.NewRegistry(store, NewClient, logger)
}
