package deepseek

import (
	"go.uber.org/zap"

	"github.com/BaSui01/creativeflow/aimodel"
	"github.com/BaSui01/creativeflow/aimodel/providers/openaicompat"
)

// DeepSeekClient 实现 DeepSeek 生成客户端。
// DeepSeek 使用 OpenAI 兼容的 API 格式，支持原生 SSE 流式输出。
type DeepSeekClient struct {
	*openaicompat.Client
}

// New 从配置档案创建 DeepSeek 客户端。
// APISecret 字段可覆盖默认的 API 基地址。
func New(cfg *aimodel.ModelConfig, logger *zap.Logger) *DeepSeekClient {
	baseURL := cfg.APISecret
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}

	return &DeepSeekClient{
		Client: openaicompat.New(openaicompat.Config{
			ProviderName:  string(aimodel.ProviderDeepSeek),
			APIKey:        cfg.APIKey,
			BaseURL:       baseURL,
			DefaultModel:  cfg.ModelName,
			FallbackModel: "deepseek-chat",
			MaxTokens:     cfg.MaxTokens,
			Temperature:   cfg.Temperature,
		}, logger),
	}
}
