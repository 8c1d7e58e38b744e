package openai

import (
	"go.uber.org/zap"

	"github.com/BaSui01/creativeflow/aimodel"
	"github.com/BaSui01/creativeflow/aimodel/providers/openaicompat"
)

// OpenAIClient 实现 OpenAI（及任意 OpenAI 兼容网关）的生成客户端。
// 配置的 APISecret 字段用作自定义 API 地址覆盖。
type OpenAIClient struct {
	*openaicompat.Client
}

// New 从配置档案创建 OpenAI 客户端。
func New(cfg *aimodel.ModelConfig, logger *zap.Logger) *OpenAIClient {
	baseURL := cfg.APISecret
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	return &OpenAIClient{
		Client: openaicompat.New(openaicompat.Config{
			ProviderName:  string(aimodel.ProviderOpenAI),
			APIKey:        cfg.APIKey,
			BaseURL:       baseURL,
			DefaultModel:  cfg.ModelName,
			FallbackModel: "gpt-3.5-turbo",
			MaxTokens:     cfg.MaxTokens,
			Temperature:   cfg.Temperature,
		}, logger),
	}
}
