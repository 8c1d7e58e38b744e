package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/creativeflow/aimodel"
	"github.com/BaSui01/creativeflow/aimodel/providers"
	"github.com/BaSui01/creativeflow/internal/tlsutil"
)

const (
	defaultBaseURL = "https://dashscope.aliyuncs.com"
	endpointPath   = "/api/v1/services/aigc/text-generation/generation"
	fallbackModel  = "qwen-turbo"
)

// DashScopeClient 实现阿里通义千问（DashScope）生成客户端。
// 这里接入的简单调用模式没有增量协议，GenerateStream 以模拟流实现。
type DashScopeClient struct {
	cfg        *aimodel.ModelConfig
	httpClient *http.Client
	logger     *zap.Logger
	baseURL    string
}

// New 从配置档案创建 DashScope 客户端。
// APISecret 字段可覆盖默认的 API 基地址。
func New(cfg *aimodel.ModelConfig, logger *zap.Logger) *DashScopeClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.APISecret
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &DashScopeClient{
		cfg:        cfg,
		httpClient: tlsutil.SecureHTTPClient(0),
		logger:     logger.With(zap.String("provider", "dashscope")),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name 返回供应商标识。
func (c *DashScopeClient) Name() string { return string(aimodel.ProviderDashScope) }

type generationRequest struct {
	Model      string `json:"model"`
	Input      struct {
		Prompt string `json:"prompt"`
	} `json:"input"`
	Parameters struct {
		MaxTokens   int      `json:"max_tokens,omitempty"`
		Temperature float64  `json:"temperature,omitempty"`
		Stop        []string `json:"stop,omitempty"`
	} `json:"parameters"`
}

type generationResponse struct {
	Output struct {
		Text string `json:"text"`
	} `json:"output"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Generate 发起一次阻塞式生成。
func (c *DashScopeClient) Generate(ctx context.Context, prompt string, opts aimodel.GenerateOptions) *aimodel.GenerateResult {
	ctx, cancel := context.WithTimeout(ctx, aimodel.DefaultGenerateTimeout)
	defer cancel()

	modelName := c.cfg.ModelName
	if modelName == "" {
		modelName = fallbackModel
	}

	var body generationRequest
	body.Model = modelName
	body.Input.Prompt = prompt
	body.Parameters.MaxTokens = opts.MaxTokens
	if body.Parameters.MaxTokens == 0 {
		body.Parameters.MaxTokens = c.cfg.MaxTokens
	}
	body.Parameters.Temperature = opts.Temperature
	if body.Parameters.Temperature == 0 {
		body.Parameters.Temperature = c.cfg.Temperature
	}
	body.Parameters.Stop = opts.Stop

	payload, err := json.Marshal(body)
	if err != nil {
		return &aimodel.GenerateResult{Success: false, Error: fmt.Sprintf("dashscope: failed to marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpointPath, bytes.NewReader(payload))
	if err != nil {
		return &aimodel.GenerateResult{Success: false, Error: fmt.Sprintf("dashscope: failed to create request: %v", err)}
	}
	providers.BearerTokenHeaders(req, c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &aimodel.GenerateResult{Success: false, Error: providers.TransportErrorMessage(c.Name(), err)}
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		return &aimodel.GenerateResult{
			Success: false,
			Error:   providers.HTTPErrorMessage(c.Name(), resp.StatusCode, resp.Body),
		}
	}

	var result generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &aimodel.GenerateResult{Success: false, Error: providers.DecodeErrorMessage(c.Name(), err)}
	}
	if result.Code != "" {
		return &aimodel.GenerateResult{
			Success: false,
			Error:   fmt.Sprintf("dashscope: %s: %s", result.Code, result.Message),
		}
	}

	out := &aimodel.GenerateResult{
		Success: true,
		Content: result.Output.Text,
		Model:   modelName,
	}
	if result.Usage != nil {
		out.Usage = aimodel.Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.TotalTokens,
		}
	}
	return out
}

// GenerateStream 模拟流式生成，与 baidu 变体同一策略。
func (c *DashScopeClient) GenerateStream(ctx context.Context, prompt string, opts aimodel.GenerateOptions) <-chan aimodel.StreamChunk {
	ch := make(chan aimodel.StreamChunk)
	go func() {
		defer close(ch)
		ctx, cancel := context.WithTimeout(ctx, aimodel.DefaultStreamTimeout)
		defer cancel()

		result := c.Generate(ctx, prompt, opts)
		for chunk := range providers.SimulateStream(ctx, result, providers.DefaultEmitRate) {
			select {
			case <-ctx.Done():
				return
			case ch <- chunk:
			}
		}
	}()
	return ch
}

// TestConnection 用小预算探测调用验证可达性与凭证。
func (c *DashScopeClient) TestConnection(ctx context.Context) bool {
	result := c.Generate(ctx, "测试", aimodel.GenerateOptions{MaxTokens: 10})
	return result.Success
}

var _ aimodel.Client = (*DashScopeClient)(nil)
