package baidu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/BaSui01/creativeflow/aimodel"
	"github.com/BaSui01/creativeflow/aimodel/providers"
	"github.com/BaSui01/creativeflow/internal/tlsutil"
)

const (
	defaultTokenURL = "https://aip.baidubce.com/oauth/2.0/token"
	defaultChatURL  = "https://aip.baidubce.com/rpc/2.0/ai/v1/chat"
	fallbackModel   = "ernie-bot-turbo"
)

// BaiduClient 实现百度文心一言（ERNIE）生成客户端。
//
// 百度要求先用长期凭证换取短期 access token 才能调用生成接口。
// 换取在构造时即刻执行：换取失败不让构造失败，而是留下一个
// 无 token 的客户端，后续每次生成调用快速失败并报出缺 token。
//
// 该 HTTP API 没有流式模式，GenerateStream 以模拟流实现。
type BaiduClient struct {
	cfg         *aimodel.ModelConfig
	httpClient  *http.Client
	logger      *zap.Logger
	accessToken string
	tokenURL    string
	chatURL     string
}

// New 从配置档案创建百度客户端并立即换取 access token。
// APIKey/APISecret 对应百度的 client_id/client_secret。
func New(cfg *aimodel.ModelConfig, logger *zap.Logger) *BaiduClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &BaiduClient{
		cfg:        cfg,
		httpClient: tlsutil.SecureHTTPClient(0),
		logger:     logger.With(zap.String("provider", "baidu")),
		tokenURL:   defaultTokenURL,
		chatURL:    defaultChatURL,
	}
	c.fetchAccessToken()
	return c
}

// fetchAccessToken 执行 client_credentials 凭证换取。
// 失败只记日志，缺 token 的状态由 Generate/TestConnection 下游上报。
func (c *BaiduClient) fetchAccessToken() {
	ctx, cancel := context.WithTimeout(context.Background(), aimodel.DefaultGenerateTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("grant_type", "client_credentials")
	params.Set("client_id", c.cfg.APIKey)
	params.Set("client_secret", c.cfg.APISecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL+"?"+params.Encode(), nil)
	if err != nil {
		c.logger.Warn("failed to build token request", zap.Error(err))
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("access token exchange failed", zap.Error(err))
		return
	}
	defer providers.SafeCloseBody(resp.Body)

	var result struct {
		AccessToken      string `json:"access_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Warn("failed to decode token response", zap.Error(err))
		return
	}
	if result.AccessToken == "" {
		c.logger.Warn("access token exchange rejected",
			zap.String("error", result.Error),
			zap.String("description", result.ErrorDescription),
		)
		return
	}
	c.accessToken = result.AccessToken
}

// Name 返回供应商标识。
func (c *BaiduClient) Name() string { return string(aimodel.ProviderBaidu) }

type chatRequest struct {
	Messages        []providers.OpenAICompatMessage `json:"messages"`
	Temperature     float64                         `json:"temperature,omitempty"`
	MaxOutputTokens int                             `json:"max_output_tokens,omitempty"`
	Stop            []string                        `json:"stop,omitempty"`
}

type chatResponse struct {
	Result    string `json:"result"`
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
	Usage     *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate 发起一次阻塞式生成。未持有 access token 时快速失败。
func (c *BaiduClient) Generate(ctx context.Context, prompt string, opts aimodel.GenerateOptions) *aimodel.GenerateResult {
	if c.accessToken == "" {
		return &aimodel.GenerateResult{
			Success: false,
			Error:   "baidu: no access token obtained, check api_key/api_secret",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, aimodel.DefaultGenerateTimeout)
	defer cancel()

	modelName := c.cfg.ModelName
	if modelName == "" {
		modelName = fallbackModel
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}

	body := chatRequest{
		Messages:        []providers.OpenAICompatMessage{{Role: "user", Content: prompt}},
		Temperature:     temperature,
		MaxOutputTokens: maxTokens,
		Stop:            opts.Stop,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return &aimodel.GenerateResult{Success: false, Error: fmt.Sprintf("baidu: failed to marshal request: %v", err)}
	}

	endpoint := fmt.Sprintf("%s/%s?access_token=%s", c.chatURL, modelName, url.QueryEscape(c.accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &aimodel.GenerateResult{Success: false, Error: fmt.Sprintf("baidu: failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

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

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &aimodel.GenerateResult{Success: false, Error: providers.DecodeErrorMessage(c.Name(), err)}
	}

	// 百度在 HTTP 200 里用 error_code/error_msg 信封上报应用错误
	if result.Result == "" && result.ErrorMsg != "" {
		return &aimodel.GenerateResult{
			Success: false,
			Error:   fmt.Sprintf("baidu: error %d: %s", result.ErrorCode, result.ErrorMsg),
		}
	}

	out := &aimodel.GenerateResult{
		Success: true,
		Content: result.Result,
		Model:   modelName,
	}
	if result.Usage != nil {
		out.Usage = aimodel.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		}
	}
	return out
}

// GenerateStream 模拟流式生成：一次阻塞调用后逐字符重放，
// 终止块携带真实用量。对外契约与真流一致。
func (c *BaiduClient) GenerateStream(ctx context.Context, prompt string, opts aimodel.GenerateOptions) <-chan aimodel.StreamChunk {
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
func (c *BaiduClient) TestConnection(ctx context.Context) bool {
	result := c.Generate(ctx, "测试", aimodel.GenerateOptions{MaxTokens: 10})
	return result.Success
}

var _ aimodel.Client = (*BaiduClient)(nil)
