// =============================================================================
// CreativeFlow OpenAI-Compatible Client Base
// =============================================================================
// OpenAI 兼容供应商的共享实现。OpenAI 与 DeepSeek 内嵌该基座，
// 只覆盖各自不同的部分（名称、BaseURL、默认模型、header）。
// =============================================================================

package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/creativeflow/aimodel"
	"github.com/BaSui01/creativeflow/aimodel/providers"
	"github.com/BaSui01/creativeflow/internal/tlsutil"
)

// Config OpenAI 兼容客户端的配置。
type Config struct {
	// ProviderName 供应商标识（如 "openai"、"deepseek"）。
	ProviderName string

	// APIKey 认证密钥。
	APIKey string

	// BaseURL API 基地址（如 "https://api.deepseek.com"）。
	BaseURL string

	// DefaultModel 配置档案指定的模型名。
	DefaultModel string

	// FallbackModel 请求与配置都未指定模型时的兜底。
	FallbackModel string

	// MaxTokens / Temperature 配置档案的默认生成参数。
	MaxTokens   int
	Temperature float64

	// Timeout 一次阻塞调用的超时，零值用 aimodel.DefaultGenerateTimeout。
	Timeout time.Duration

	// StreamTimeout 流式调用的整体超时，零值用 aimodel.DefaultStreamTimeout。
	StreamTimeout time.Duration

	// EndpointPath 聊天完成端点路径，默认 "/v1/chat/completions"。
	EndpointPath string

	// BuildHeaders 自定义 header 构建，nil 时用 Bearer token。
	BuildHeaders func(req *http.Request, apiKey string)
}

// Client 所有 OpenAI 兼容供应商的基座实现。
type Client struct {
	Cfg        Config
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New 创建 OpenAI 兼容客户端。
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = aimodel.DefaultGenerateTimeout
	}
	if cfg.StreamTimeout == 0 {
		cfg.StreamTimeout = aimodel.DefaultStreamTimeout
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		Cfg:        cfg,
		HTTPClient: tlsutil.SecureHTTPClient(0), // 超时由每次调用的 ctx 控制
		Logger:     logger.With(zap.String("provider", cfg.ProviderName)),
	}
}

// Name 返回供应商标识。
func (c *Client) Name() string { return c.Cfg.ProviderName }

func (c *Client) buildHeaders(req *http.Request) {
	if c.Cfg.BuildHeaders != nil {
		c.Cfg.BuildHeaders(req, c.Cfg.APIKey)
		return
	}
	providers.BearerTokenHeaders(req, c.Cfg.APIKey)
}

func (c *Client) endpoint() string {
	return strings.TrimRight(c.Cfg.BaseURL, "/") + c.Cfg.EndpointPath
}

func (c *Client) buildBody(prompt string, opts aimodel.GenerateOptions, stream bool) providers.OpenAICompatRequest {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.Cfg.MaxTokens
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.Cfg.Temperature
	}
	body := providers.OpenAICompatRequest{
		Model:       providers.ChooseModel("", c.Cfg.DefaultModel, c.Cfg.FallbackModel),
		Messages:    []providers.OpenAICompatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
		N:           opts.N,
		Stop:        opts.Stop,
		Stream:      stream,
	}
	if stream {
		body.StreamOptions = &providers.StreamOptions{IncludeUsage: true}
	}
	return body
}

func (c *Client) post(ctx context.Context, body providers.OpenAICompatRequest) (*http.Response, string) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Sprintf("%s: failed to marshal request: %v", c.Name(), err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Sprintf("%s: failed to create request: %v", c.Name(), err)
	}
	c.buildHeaders(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, providers.TransportErrorMessage(c.Name(), err)
	}
	if resp.StatusCode >= 400 {
		defer providers.SafeCloseBody(resp.Body)
		return nil, providers.HTTPErrorMessage(c.Name(), resp.StatusCode, resp.Body)
	}
	return resp, ""
}

// Generate 发起一次阻塞式聊天完成。
func (c *Client) Generate(ctx context.Context, prompt string, opts aimodel.GenerateOptions) *aimodel.GenerateResult {
	ctx, cancel := context.WithTimeout(ctx, c.Cfg.Timeout)
	defer cancel()

	resp, errMsg := c.post(ctx, c.buildBody(prompt, opts, false))
	if errMsg != "" {
		return &aimodel.GenerateResult{Success: false, Error: errMsg}
	}
	defer providers.SafeCloseBody(resp.Body)

	var oaResp providers.OpenAICompatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return &aimodel.GenerateResult{Success: false, Error: providers.DecodeErrorMessage(c.Name(), err)}
	}
	if len(oaResp.Choices) == 0 {
		return &aimodel.GenerateResult{
			Success: false,
			Error:   fmt.Sprintf("%s: response contained no choices", c.Name()),
		}
	}

	result := &aimodel.GenerateResult{
		Success: true,
		Content: oaResp.Choices[0].Message.Content,
		Model:   oaResp.Model,
	}
	if oaResp.Usage != nil {
		result.Usage = aimodel.Usage{
			PromptTokens:     oaResp.Usage.PromptTokens,
			CompletionTokens: oaResp.Usage.CompletionTokens,
			TotalTokens:      oaResp.Usage.TotalTokens,
		}
	}
	return result
}

// GenerateStream 发起 SSE 流式聊天完成。
// 每个服务端 delta 对应一个增量块；"[DONE]" 哨兵行终止读取循环，
// 之后补发终止块，供应商在末尾上报了用量时附在终止块上。
func (c *Client) GenerateStream(ctx context.Context, prompt string, opts aimodel.GenerateOptions) <-chan aimodel.StreamChunk {
	ch := make(chan aimodel.StreamChunk)

	go func() {
		defer close(ch)

		ctx, cancel := context.WithTimeout(ctx, c.Cfg.StreamTimeout)
		defer cancel()

		resp, errMsg := c.post(ctx, c.buildBody(prompt, opts, true))
		if errMsg != "" {
			select {
			case <-ctx.Done():
			case ch <- aimodel.StreamChunk{Error: errMsg}:
			}
			return
		}
		defer providers.SafeCloseBody(resp.Body)

		emit := func(chunk aimodel.StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- chunk:
				return true
			}
		}

		var full strings.Builder
		var usage *aimodel.Usage
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					emit(aimodel.StreamChunk{Error: providers.TransportErrorMessage(c.Name(), err)})
					return
				}
				// EOF 而没有 [DONE]:流被截断，仍按完成处理
				break
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}

			var oaResp providers.OpenAICompatResponse
			if err := json.Unmarshal([]byte(data), &oaResp); err != nil {
				// 跳过无法解析的行，与供应商偶发的心跳/注释行兼容
				continue
			}
			if oaResp.Usage != nil {
				usage = &aimodel.Usage{
					PromptTokens:     oaResp.Usage.PromptTokens,
					CompletionTokens: oaResp.Usage.CompletionTokens,
					TotalTokens:      oaResp.Usage.TotalTokens,
				}
			}
			for _, choice := range oaResp.Choices {
				if choice.Delta == nil || choice.Delta.Content == "" {
					continue
				}
				full.WriteString(choice.Delta.Content)
				if !emit(aimodel.StreamChunk{
					Content:     choice.Delta.Content,
					FullContent: full.String(),
				}) {
					return
				}
			}
		}

		emit(aimodel.StreamChunk{
			FullContent: full.String(),
			Finished:    true,
			Usage:       usage,
		})
	}()

	return ch
}

// TestConnection 用 10 token 的预算探测可达性与凭证有效性。
func (c *Client) TestConnection(ctx context.Context) bool {
	result := c.Generate(ctx, "测试连接", aimodel.GenerateOptions{MaxTokens: 10})
	return result.Success
}
