package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ReadErrorMessage 读取响应体中的错误消息。
// 尝试解析 JSON 错误信封，失败则回退到原始文本。
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}

	// 回退到原始文本
	return strings.TrimSpace(string(data))
}

// HTTPErrorMessage 把非 2xx 响应归一化为一条可读的失败原因。
func HTTPErrorMessage(provider string, status int, body io.Reader) string {
	msg := ReadErrorMessage(body)
	switch status {
	case http.StatusUnauthorized:
		return fmt.Sprintf("%s: authentication failed (HTTP 401): %s", provider, msg)
	case http.StatusForbidden:
		return fmt.Sprintf("%s: access forbidden (HTTP 403): %s", provider, msg)
	case http.StatusTooManyRequests:
		return fmt.Sprintf("%s: rate limited (HTTP 429): %s", provider, msg)
	default:
		return fmt.Sprintf("%s: HTTP %d: %s", provider, status, msg)
	}
}

// TransportErrorMessage 把网络层错误归一化为一条可读的失败原因。
// 超时与取消单独点名，便于上层审计日志区分失败类别。
func TransportErrorMessage(provider string, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s: request timed out: %v", provider, err)
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("%s: request canceled: %v", provider, err)
	default:
		return fmt.Sprintf("%s: request failed: %v", provider, err)
	}
}

// DecodeErrorMessage 响应体无法按预期形状解析时的失败原因。
func DecodeErrorMessage(provider string, err error) string {
	return fmt.Sprintf("%s: failed to decode response: %v", provider, err)
}

// ============================================================
// OpenAI 兼容 API 通用类型
// OpenAI 与 DeepSeek 走同一套 wire 格式，由 openaicompat 基座消费。
// ============================================================

// OpenAICompatMessage OpenAI 兼容的消息格式。
type OpenAICompatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAICompatRequest OpenAI 兼容的聊天完成请求。
type OpenAICompatRequest struct {
	Model         string                `json:"model"`
	Messages      []OpenAICompatMessage `json:"messages"`
	MaxTokens     int                   `json:"max_tokens,omitempty"`
	Temperature   float64               `json:"temperature,omitempty"`
	N             int                   `json:"n,omitempty"`
	Stop          []string              `json:"stop,omitempty"`
	Stream        bool                  `json:"stream,omitempty"`
	StreamOptions *StreamOptions        `json:"stream_options,omitempty"`
}

// StreamOptions 流式选项，include_usage 要求供应商在末尾块上报用量。
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// OpenAICompatChoice 响应中的单个候选。
type OpenAICompatChoice struct {
	Index        int                  `json:"index"`
	FinishReason string               `json:"finish_reason"`
	Message      OpenAICompatMessage  `json:"message"`
	Delta        *OpenAICompatMessage `json:"delta,omitempty"`
}

// OpenAICompatUsage 响应中的 token 用量。
type OpenAICompatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAICompatResponse OpenAI 兼容的聊天完成响应。
type OpenAICompatResponse struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []OpenAICompatChoice `json:"choices"`
	Usage   *OpenAICompatUsage   `json:"usage,omitempty"`
	Created int64                `json:"created,omitempty"`
}

// ChooseModel 按请求覆盖、配置默认、兜底的次序选择模型名。
func ChooseModel(requested, defaultModel, fallbackModel string) string {
	if requested != "" {
		return requested
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallbackModel
}

// BearerTokenHeaders 标准 Bearer token 认证 header。
func BearerTokenHeaders(r *http.Request, apiKey string) {
	r.Header.Set("Authorization", "Bearer "+apiKey)
	r.Header.Set("Content-Type", "application/json")
}

// SafeCloseBody 安全关闭 HTTP 响应体并忽略错误。
func SafeCloseBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}
