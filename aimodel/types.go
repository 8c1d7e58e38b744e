package aimodel

import (
	"context"
	"time"
)

// ProviderKind 标识一个已注册的供应商变体。
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderBaidu     ProviderKind = "baidu"
	ProviderDashScope ProviderKind = "dashscope"
	ProviderDeepSeek  ProviderKind = "deepseek"
)

// Valid 报告是否为已知的供应商变体。
func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderOpenAI, ProviderBaidu, ProviderDashScope, ProviderDeepSeek:
		return true
	}
	return false
}

// Usage 供应商自报的 token 用量。
// 供应商未上报时各项保持为零，不做本地推算。
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// GenerateOptions 单次调用的可选覆盖参数，零值表示使用配置默认值。
type GenerateOptions struct {
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	N           int      `json:"n,omitempty"`
}

// GenerateResult 一次同步生成的结构化结果。
// 失败是一个可表示的值：Success=false 且 Error 携带可读原因，
// Client 边界之内的任何错误都不以 Go error 形式穿出。
type GenerateResult struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Usage   Usage  `json:"usage,omitempty"`
	Model   string `json:"model,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StreamChunk 流式生成序列中的一个元素。
//
// 序列形状约定（真实流与模拟流一致）：
//   - 零个或多个增量块：Content 为本次增量，FullContent 为到目前为止的累计文本
//   - 恰好一个终止块：Finished=true，FullContent 为完整文本，Usage 在供应商上报时非 nil
//   - 或者恰好一个错误块：Error 非空，之后不再有终止块
type StreamChunk struct {
	Content     string `json:"content,omitempty"`
	FullContent string `json:"full_content,omitempty"`
	Finished    bool   `json:"finished,omitempty"`
	Usage       *Usage `json:"usage,omitempty"`
	Error       string `json:"error,omitempty"`
}

// IsError 报告该块是否为错误块。
func (c StreamChunk) IsError() bool { return c.Error != "" }

// 默认的出站调用超时。流式调用整体耗时更长，上限放宽。
const (
	DefaultGenerateTimeout = 30 * time.Second
	DefaultStreamTimeout   = 60 * time.Second
)

// Client 是所有供应商变体实现的统一生成接口。
// 实现方负责把归一化请求翻译成各自的 wire 调用，并把供应商响应
// 翻译回归一化的 GenerateResult / StreamChunk 形状。
type Client interface {
	// Generate 发起一次阻塞式生成。任何传输、认证或供应商侧错误
	// 都以失败结果返回，不会 panic 也不会返回 Go error。
	Generate(ctx context.Context, prompt string, opts GenerateOptions) *GenerateResult

	// GenerateStream 返回一个惰性、有限、不可重放的块序列。
	// 通道无缓冲：消费者不取下一块时生产者不前进（拉式背压）。
	// ctx 取消后生产者尽快停止并关闭底层连接。
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) <-chan StreamChunk

	// TestConnection 用极小的 token 预算发一次探测调用，
	// 报告可达性与凭证有效性。任何失败都只表现为 false。
	TestConnection(ctx context.Context) bool

	// Name 返回供应商变体标识。
	Name() string
}
