package aimodel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/creativeflow/internal/metrics"
)

// =============================================================================
// 🎯 生成入口（门面）
// =============================================================================

// Manager 是生成调用的唯一入口，编排 注册表 → 客户端 → 用量记录，
// 同时覆盖一次性与流式两种模式。
//
// 每次调用的日志约定：失败路径至多一条 ERROR 日志，成功/终止路径
// 至多一条 INFO 日志，二者不会同时出现也不会重复。
type Manager struct {
	registry *Registry
	recorder *UsageRecorder
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewManager 创建生成入口。collector 可为 nil（不采集指标）。
func NewManager(registry *Registry, recorder *UsageRecorder, collector *metrics.Collector, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		registry: registry,
		recorder: recorder,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "ai_manager")),
	}
}

// ErrNoUsableModel 无匹配/启用/默认配置时的失败原因。
const ErrNoUsableModel = "no usable AI model configured"

// GenerateContent 一次性生成。
// 解析不到可用模型时直接返回失败结果且不记日志；其余情况无论成败
// 都恰好落一条审计日志，成功时在同一事务内推进配置计数器。
func (m *Manager) GenerateContent(ctx context.Context, prompt string, configID *uint, opts GenerateOptions) (result *GenerateResult) {
	client, cfg := m.registry.Resolve(configID)
	if client == nil {
		return &GenerateResult{Success: false, Error: ErrNoUsableModel}
	}

	requestID := uuid.NewString()
	start := time.Now()

	// 编排层自身的兜底：管线里任何 panic 都转成失败结果 + ERROR 日志,
	// 不让调用方的请求异常终止。
	defer func() {
		if rec := recover(); rec != nil {
			elapsed := time.Since(start)
			errText := fmt.Sprintf("generation pipeline panic: %v", rec)
			m.logger.Error("generation panic recovered",
				zap.String("request_id", requestID), zap.Any("panic", rec))
			m.recorder.RecordFailure(cfg, requestID, len(prompt), errText, elapsed)
			m.metrics.RecordGeneration(client.Name(), "sync", "error", elapsed)
			result = &GenerateResult{Success: false, Error: errText}
		}
	}()

	result = client.Generate(ctx, prompt, opts)
	elapsed := time.Since(start)

	if result.Success {
		m.recorder.RecordSuccess(cfg, requestID, len(prompt), result.Usage, len(result.Content), elapsed)
		m.metrics.RecordGeneration(client.Name(), "sync", "success", elapsed)
		m.metrics.RecordTokens(client.Name(), result.Usage.PromptTokens, result.Usage.CompletionTokens)
	} else {
		m.recorder.RecordFailure(cfg, requestID, len(prompt), result.Error, elapsed)
		m.metrics.RecordGeneration(client.Name(), "sync", "error", elapsed)
	}

	m.logger.Info("content generated",
		zap.String("request_id", requestID),
		zap.Uint("config_id", cfg.ID),
		zap.String("provider", client.Name()),
		zap.Bool("success", result.Success),
		zap.Duration("elapsed", elapsed),
	)
	return result
}

// GenerateContentStream 流式生成。
// 底层每个块原样转发；错误块额外落一条 ERROR 日志后停止；终止块
// 在转发前推进计数器并落一条 INFO 日志。调用方取消（ctx done）时
// 停止消费且不做任何用量记录——未到终止块的部分用量不入账。
func (m *Manager) GenerateContentStream(ctx context.Context, prompt string, configID *uint, opts GenerateOptions) <-chan StreamChunk {
	out := make(chan StreamChunk)

	go func() {
		defer close(out)

		client, cfg := m.registry.Resolve(configID)
		if client == nil {
			select {
			case <-ctx.Done():
			case out <- StreamChunk{Error: ErrNoUsableModel}:
			}
			return
		}

		requestID := uuid.NewString()
		start := time.Now()

		defer func() {
			if rec := recover(); rec != nil {
				elapsed := time.Since(start)
				errText := fmt.Sprintf("stream pipeline panic: %v", rec)
				m.logger.Error("stream panic recovered",
					zap.String("request_id", requestID), zap.Any("panic", rec))
				m.recorder.RecordFailure(cfg, requestID, len(prompt), errText, elapsed)
				m.metrics.RecordGeneration(client.Name(), "stream", "error", elapsed)
				select {
				case <-ctx.Done():
				case out <- StreamChunk{Error: errText}:
				}
			}
		}()

		for chunk := range client.GenerateStream(ctx, prompt, opts) {
			if chunk.IsError() {
				elapsed := time.Since(start)
				m.recorder.RecordFailure(cfg, requestID, len(prompt), chunk.Error, elapsed)
				m.metrics.RecordGeneration(client.Name(), "stream", "error", elapsed)
				select {
				case <-ctx.Done():
				case out <- chunk:
				}
				return
			}

			if chunk.Finished {
				elapsed := time.Since(start)
				var usage Usage
				if chunk.Usage != nil {
					usage = *chunk.Usage
				}
				m.recorder.RecordSuccess(cfg, requestID, len(prompt), usage, len(chunk.FullContent), elapsed)
				m.metrics.RecordGeneration(client.Name(), "stream", "success", elapsed)
				m.metrics.RecordTokens(client.Name(), usage.PromptTokens, usage.CompletionTokens)
				m.logger.Info("stream generation finished",
					zap.String("request_id", requestID),
					zap.Uint("config_id", cfg.ID),
					zap.String("provider", client.Name()),
					zap.Int("content_length", len(chunk.FullContent)),
					zap.Duration("elapsed", elapsed),
				)
			}

			m.metrics.RecordStreamChunk(client.Name())
			select {
			case <-ctx.Done():
				return
			case out <- chunk:
			}
			if chunk.Finished {
				return
			}
		}
	}()

	return out
}

// TestConfig 对指定配置发一次低成本探测调用。
// 配置不存在时返回 (false, 描述信息)。
func (m *Manager) TestConfig(ctx context.Context, configID uint) (bool, string) {
	client, _ := m.registry.Resolve(&configID)
	if client == nil {
		return false, "configuration not found or inactive"
	}
	if client.TestConnection(ctx) {
		return true, ""
	}
	return false, "connection test failed"
}
