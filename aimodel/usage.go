package aimodel

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// moduleTag 审计日志的来源模块标签。
const moduleTag = "aimodel"

// =============================================================================
// 📒 用量记录器
// =============================================================================

// UsageRecorder 把每次生成调用的结果落成审计日志，
// 成功时附带配置计数器的原子推进。对一次调用它至多被触发一次。
type UsageRecorder struct {
	store  *ConfigStore
	logger *zap.Logger
}

// NewUsageRecorder 创建用量记录器。
func NewUsageRecorder(store *ConfigStore, logger *zap.Logger) *UsageRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageRecorder{
		store:  store,
		logger: logger.With(zap.String("component", "usage_recorder")),
	}
}

// RecordSuccess 推进 usage_count/total_tokens 并追加一条 INFO 日志，
// 两者在同一事务内完成。落库失败只记日志，不影响已返回给调用方的结果。
func (r *UsageRecorder) RecordSuccess(cfg *ModelConfig, requestID string, promptLen int, usage Usage, contentLen int, elapsed time.Duration) {
	entry := &SystemLog{
		Level:   LogLevelInfo,
		Module:  moduleTag,
		Message: fmt.Sprintf("AI content generated - model: %s", cfg.Name),
		Details: LogDetails{
			RequestID:     requestID,
			ConfigID:      cfg.ID,
			PromptLength:  promptLen,
			Success:       true,
			ResponseTime:  elapsed.Seconds(),
			ContentLength: contentLen,
			Usage:         usageOrNil(usage),
		},
	}
	if err := r.store.RecordSuccess(cfg.ID, usage.TotalTokens, entry); err != nil {
		r.logger.Error("failed to record successful generation",
			zap.Uint("config_id", cfg.ID), zap.Error(err))
	}
}

// RecordFailure 只追加一条 ERROR 日志，计数器不动。
func (r *UsageRecorder) RecordFailure(cfg *ModelConfig, requestID string, promptLen int, errText string, elapsed time.Duration) {
	entry := &SystemLog{
		Level:   LogLevelError,
		Module:  moduleTag,
		Message: fmt.Sprintf("AI content generation failed - model: %s", cfg.Name),
		Details: LogDetails{
			RequestID:    requestID,
			ConfigID:     cfg.ID,
			PromptLength: promptLen,
			Success:      false,
			Error:        errText,
			ResponseTime: elapsed.Seconds(),
		},
	}
	if err := r.store.AppendLog(entry); err != nil {
		r.logger.Error("failed to record generation failure",
			zap.Uint("config_id", cfg.ID), zap.Error(err))
	}
}

func usageOrNil(u Usage) *Usage {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0 {
		return nil
	}
	return &u
}
