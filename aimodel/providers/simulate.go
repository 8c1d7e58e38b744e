package providers

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/BaSui01/creativeflow/aimodel"
)

// DefaultEmitRate 模拟流的默认逐字符发射速率。
// 节奏只影响观感，序列形状（增量块 + 终止块）才是契约。
const DefaultEmitRate = rate.Limit(100)

// SimulateStream 用一次阻塞生成的结果模拟增量流。
//
// 供应商的 HTTP API 没有流式模式时使用：把完整文本按 rune 逐个
// 重放为增量块，终止块携带真实用量。对外可见的序列形状与真流
// 一致：零或多个增量块，然后恰好一个 Finished=true 的终止块；
// result 本身失败时只发一个错误块。
//
// 通道无缓冲，消费者不取块时发射不前进；ctx 取消后立即停止，
// 不再发射终止块。
func SimulateStream(ctx context.Context, result *aimodel.GenerateResult, limit rate.Limit) <-chan aimodel.StreamChunk {
	ch := make(chan aimodel.StreamChunk)

	go func() {
		defer close(ch)

		if !result.Success {
			errMsg := result.Error
			if errMsg == "" {
				errMsg = "generation failed"
			}
			select {
			case <-ctx.Done():
			case ch <- aimodel.StreamChunk{Error: errMsg}:
			}
			return
		}

		if limit <= 0 {
			limit = DefaultEmitRate
		}
		limiter := rate.NewLimiter(limit, 1)

		var acc []rune
		for _, r := range result.Content {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			acc = append(acc, r)
			select {
			case <-ctx.Done():
				return
			case ch <- aimodel.StreamChunk{
				Content:     string(r),
				FullContent: string(acc),
			}:
			}
		}

		terminal := aimodel.StreamChunk{
			FullContent: result.Content,
			Finished:    true,
		}
		if result.Usage.TotalTokens > 0 || result.Usage.PromptTokens > 0 || result.Usage.CompletionTokens > 0 {
			u := result.Usage
			terminal.Usage = &u
		}
		select {
		case <-ctx.Done():
		case ch <- terminal:
		}
	}()

	return ch
}
