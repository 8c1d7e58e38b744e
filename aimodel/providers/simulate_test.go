package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/BaSui01/creativeflow/aimodel"
)

func collect(ch <-chan aimodel.StreamChunk) []aimodel.StreamChunk {
	var out []aimodel.StreamChunk
	for chunk := range ch {
		out = append(out, chunk)
	}
	return out
}

func TestSimulateStream_Shape(t *testing.T) {
	result := &aimodel.GenerateResult{
		Success: true,
		Content: "你好!",
		Usage:   aimodel.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5},
	}

	chunks := collect(SimulateStream(context.Background(), result, rate.Inf))

	// 按 rune 逐个增量 + 一个终止块
	require.Len(t, chunks, 4)
	assert.Equal(t, "你", chunks[0].Content)
	assert.Equal(t, "你", chunks[0].FullContent)
	assert.Equal(t, "好", chunks[1].Content)
	assert.Equal(t, "你好", chunks[1].FullContent)
	assert.Equal(t, "!", chunks[2].Content)
	assert.Equal(t, "你好!", chunks[2].FullContent)

	terminal := chunks[3]
	assert.True(t, terminal.Finished)
	assert.Empty(t, terminal.Content)
	assert.Equal(t, "你好!", terminal.FullContent)
	require.NotNil(t, terminal.Usage)
	assert.Equal(t, 5, terminal.Usage.TotalTokens)
}

func TestSimulateStream_EmptyContent(t *testing.T) {
	result := &aimodel.GenerateResult{Success: true}

	chunks := collect(SimulateStream(context.Background(), result, rate.Inf))

	// 空文本也要有终止块
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Finished)
	assert.Nil(t, chunks[0].Usage)
}

func TestSimulateStream_ErrorResult(t *testing.T) {
	result := &aimodel.GenerateResult{Success: false, Error: "baidu: error 110: token expired"}

	chunks := collect(SimulateStream(context.Background(), result, rate.Inf))

	// 失败结果只发一个错误块，没有终止块
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsError())
	assert.False(t, chunks[0].Finished)
	assert.Contains(t, chunks[0].Error, "110")
}

func TestSimulateStream_ErrorWithoutMessage(t *testing.T) {
	result := &aimodel.GenerateResult{Success: false}

	chunks := collect(SimulateStream(context.Background(), result, rate.Inf))
	require.Len(t, chunks, 1)
	assert.Equal(t, "generation failed", chunks[0].Error)
}

func TestSimulateStream_CancelStopsWithoutTerminal(t *testing.T) {
	result := &aimodel.GenerateResult{Success: true, Content: "abcdefghij"}

	// 有限速率下 limiter.Wait 在取消后立即报错，循环不再前进
	ctx, cancel := context.WithCancel(context.Background())
	ch := SimulateStream(ctx, result, rate.Limit(10000))

	first, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "a", first.Content)
	cancel()

	deadline := time.After(2 * time.Second)
	sawTerminal := false
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				assert.False(t, sawTerminal, "cancelled stream must not emit terminal chunk")
				return
			}
			if chunk.Finished {
				sawTerminal = true
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}
