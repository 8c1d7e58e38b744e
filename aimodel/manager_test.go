package aimodel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// fakeClient 可编排的测试客户端。
type fakeClient struct {
	name   string
	result *GenerateResult
	chunks []StreamChunk
}

func (f *fakeClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) *GenerateResult {
	return f.result
}

func (f *fakeClient) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) <-chan StreamChunk {
	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		for _, chunk := range f.chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- chunk:
			}
		}
	}()
	return ch
}

func (f *fakeClient) TestConnection(ctx context.Context) bool { return f.result.Success }

func (f *fakeClient) Name() string { return f.name }

func newTestManager(t *testing.T, store *ConfigStore, client Client) *Manager {
	logger := zaptest.NewLogger(t)
	registry := NewRegistry(store, func(_ *ModelConfig, _ *zap.Logger) (Client, error) {
		return client, nil
	}, logger)
	recorder := NewUsageRecorder(store, logger)
	return NewManager(registry, recorder, nil, logger)
}

func TestManager_GenerateSuccessRecordsUsage(t *testing.T) {
	store := setupTestStore(t)
	cfg := &ModelConfig{Name: "m", Provider: ProviderDeepSeek, IsActive: true, IsDefault: true}
	require.NoError(t, store.Create(cfg))

	client := &fakeClient{
		name: "deepseek",
		result: &GenerateResult{
			Success: true,
			Content: "你好，世界",
			Usage:   Usage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
			Model:   "deepseek-chat",
		},
	}
	mgr := newTestManager(t, store, client)

	result := mgr.GenerateContent(context.Background(), "打个招呼", nil, GenerateOptions{})
	require.True(t, result.Success)
	assert.Equal(t, "你好，世界", result.Content)

	var after ModelConfig
	require.NoError(t, store.db.First(&after, cfg.ID).Error)
	assert.EqualValues(t, 1, after.UsageCount)
	assert.EqualValues(t, 8, after.TotalTokens)

	var logs []SystemLog
	require.NoError(t, store.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, LogLevelInfo, logs[0].Level)
	assert.True(t, logs[0].Details.Success)
	require.NotNil(t, logs[0].Details.Usage)
	assert.Equal(t, 8, logs[0].Details.Usage.TotalTokens)
}

func TestManager_GenerateFailureLeavesCounters(t *testing.T) {
	store := setupTestStore(t)
	cfg := &ModelConfig{Name: "m", Provider: ProviderOpenAI, IsActive: true, IsDefault: true}
	require.NoError(t, store.Create(cfg))

	client := &fakeClient{
		name:   "openai",
		result: &GenerateResult{Success: false, Error: "openai: HTTP 401: invalid api key"},
	}
	mgr := newTestManager(t, store, client)

	result := mgr.GenerateContent(context.Background(), "hi", nil, GenerateOptions{})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "401")

	// 失败不动计数器，但要落恰好一条 ERROR 日志
	var after ModelConfig
	require.NoError(t, store.db.First(&after, cfg.ID).Error)
	assert.EqualValues(t, 0, after.UsageCount)
	assert.EqualValues(t, 0, after.TotalTokens)

	var logs []SystemLog
	require.NoError(t, store.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, LogLevelError, logs[0].Level)
	assert.False(t, logs[0].Details.Success)
	assert.Contains(t, logs[0].Details.Error, "401")
}

func TestManager_GenerateNoUsableModel(t *testing.T) {
	store := setupTestStore(t)
	mgr := newTestManager(t, store, &fakeClient{name: "unused", result: &GenerateResult{Success: true}})

	result := mgr.GenerateContent(context.Background(), "hi", nil, GenerateOptions{})
	require.False(t, result.Success)
	assert.Equal(t, ErrNoUsableModel, result.Error)

	// 没有解析到模型时不落任何日志
	var logs int64
	require.NoError(t, store.db.Model(&SystemLog{}).Count(&logs).Error)
	assert.EqualValues(t, 0, logs)
}

func TestManager_StreamReconstruction(t *testing.T) {
	store := setupTestStore(t)
	cfg := &ModelConfig{Name: "m", Provider: ProviderDeepSeek, IsActive: true, IsDefault: true}
	require.NoError(t, store.Create(cfg))

	client := &fakeClient{
		name: "deepseek",
		chunks: []StreamChunk{
			{Content: "Hel", FullContent: "Hel"},
			{Content: "lo", FullContent: "Hello"},
			{Content: "!", FullContent: "Hello!"},
			{Finished: true, FullContent: "Hello!", Usage: &Usage{PromptTokens: 2, CompletionTokens: 4, TotalTokens: 6}},
		},
	}
	mgr := newTestManager(t, store, client)

	var got []StreamChunk
	for chunk := range mgr.GenerateContentStream(context.Background(), "say hello", nil, GenerateOptions{}) {
		got = append(got, chunk)
	}

	require.Len(t, got, 4)
	terminal := got[len(got)-1]
	assert.True(t, terminal.Finished)
	assert.Equal(t, "Hello!", terminal.FullContent)

	// 逐块拼接与终止块全文一致
	var rebuilt string
	for _, chunk := range got[:len(got)-1] {
		rebuilt += chunk.Content
	}
	assert.Equal(t, terminal.FullContent, rebuilt)

	var after ModelConfig
	require.NoError(t, store.db.First(&after, cfg.ID).Error)
	assert.EqualValues(t, 1, after.UsageCount)
	assert.EqualValues(t, 6, after.TotalTokens)

	var logs []SystemLog
	require.NoError(t, store.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, LogLevelInfo, logs[0].Level)
	assert.Equal(t, 6, logs[0].Details.ContentLength)
}

func TestManager_StreamErrorChunk(t *testing.T) {
	store := setupTestStore(t)
	cfg := &ModelConfig{Name: "m", Provider: ProviderBaidu, IsActive: true, IsDefault: true}
	require.NoError(t, store.Create(cfg))

	client := &fakeClient{
		name: "baidu",
		chunks: []StreamChunk{
			{Content: "部", FullContent: "部"},
			{Error: "baidu: error 110: access token expired"},
		},
	}
	mgr := newTestManager(t, store, client)

	var got []StreamChunk
	for chunk := range mgr.GenerateContentStream(context.Background(), "hi", nil, GenerateOptions{}) {
		got = append(got, chunk)
	}

	require.Len(t, got, 2)
	assert.True(t, got[1].IsError())

	// 错误流不入账
	var after ModelConfig
	require.NoError(t, store.db.First(&after, cfg.ID).Error)
	assert.EqualValues(t, 0, after.UsageCount)

	var logs []SystemLog
	require.NoError(t, store.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, LogLevelError, logs[0].Level)
}

func TestManager_StreamNoUsableModel(t *testing.T) {
	store := setupTestStore(t)
	mgr := newTestManager(t, store, &fakeClient{name: "unused"})

	var got []StreamChunk
	for chunk := range mgr.GenerateContentStream(context.Background(), "hi", nil, GenerateOptions{}) {
		got = append(got, chunk)
	}

	require.Len(t, got, 1)
	assert.Equal(t, ErrNoUsableModel, got[0].Error)
}

func TestManager_StreamCancelSkipsAccounting(t *testing.T) {
	store := setupTestStore(t)
	cfg := &ModelConfig{Name: "m", Provider: ProviderDeepSeek, IsActive: true, IsDefault: true}
	require.NoError(t, store.Create(cfg))

	client := &fakeClient{
		name: "deepseek",
		chunks: []StreamChunk{
			{Content: "a", FullContent: "a"},
			{Content: "b", FullContent: "ab"},
			{Finished: true, FullContent: "ab"},
		},
	}
	mgr := newTestManager(t, store, client)

	ctx, cancel := context.WithCancel(context.Background())
	ch := mgr.GenerateContentStream(ctx, "hi", nil, GenerateOptions{})

	// 取第一个块后取消
	<-ch
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				// 部分消费后取消：未到终止块的用量不入账
				var after ModelConfig
				require.NoError(t, store.db.First(&after, cfg.ID).Error)
				assert.EqualValues(t, 0, after.UsageCount)
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}

func TestManager_TestConfig(t *testing.T) {
	store := setupTestStore(t)
	cfg := &ModelConfig{Name: "m", Provider: ProviderOpenAI, IsActive: true}
	require.NoError(t, store.Create(cfg))

	mgr := newTestManager(t, store, &fakeClient{name: "openai", result: &GenerateResult{Success: true}})

	ok, msg := mgr.TestConfig(context.Background(), cfg.ID)
	assert.True(t, ok)
	assert.Empty(t, msg)

	ok, msg = mgr.TestConfig(context.Background(), 9999)
	assert.False(t, ok)
	assert.NotEmpty(t, msg)
}
