package dashscope

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/creativeflow/aimodel"
)

func newTestClient(t *testing.T, baseURL string) *DashScopeClient {
	cfg := &aimodel.ModelConfig{
		Name:      "qwen-test",
		Provider:  aimodel.ProviderDashScope,
		APIKey:    "sk-test",
		APISecret: baseURL, // APISecret 覆盖基地址
		ModelName: "qwen-turbo",
	}
	return New(cfg, zaptest.NewLogger(t))
}

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/services/aigc/text-generation/generation", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req generationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen-turbo", req.Model)
		assert.Equal(t, "写一首诗", req.Input.Prompt)

		fmt.Fprint(w, `{"output":{"text":"千问的诗"},"usage":{"input_tokens":4,"output_tokens":8,"total_tokens":12},"request_id":"req-1"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result := client.Generate(context.Background(), "写一首诗", aimodel.GenerateOptions{})

	require.True(t, result.Success)
	assert.Equal(t, "千问的诗", result.Content)
	assert.Equal(t, "qwen-turbo", result.Model)
	assert.Equal(t, 4, result.Usage.PromptTokens)
	assert.Equal(t, 8, result.Usage.CompletionTokens)
	assert.Equal(t, 12, result.Usage.TotalTokens)
}

func TestGenerate_CodeEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// DashScope 的应用错误走 code/message 信封
		fmt.Fprint(w, `{"code":"InvalidApiKey","message":"Invalid API-key provided.","request_id":"req-2"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result := client.Generate(context.Background(), "hi", aimodel.GenerateOptions{})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "InvalidApiKey")
	assert.Contains(t, result.Error, "Invalid API-key provided.")
}

func TestGenerate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"message":"Requests throttling triggered"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result := client.Generate(context.Background(), "hi", aimodel.GenerateOptions{})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "rate limited")
}

func TestGenerate_FallbackModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen-turbo", req.Model)
		fmt.Fprint(w, `{"output":{"text":"ok"}}`)
	}))
	defer server.Close()

	cfg := &aimodel.ModelConfig{
		Provider:  aimodel.ProviderDashScope,
		APIKey:    "sk",
		APISecret: server.URL,
		// ModelName 为空，走兜底
	}
	client := New(cfg, zaptest.NewLogger(t))

	result := client.Generate(context.Background(), "hi", aimodel.GenerateOptions{})
	require.True(t, result.Success)
	// 未上报用量时保持零值
	assert.Zero(t, result.Usage.TotalTokens)
}

func TestGenerateStream_SimulatedShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"output":{"text":"ab"},"usage":{"input_tokens":1,"output_tokens":1,"total_tokens":2}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var chunks []aimodel.StreamChunk
	for chunk := range client.GenerateStream(context.Background(), "hi", aimodel.GenerateOptions{}) {
		chunks = append(chunks, chunk)
	}

	require.Len(t, chunks, 3)
	assert.Equal(t, "a", chunks[0].Content)
	assert.Equal(t, "b", chunks[1].Content)
	assert.True(t, chunks[2].Finished)
	assert.Equal(t, "ab", chunks[2].FullContent)
	require.NotNil(t, chunks[2].Usage)
	assert.Equal(t, 2, chunks[2].Usage.TotalTokens)
}
