package openaicompat

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
	"github.com/BaSui01/creativeflow/aimodel/providers"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	return New(Config{
		ProviderName:  "openai",
		APIKey:        "test-key",
		BaseURL:       baseURL,
		DefaultModel:  "gpt-3.5-turbo",
		FallbackModel: "gpt-3.5-turbo",
	}, zaptest.NewLogger(t))
}

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req providers.OpenAICompatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-3.5-turbo", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		resp := providers.OpenAICompatResponse{
			Model: "gpt-3.5-turbo",
			Choices: []providers.OpenAICompatChoice{
				{Message: providers.OpenAICompatMessage{Role: "assistant", Content: "生成的内容"}},
			},
			Usage: &providers.OpenAICompatUsage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result := client.Generate(context.Background(), "写点东西", aimodel.GenerateOptions{})

	require.True(t, result.Success)
	assert.Equal(t, "生成的内容", result.Content)
	assert.Equal(t, "gpt-3.5-turbo", result.Model)
	assert.Equal(t, 10, result.Usage.TotalTokens)
}

func TestGenerate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result := client.Generate(context.Background(), "hi", aimodel.GenerateOptions{})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "authentication failed")
	assert.Contains(t, result.Error, "Incorrect API key provided")
}

func TestGenerate_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"x","model":"gpt-3.5-turbo","choices":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result := client.Generate(context.Background(), "hi", aimodel.GenerateOptions{})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "no choices")
}

func TestGenerate_TransportError(t *testing.T) {
	// 已关闭的服务器地址，连接必然失败
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL)
	result := client.Generate(context.Background(), "hi", aimodel.GenerateOptions{})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "openai:")
}

func TestGenerate_OptionsOverrideConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req providers.OpenAICompatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 99, req.MaxTokens)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		assert.Equal(t, []string{"END"}, req.Stop)

		json.NewEncoder(w).Encode(providers.OpenAICompatResponse{
			Choices: []providers.OpenAICompatChoice{{Message: providers.OpenAICompatMessage{Content: "ok"}}},
		})
	}))
	defer server.Close()

	client := New(Config{
		ProviderName: "openai",
		APIKey:       "k",
		BaseURL:      server.URL,
		DefaultModel: "gpt-4",
		MaxTokens:    2000,
		Temperature:  0.7,
	}, zaptest.NewLogger(t))

	result := client.Generate(context.Background(), "hi", aimodel.GenerateOptions{
		MaxTokens:   99,
		Temperature: 0.3,
		Stop:        []string{"END"},
	})
	require.True(t, result.Success)
}

func sseChunk(content string) string {
	resp := providers.OpenAICompatResponse{
		Choices: []providers.OpenAICompatChoice{
			{Delta: &providers.OpenAICompatMessage{Content: content}},
		},
	}
	data, _ := json.Marshal(resp)
	return "data: " + string(data) + "\n\n"
}

func TestGenerateStream_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req providers.OpenAICompatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		require.NotNil(t, req.StreamOptions)
		assert.True(t, req.StreamOptions.IncludeUsage)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Hel"))
		fmt.Fprint(w, sseChunk("lo"))
		fmt.Fprint(w, sseChunk("!"))
		// 末尾的用量块没有增量内容
		usageResp := providers.OpenAICompatResponse{
			Usage: &providers.OpenAICompatUsage{PromptTokens: 2, CompletionTokens: 4, TotalTokens: 6},
		}
		data, _ := json.Marshal(usageResp)
		fmt.Fprintf(w, "data: %s\n\n", data)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var chunks []aimodel.StreamChunk
	for chunk := range client.GenerateStream(context.Background(), "say hello", aimodel.GenerateOptions{}) {
		chunks = append(chunks, chunk)
	}

	require.Len(t, chunks, 4)
	assert.Equal(t, "Hel", chunks[0].Content)
	assert.Equal(t, "Hel", chunks[0].FullContent)
	assert.Equal(t, "lo", chunks[1].Content)
	assert.Equal(t, "Hello", chunks[1].FullContent)
	assert.Equal(t, "!", chunks[2].Content)
	assert.Equal(t, "Hello!", chunks[2].FullContent)

	terminal := chunks[3]
	assert.True(t, terminal.Finished)
	assert.Equal(t, "Hello!", terminal.FullContent)
	require.NotNil(t, terminal.Usage)
	assert.Equal(t, 6, terminal.Usage.TotalTokens)
}

func TestGenerateStream_SkipsUnparseableLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": heartbeat comment\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, sseChunk("ok"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var chunks []aimodel.StreamChunk
	for chunk := range client.GenerateStream(context.Background(), "hi", aimodel.GenerateOptions{}) {
		chunks = append(chunks, chunk)
	}

	require.Len(t, chunks, 2)
	assert.Equal(t, "ok", chunks[0].Content)
	assert.True(t, chunks[1].Finished)
}

func TestGenerateStream_TruncatedTreatedAsComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("partial"))
		// 连接结束而没有 [DONE]
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var chunks []aimodel.StreamChunk
	for chunk := range client.GenerateStream(context.Background(), "hi", aimodel.GenerateOptions{}) {
		chunks = append(chunks, chunk)
	}

	require.Len(t, chunks, 2)
	terminal := chunks[1]
	assert.True(t, terminal.Finished)
	assert.Equal(t, "partial", terminal.FullContent)
	assert.Nil(t, terminal.Usage)
}

func TestGenerateStream_HTTPErrorYieldsErrorChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	var chunks []aimodel.StreamChunk
	for chunk := range client.GenerateStream(context.Background(), "hi", aimodel.GenerateOptions{}) {
		chunks = append(chunks, chunk)
	}

	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsError())
	assert.Contains(t, chunks[0].Error, "rate limited")
}

func TestTestConnection(t *testing.T) {
	var sawMaxTokens int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req providers.OpenAICompatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		sawMaxTokens = req.MaxTokens
		json.NewEncoder(w).Encode(providers.OpenAICompatResponse{
			Choices: []providers.OpenAICompatChoice{{Message: providers.OpenAICompatMessage{Content: "ok"}}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	assert.True(t, client.TestConnection(context.Background()))
	assert.Equal(t, 10, sawMaxTokens)

	server.Close()
	assert.False(t, client.TestConnection(context.Background()))
}
