package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/creativeflow/aimodel"
)

// =============================================================================
// 💬 生成接口 Handler
// =============================================================================

// GenerateHandler 生成接口处理器。
type GenerateHandler struct {
	manager *aimodel.Manager
	logger  *zap.Logger
}

// NewGenerateHandler 创建生成处理器。
func NewGenerateHandler(manager *aimodel.Manager, logger *zap.Logger) *GenerateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerateHandler{manager: manager, logger: logger}
}

// GenerateRequest 生成请求体。
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	ConfigID    *uint    `json:"config_id,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	N           int      `json:"n,omitempty"`
}

func (req *GenerateRequest) options() aimodel.GenerateOptions {
	return aimodel.GenerateOptions{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
		N:           req.N,
	}
}

// HandleGenerate 处理一次性生成请求。
// POST /v1/generate
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Prompt == "" {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "prompt is required", h.logger)
		return
	}

	start := time.Now()
	result := h.manager.GenerateContent(r.Context(), req.Prompt, req.ConfigID, req.options())
	duration := time.Since(start)

	h.logger.Info("generate request",
		zap.Bool("success", result.Success),
		zap.String("model", result.Model),
		zap.Duration("duration", duration),
	)

	if !result.Success {
		status := http.StatusBadGateway
		code := CodeInternalError
		if result.Error == aimodel.ErrNoUsableModel {
			status = http.StatusServiceUnavailable
			code = CodeNoUsableModel
		}
		WriteError(w, status, code, result.Error, h.logger)
		return
	}
	WriteSuccess(w, result)
}

// HandleGenerateStream 处理流式生成请求。
// POST /v1/generate/stream
//
// 传输约定：每个块一个 SSE 事件，JSON 编码，流以 "[DONE]" 结束标记收尾。
func (h *GenerateHandler) HandleGenerateStream(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Prompt == "" {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "prompt is required", h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, CodeInternalError, "streaming not supported", h.logger)
		return
	}

	// SSE 响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲

	for chunk := range h.manager.GenerateContentStream(r.Context(), req.Prompt, req.ConfigID, req.options()) {
		if chunk.IsError() {
			// 用 json.Marshal 转义错误消息，防止 JSON 注入
			payload, _ := json.Marshal(map[string]string{"error": chunk.Error})
			w.Write([]byte("event: error\ndata: "))
			w.Write(payload)
			w.Write([]byte("\n\n"))
			flusher.Flush()
			return
		}

		w.Write([]byte("data: "))
		if err := json.NewEncoder(w).Encode(chunk); err != nil {
			h.logger.Error("failed to write chunk", zap.Error(err))
			return
		}
		w.Write([]byte("\n"))
		flusher.Flush()
	}

	// 发送结束标记
	w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}
