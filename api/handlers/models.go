package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/creativeflow/aimodel"
)

// =============================================================================
// ⚙️ 模型配置 Handler
// =============================================================================

// ModelConfigHandler 模型配置管理处理器。
type ModelConfigHandler struct {
	store   *aimodel.ConfigStore
	manager *aimodel.Manager
	logger  *zap.Logger
}

// NewModelConfigHandler 创建模型配置处理器。
func NewModelConfigHandler(store *aimodel.ConfigStore, manager *aimodel.Manager, logger *zap.Logger) *ModelConfigHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelConfigHandler{store: store, manager: manager, logger: logger}
}

// modelConfigView 对外展示的配置视图，隐藏密钥明文。
type modelConfigView struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	ModelName   string  `json:"model_name"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	IsActive    bool    `json:"is_active"`
	IsDefault   bool    `json:"is_default"`
	UsageCount  int64   `json:"usage_count"`
	TotalTokens int64   `json:"total_tokens"`
	HasAPIKey   bool    `json:"has_api_key"`
}

func toView(cfg *aimodel.ModelConfig) modelConfigView {
	return modelConfigView{
		ID:          cfg.ID,
		Name:        cfg.Name,
		Provider:    string(cfg.Provider),
		ModelName:   cfg.ModelName,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		IsActive:    cfg.IsActive,
		IsDefault:   cfg.IsDefault,
		UsageCount:  cfg.UsageCount,
		TotalTokens: cfg.TotalTokens,
		HasAPIKey:   cfg.APIKey != "",
	}
}

// HandleList 列出启用中的配置。
// GET /v1/models
func (h *ModelConfigHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	configs, err := h.store.List()
	if err != nil {
		h.logger.Error("failed to list configs", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, CodeInternalError, "failed to list model configs", h.logger)
		return
	}
	views := make([]modelConfigView, 0, len(configs))
	for i := range configs {
		views = append(views, toView(&configs[i]))
	}
	WriteSuccess(w, views)
}

// CreateModelRequest 创建配置请求体。
type CreateModelRequest struct {
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	APIKey      string  `json:"api_key"`
	APISecret   string  `json:"api_secret,omitempty"`
	ModelName   string  `json:"model_name,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsDefault   bool    `json:"is_default,omitempty"`
}

// HandleCreate 创建新配置。
// POST /v1/models
func (h *ModelConfigHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req CreateModelRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Name == "" || req.Provider == "" {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "name and provider are required", h.logger)
		return
	}
	provider := aimodel.ProviderKind(req.Provider)
	if !provider.Valid() {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "unknown provider: "+req.Provider, h.logger)
		return
	}

	cfg := &aimodel.ModelConfig{
		Name:        req.Name,
		Provider:    provider,
		APIKey:      req.APIKey,
		APISecret:   req.APISecret,
		ModelName:   req.ModelName,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		IsActive:    true,
		IsDefault:   req.IsDefault,
	}
	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}
	if err := h.store.Create(cfg); err != nil {
		h.logger.Error("failed to create config", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, CodeInternalError, "failed to create model config", h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, Response{Success: true, Data: toView(cfg), Timestamp: time.Now()})
}

// HandleUpdate 按字段更新配置。
// PUT /v1/models/{id}
func (h *ModelConfigHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var fields map[string]interface{}
	if err := DecodeJSONBody(w, r, &fields, h.logger); err != nil {
		return
	}
	// 只放行白名单字段，防止直改计数器
	allowed := map[string]bool{
		"name": true, "api_key": true, "api_secret": true, "model_name": true,
		"max_tokens": true, "temperature": true, "is_active": true, "is_default": true,
	}
	for k := range fields {
		if !allowed[k] {
			WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "field not updatable: "+k, h.logger)
			return
		}
	}
	updated, err := h.store.Update(id, fields)
	if err != nil {
		WriteError(w, http.StatusNotFound, CodeNotFound, err.Error(), h.logger)
		return
	}
	WriteSuccess(w, toView(updated))
}

// HandleSetDefault 设为默认配置。
// POST /v1/models/{id}/default
func (h *ModelConfigHandler) HandleSetDefault(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.store.SetDefault(id); err != nil {
		WriteError(w, http.StatusNotFound, CodeNotFound, err.Error(), h.logger)
		return
	}
	WriteSuccess(w, map[string]uint{"default_id": id})
}

// HandleTest 测试配置连通性。
// POST /v1/models/{id}/test
func (h *ModelConfigHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	success, message := h.manager.TestConfig(r.Context(), id)
	WriteSuccess(w, map[string]interface{}{
		"success": success,
		"message": message,
	})
}

// HandleStats 用量统计。可选 config_id 查询参数限定单个配置。
// GET /v1/models/stats
func (h *ModelConfigHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	var configID *uint
	if raw := r.URL.Query().Get("config_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid config_id", h.logger)
			return
		}
		id := uint(v)
		configID = &id
	}
	stats, err := h.store.Stats(configID)
	if err != nil {
		h.logger.Error("failed to load stats", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, CodeInternalError, "failed to load usage stats", h.logger)
		return
	}
	WriteSuccess(w, stats)
}

// pathID 解析路径参数 {id}。
func pathID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uint, bool) {
	raw := r.PathValue("id")
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid model config id", logger)
		return 0, false
	}
	return uint(v), true
}
