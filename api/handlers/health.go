package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthHandler 健康检查处理器。
type HealthHandler struct {
	db      *gorm.DB
	logger  *zap.Logger
	version string
	started time.Time
}

// NewHealthHandler 创建健康检查处理器。
func NewHealthHandler(db *gorm.DB, version string, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{db: db, logger: logger, version: version, started: time.Now()}
}

// HandleHealth 返回服务与数据库健康状态。
// GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "up"

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			h.logger.Warn("database ping failed", zap.Error(err))
			status = "degraded"
			dbStatus = "down"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, Response{
		Success: status == "healthy",
		Data: map[string]interface{}{
			"status":   status,
			"database": dbStatus,
			"version":  h.version,
			"uptime":   time.Since(h.started).Round(time.Second).String(),
		},
		Timestamp: time.Now(),
	})
}
