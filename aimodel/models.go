package aimodel

import (
	"time"
)

// ============================================================
// 持久化模型
// ============================================================

// ModelConfig 供应商凭证/参数档案。
// 不变式：任意时刻至多一条记录 is_default=true（由 ConfigStore
// 的事务保证）；usage_count / total_tokens 单调不减，仅在生成
// 成功完成时推进。记录不做物理删除，停用走 is_active。
type ModelConfig struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:50;uniqueIndex;not null" json:"name"`        // 配置名称
	Provider    ProviderKind `gorm:"size:20;not null;index" json:"provider"`          // openai, baidu, dashscope, deepseek
	APIKey      string       `gorm:"size:200" json:"api_key"`                         // 主凭证
	APISecret   string       `gorm:"size:200" json:"api_secret"`                      // 次级凭证或 endpoint 覆盖
	ModelName   string       `gorm:"size:50" json:"model_name"`                       // 具体模型名
	MaxTokens   int          `gorm:"default:2000" json:"max_tokens"`                  // 默认最大输出 token
	Temperature float64      `gorm:"default:0.7" json:"temperature"`                  // 默认温度
	IsActive    bool         `gorm:"default:true;index" json:"is_active"`             // 是否启用
	IsDefault   bool         `gorm:"default:false;index" json:"is_default"`           // 是否默认配置
	UsageCount  int64        `gorm:"default:0" json:"usage_count"`                    // 累计调用次数
	TotalTokens int64        `gorm:"default:0" json:"total_tokens"`                   // 累计 token 数
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (ModelConfig) TableName() string {
	return "ai_model_configs"
}

// SystemLog 审计日志，append-only，本模块只写不读。
type SystemLog struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Level     string     `gorm:"size:10;not null;index" json:"level"`  // INFO / ERROR
	Module    string     `gorm:"size:50;not null;index" json:"module"` // 来源模块标签
	Message   string     `gorm:"size:500" json:"message"`
	Details   LogDetails `gorm:"serializer:json" json:"details"` // 结构化明细
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

func (SystemLog) TableName() string {
	return "system_logs"
}

// 日志级别
const (
	LogLevelInfo  = "INFO"
	LogLevelError = "ERROR"
)

// LogDetails SystemLog.Details 的结构化载荷。
type LogDetails struct {
	RequestID     string  `json:"request_id,omitempty"`
	ConfigID      uint    `json:"config_id"`
	PromptLength  int     `json:"prompt_length"`
	Success       bool    `json:"success"`
	Error         string  `json:"error,omitempty"`
	ResponseTime  float64 `json:"response_time"` // 秒
	ContentLength int     `json:"content_length,omitempty"`
	Usage         *Usage  `json:"usage,omitempty"`
}
