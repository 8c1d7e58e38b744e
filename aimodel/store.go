package aimodel

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🗄️ 配置存储
// =============================================================================

// ConfigStore 封装 ModelConfig / SystemLog 的持久化访问。
// 所有违反不变式的写入路径（默认标志、计数器）都走事务。
type ConfigStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewConfigStore 创建配置存储。
func NewConfigStore(db *gorm.DB, logger *zap.Logger) *ConfigStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigStore{
		db:     db,
		logger: logger.With(zap.String("component", "config_store")),
	}
}

// AutoMigrate 迁移本模块拥有的表。
func (s *ConfigStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ModelConfig{}, &SystemLog{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

// Create 新增配置。cfg.IsDefault 为 true 时在同一事务内清除其他默认标志。
func (s *ConfigStore) Create(cfg *ModelConfig) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if cfg.IsDefault {
			if err := tx.Model(&ModelConfig{}).
				Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return fmt.Errorf("failed to clear default flags: %w", err)
			}
		}
		if err := tx.Create(cfg).Error; err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}
		return nil
	})
}

// Update 按字段 map 更新配置；设置 is_default=true 时同事务清除其他默认。
// 返回更新后的记录。
func (s *ConfigStore) Update(id uint, fields map[string]interface{}) (*ModelConfig, error) {
	var updated ModelConfig
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cfg ModelConfig
		if err := tx.First(&cfg, id).Error; err != nil {
			return fmt.Errorf("config %d not found: %w", id, err)
		}
		if v, ok := fields["is_default"]; ok {
			if b, _ := v.(bool); b {
				if err := tx.Model(&ModelConfig{}).
					Where("id <> ? AND is_default = ?", id, true).
					Update("is_default", false).Error; err != nil {
					return fmt.Errorf("failed to clear default flags: %w", err)
				}
			}
		}
		if err := tx.Model(&cfg).Updates(fields).Error; err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}
		return tx.First(&updated, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetDefault 把指定配置设为默认，同事务清除其余默认标志。
// 并发设置默认时采用 last-writer-wins，不做冲突检测。
func (s *ConfigStore) SetDefault(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var cfg ModelConfig
		if err := tx.First(&cfg, id).Error; err != nil {
			return fmt.Errorf("config %d not found: %w", id, err)
		}
		if err := tx.Model(&ModelConfig{}).
			Where("id <> ? AND is_default = ?", id, true).
			Update("is_default", false).Error; err != nil {
			return fmt.Errorf("failed to clear default flags: %w", err)
		}
		return tx.Model(&cfg).Update("is_default", true).Error
	})
}

// Get 按 id 查找，只返回启用中的配置。未找到时返回 (nil, nil)。
func (s *ConfigStore) Get(id uint) (*ModelConfig, error) {
	var cfg ModelConfig
	err := s.db.Where("id = ? AND is_active = ?", id, true).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetDefault 返回启用中的默认配置。没有时返回 (nil, nil)。
func (s *ConfigStore) GetDefault() (*ModelConfig, error) {
	var cfg ModelConfig
	err := s.db.Where("is_default = ? AND is_active = ?", true, true).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// List 返回所有启用中的配置。
func (s *ConfigStore) List() ([]ModelConfig, error) {
	var configs []ModelConfig
	if err := s.db.Where("is_active = ?", true).Order("id").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// RecordSuccess 在一个事务里原子推进计数器并追加一条 INFO 日志。
// 计数器用 SQL 级 read-modify-write 递增，避免并发完成时丢失更新。
// 从并发读者视角看不存在"计数已推进但日志缺失"的中间态。
func (s *ConfigStore) RecordSuccess(configID uint, totalTokens int, entry *SystemLog) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + 1"),
		}
		if totalTokens > 0 {
			updates["total_tokens"] = gorm.Expr("total_tokens + ?", totalTokens)
		}
		if err := tx.Model(&ModelConfig{}).Where("id = ?", configID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to increment usage counters: %w", err)
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append usage log: %w", err)
		}
		return nil
	})
}

// AppendLog 追加一条审计日志（失败路径，不动计数器）。
func (s *ConfigStore) AppendLog(entry *SystemLog) error {
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

// UsageStat 单个配置的用量切片。
type UsageStat struct {
	ID          uint         `json:"id"`
	Name        string       `json:"name"`
	Provider    ProviderKind `json:"provider"`
	UsageCount  int64        `json:"usage_count"`
	TotalTokens int64        `json:"total_tokens"`
	IsActive    bool         `json:"is_active"`
	IsDefault   bool         `json:"is_default"`
}

// UsageStats 聚合结果。
type UsageStats struct {
	Configs     []UsageStat `json:"configs"`
	TotalUsage  int64       `json:"total_usage"`
	TotalTokens int64       `json:"total_tokens"`
}

// Stats 汇总所有配置（或单个配置）的累计用量。
func (s *ConfigStore) Stats(configID *uint) (*UsageStats, error) {
	q := s.db.Model(&ModelConfig{})
	if configID != nil {
		q = q.Where("id = ?", *configID)
	}
	var configs []ModelConfig
	if err := q.Order("id").Find(&configs).Error; err != nil {
		return nil, err
	}

	out := &UsageStats{Configs: make([]UsageStat, 0, len(configs))}
	for _, c := range configs {
		out.Configs = append(out.Configs, UsageStat{
			ID:          c.ID,
			Name:        c.Name,
			Provider:    c.Provider,
			UsageCount:  c.UsageCount,
			TotalTokens: c.TotalTokens,
			IsActive:    c.IsActive,
			IsDefault:   c.IsDefault,
		})
		out.TotalUsage += c.UsageCount
		out.TotalTokens += c.TotalTokens
	}
	return out, nil
}
