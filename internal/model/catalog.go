package model

import (
	"time"
)

// ValidationCriterion 校验标准
// 运行配置与判定记录通过 Key 引用，标准可改名或停用而不影响历史判定
type ValidationCriterion struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Key            string    `json:"key" gorm:"type:varchar(100);uniqueIndex;not null"`
	Name           string    `json:"name" gorm:"type:varchar(255);not null"`
	Description    string    `json:"description" gorm:"type:text"`
	PromptKey      string    `json:"prompt_key" gorm:"type:varchar(100)"`
	AppliesToAll   bool      `json:"applies_to_all" gorm:"not null"`
	AdditionalInfo *string   `json:"additional_info" gorm:"type:text"`
	IsActive       bool      `json:"is_active" gorm:"not null;index"`
	SortOrder      int       `json:"sort_order" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ValidationCriterion) TableName() string {
	return "validation_criteria"
}

// Prompt 提示词模板
type Prompt struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Key         string    `json:"key" gorm:"type:varchar(100);uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"type:varchar(255)"`
	Description string    `json:"description" gorm:"type:text"`
	Body        string    `json:"body" gorm:"type:text;not null"`
	Version     int       `json:"version" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Prompt) TableName() string {
	return "prompts"
}
