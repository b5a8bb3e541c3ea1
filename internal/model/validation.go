package model

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Validation 单条响应在单个标准下的判定
type Validation struct {
	ID                uint              `json:"id" gorm:"primaryKey"`
	RunID             uint              `json:"run_id" gorm:"not null;index"`
	MessageResponseID uint              `json:"message_response_id" gorm:"not null;index"`
	CriterionKey      string            `json:"criterion_key" gorm:"type:varchar(100);not null;index"`
	Passed            bool              `json:"passed" gorm:"not null"`
	Score             *float64          `json:"score" gorm:"type:numeric(5,2)"`
	Details           ValidationDetails `json:"details"`
	CreatedAt         time.Time         `json:"created_at"`
}

// TableName 指定表名
func (Validation) TableName() string {
	return "validations"
}

// EffectivePassed 人工覆盖优先于自动判定
func (v *Validation) EffectivePassed() bool {
	if v.Details.OverridePassed != nil {
		return *v.Details.OverridePassed
	}
	return v.Passed
}

// ValidationDetails 判定详情
type ValidationDetails struct {
	Reason          *string `json:"reason,omitempty"`
	OverridePassed  *bool   `json:"override_passed,omitempty"`
	ReviewerComment *string `json:"reviewer_comment,omitempty"`
}

// Value 实现 driver.Valuer 接口
func (d ValidationDetails) Value() (driver.Value, error) {
	return marshalColumn(d)
}

// Scan 实现 sql.Scanner 接口
func (d *ValidationDetails) Scan(value interface{}) error {
	*d = ValidationDetails{}
	if value == nil {
		return nil
	}
	return unmarshalColumn(value, d)
}

// GormDataType 通用数据类型
func (ValidationDetails) GormDataType() string {
	return "json"
}

// GormDBDataType 按方言选择列类型
func (ValidationDetails) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db)
}

// BatchStatus 校验批次状态
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
)

// RunValidationBatch 单次 LLM 校验调用的审计记录
type RunValidationBatch struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	RunID        uint        `json:"run_id" gorm:"not null;index"`
	BatchIndex   int         `json:"batch_index" gorm:"not null"`
	CriterionKey string      `json:"criterion_key" gorm:"type:varchar(100)"`
	BatchStart   int         `json:"batch_start"`
	BatchSize    int         `json:"batch_size"`
	Status       BatchStatus `json:"status" gorm:"type:varchar(20);not null"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// TableName 指定表名
func (RunValidationBatch) TableName() string {
	return "run_validation_batches"
}
