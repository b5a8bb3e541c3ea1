package model

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// RunStatus 运行执行状态
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ValidationStatus 运行校验状态，未开始校验时为 nil
type ValidationStatus string

const (
	ValidationStatusRunning   ValidationStatus = "running"
	ValidationStatusCompleted ValidationStatus = "completed"
	ValidationStatusFailed    ValidationStatus = "failed"
)

// Run 一次数据集回放
type Run struct {
	ID                 uint              `json:"id" gorm:"primaryKey"`
	DatasetID          uint              `json:"dataset_id" gorm:"not null;index"`
	Name               string            `json:"name" gorm:"type:varchar(255)"`
	APIURL             string            `json:"api_url" gorm:"type:varchar(1024);not null"`
	AuthTokenEncrypted string            `json:"-" gorm:"type:text;not null"`
	NewThread          bool              `json:"new_thread" gorm:"not null"`
	Status             RunStatus         `json:"status" gorm:"type:varchar(20);not null;index"`
	ValidationStatus   *ValidationStatus `json:"validation_status" gorm:"type:varchar(20)"`
	TotalQueries       int               `json:"total_queries" gorm:"not null"`
	ProcessedCount     int               `json:"processed_count" gorm:"not null"`
	Config             RunConfig         `json:"config"`
	StartedAt          *time.Time        `json:"started_at,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// TableName 指定表名
func (Run) TableName() string {
	return "runs"
}

// CanExecute 仅 pending 或 failed 的运行可以（重新）执行
func (r *Run) CanExecute() bool {
	return r.Status == RunStatusPending || r.Status == RunStatusFailed
}

// RunConfig 运行配置
// CriterionKeys 为 nil 表示使用全部启用的标准，空切片表示不校验任何标准
type RunConfig struct {
	QueryLimit    *int     `json:"query_limit,omitempty"`
	CriterionKeys []string `json:"criterion_keys"`
}

// Value 实现 driver.Valuer 接口
func (c RunConfig) Value() (driver.Value, error) {
	return marshalColumn(c)
}

// Scan 实现 sql.Scanner 接口
func (c *RunConfig) Scan(value interface{}) error {
	if value == nil {
		*c = RunConfig{}
		return nil
	}
	return unmarshalColumn(value, c)
}

// GormDataType 通用数据类型
func (RunConfig) GormDataType() string {
	return "json"
}

// GormDBDataType 按方言选择列类型
func (RunConfig) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db)
}

// MessageResponse 一次运行中单条查询的回放结果
type MessageResponse struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	RunID          uint      `json:"run_id" gorm:"not null;index"`
	QueryID        uint      `json:"query_id" gorm:"not null;index"`
	RequestMessage string    `json:"request_message" gorm:"type:text;not null"`
	ResponseText   *string   `json:"response_text" gorm:"type:text"`
	RawChunks      RawChunks `json:"raw_chunks"`
	Error          *string   `json:"error" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName 指定表名
func (MessageResponse) TableName() string {
	return "message_responses"
}

// ResponsePayload 校验与展示使用的响应载荷：优先终止块，其次最终文本
func (m *MessageResponse) ResponsePayload() any {
	if m.RawChunks.LastChunk != nil {
		return m.RawChunks.LastChunk
	}
	if m.ResponseText != nil {
		return *m.ResponseText
	}
	return ""
}

// TimelineEntry 带角色标记的流式片段
type TimelineEntry struct {
	Order  int    `json:"order"`
	Avatar string `json:"avatar"`
	Text   string `json:"text,omitempty"`
}

// RawChunks 回放时捕获的结构化数据
type RawChunks struct {
	LastChunk    map[string]any  `json:"last_chunk,omitempty"`
	StreamChunks []TimelineEntry `json:"stream_chunks,omitempty"`
}

// IsZero 是否未捕获任何结构化数据
func (r RawChunks) IsZero() bool {
	return r.LastChunk == nil && len(r.StreamChunks) == 0
}

// Value 实现 driver.Valuer 接口，空值存为 NULL
func (r RawChunks) Value() (driver.Value, error) {
	if r.IsZero() {
		return nil, nil
	}
	return marshalColumn(r)
}

// Scan 实现 sql.Scanner 接口
func (r *RawChunks) Scan(value interface{}) error {
	*r = RawChunks{}
	if value == nil {
		return nil
	}
	return unmarshalColumn(value, r)
}

// GormDataType 通用数据类型
func (RawChunks) GormDataType() string {
	return "json"
}

// GormDBDataType 按方言选择列类型
func (RawChunks) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db)
}
