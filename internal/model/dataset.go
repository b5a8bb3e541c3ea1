package model

import (
	"time"
)

// 查询注解键
const (
	MetaExpectationsClear    = "expectations_clear"
	MetaExpectationsFeedback = "expectations_feedback"
)

// Dataset 数据集，查询随数据集级联删除
type Dataset struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"type:varchar(255);not null"`
	SourceType     string    `json:"source_type" gorm:"type:varchar(20)"` // text, file, manual
	SystemBehavior *string   `json:"system_behavior" gorm:"type:text"`
	SourceFileID   *string   `json:"source_file_id,omitempty" gorm:"type:varchar(36)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Dataset) TableName() string {
	return "datasets"
}

// BehaviorText 返回系统行为描述，未设置时为空串
func (d *Dataset) BehaviorText() string {
	if d == nil || d.SystemBehavior == nil {
		return ""
	}
	return *d.SystemBehavior
}

// Query 数据集中的单条查询
type Query struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	DatasetID    uint      `json:"dataset_id" gorm:"not null;index"`
	QueryText    string    `json:"query_text" gorm:"type:text;not null"`
	Expectations *string   `json:"expectations" gorm:"type:text"`
	SortOrder    int       `json:"sort_order" gorm:"not null;index"`
	Meta         JSON      `json:"meta,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName 指定表名
func (Query) TableName() string {
	return "queries"
}

// ExpectationText 返回期望描述，未设置时为空串
func (q *Query) ExpectationText() string {
	if q == nil || q.Expectations == nil {
		return ""
	}
	return *q.Expectations
}

// ExpectationsClear 清晰度注解，未评估时返回 nil
func (q *Query) ExpectationsClear() *bool {
	if q == nil || q.Meta == nil {
		return nil
	}
	if v, ok := q.Meta[MetaExpectationsClear].(bool); ok {
		return &v
	}
	return nil
}
