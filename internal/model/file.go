package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UploadedFile 归档的转录上传文件
type UploadedFile struct {
	ID          string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	FileName    string    `json:"file_name" gorm:"type:varchar(255)"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type" gorm:"type:varchar(255)"`
	StorageType string    `json:"storage_type" gorm:"type:varchar(20)"` // local, minio
	FilePath    string    `json:"file_path" gorm:"type:varchar(512)"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (UploadedFile) TableName() string {
	return "uploaded_files"
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (f *UploadedFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
