package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
)

// fileRepository 上传文件仓库
type fileRepository struct {
	db *gorm.DB
}

// Create 创建文件记录
func (r *fileRepository) Create(ctx context.Context, file *model.UploadedFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

// GetByID 根据ID获取文件
func (r *fileRepository) GetByID(ctx context.Context, id string) (*model.UploadedFile, error) {
	var file model.UploadedFile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error; err != nil {
		return nil, translate(err)
	}
	return &file, nil
}

// Delete 删除文件记录
func (r *fileRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.UploadedFile{}, "id = ?", id).Error
}
