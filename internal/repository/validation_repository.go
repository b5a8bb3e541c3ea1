package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
)

// validationRepository 判定仓库
type validationRepository struct {
	db *gorm.DB
}

// SaveWindow 写入一个窗口的判定与批次记录
func (r *validationRepository) SaveWindow(ctx context.Context, batch *model.RunValidationBatch, validations []*model.Validation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(validations) > 0 {
			if err := tx.Create(&validations).Error; err != nil {
				return err
			}
		}
		return tx.Create(batch).Error
	})
}

// ListByRun 获取运行的全部判定
func (r *validationRepository) ListByRun(ctx context.Context, runID uint) ([]*model.Validation, error) {
	var validations []*model.Validation
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("id ASC").Find(&validations).Error
	return validations, err
}

// ListByResponseAndCriterion 获取某条回放在某标准下的判定
func (r *validationRepository) ListByResponseAndCriterion(ctx context.Context, runID, messageResponseID uint, criterionKey string) ([]*model.Validation, error) {
	var validations []*model.Validation
	err := r.db.WithContext(ctx).
		Where("run_id = ? AND message_response_id = ? AND criterion_key = ?", runID, messageResponseID, criterionKey).
		Order("id ASC").
		Find(&validations).Error
	return validations, err
}

// UpdateDetails 更新判定详情
func (r *validationRepository) UpdateDetails(ctx context.Context, id uint, details model.ValidationDetails) error {
	return affected(r.db.WithContext(ctx).Model(&model.Validation{}).Where("id = ?", id).Update("details", details))
}

// CountByRun 统计运行的判定数
func (r *validationRepository) CountByRun(ctx context.Context, runID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Validation{}).Where("run_id = ?", runID).Count(&count).Error
	return count, err
}

// ListBatchesByRun 获取运行的批次记录
func (r *validationRepository) ListBatchesByRun(ctx context.Context, runID uint) ([]*model.RunValidationBatch, error) {
	var batches []*model.RunValidationBatch
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("batch_index ASC").Find(&batches).Error
	return batches, err
}
