package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
)

// criterionRepository 校验标准仓库
type criterionRepository struct {
	db *gorm.DB
}

// List 列出校验标准
func (r *criterionRepository) List(ctx context.Context, activeOnly bool) ([]*model.ValidationCriterion, error) {
	var criteria []*model.ValidationCriterion
	db := r.db.WithContext(ctx)
	if activeOnly {
		db = db.Where("is_active = ?", true)
	}
	err := db.Order("sort_order ASC").Order("id ASC").Find(&criteria).Error
	return criteria, err
}

// GetByKey 根据 key 获取
func (r *criterionRepository) GetByKey(ctx context.Context, key string) (*model.ValidationCriterion, error) {
	var c model.ValidationCriterion
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// GetByKeys 批量获取，结果顺序不保证
func (r *criterionRepository) GetByKeys(ctx context.Context, keys []string) ([]*model.ValidationCriterion, error) {
	var criteria []*model.ValidationCriterion
	if len(keys) == 0 {
		return criteria, nil
	}
	err := r.db.WithContext(ctx).Where("key IN ?", keys).Find(&criteria).Error
	return criteria, err
}

// Create 创建校验标准
func (r *criterionRepository) Create(ctx context.Context, c *model.ValidationCriterion) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// Save 保存校验标准
func (r *criterionRepository) Save(ctx context.Context, c *model.ValidationCriterion) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// ========== 提示词操作 ==========

// promptRepository 提示词仓库
type promptRepository struct {
	db *gorm.DB
}

// List 按 key 列出提示词
func (r *promptRepository) List(ctx context.Context) ([]*model.Prompt, error) {
	var prompts []*model.Prompt
	err := r.db.WithContext(ctx).Order("key ASC").Find(&prompts).Error
	return prompts, err
}

// GetByKey 根据 key 获取
func (r *promptRepository) GetByKey(ctx context.Context, key string) (*model.Prompt, error) {
	var p model.Prompt
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// Create 创建提示词
func (r *promptRepository) Create(ctx context.Context, p *model.Prompt) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Save 保存提示词
func (r *promptRepository) Save(ctx context.Context, p *model.Prompt) error {
	return r.db.WithContext(ctx).Save(p).Error
}
