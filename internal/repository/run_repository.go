package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
)

// runRepository 运行仓库
type runRepository struct {
	db *gorm.DB
}

// Create 创建运行
func (r *runRepository) Create(ctx context.Context, run *model.Run) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByID 根据ID获取运行
func (r *runRepository) GetByID(ctx context.Context, id uint) (*model.Run, error) {
	var run model.Run
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, translate(err)
	}
	return &run, nil
}

// List 列出运行，最新优先
func (r *runRepository) List(ctx context.Context) ([]*model.Run, error) {
	var runs []*model.Run
	err := r.db.WithContext(ctx).Order("id DESC").Find(&runs).Error
	return runs, err
}

// ListCompletedWithValidations 列出已完成且存在判定的运行
func (r *runRepository) ListCompletedWithValidations(ctx context.Context) ([]*model.Run, error) {
	var runs []*model.Run
	err := r.db.WithContext(ctx).
		Where("status = ?", model.RunStatusCompleted).
		Where("EXISTS (SELECT 1 FROM validations WHERE validations.run_id = runs.id)").
		Order("id ASC").
		Find(&runs).Error
	return runs, err
}

// ListIDsByDataset 列出数据集的运行 id
func (r *runRepository) ListIDsByDataset(ctx context.Context, datasetID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Run{}).
		Where("dataset_id = ?", datasetID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// ListStale 列出停留在 running 的运行
func (r *runRepository) ListStale(ctx context.Context) ([]*model.Run, error) {
	var runs []*model.Run
	err := r.db.WithContext(ctx).
		Where("status = ? OR validation_status = ?", model.RunStatusRunning, model.ValidationStatusRunning).
		Order("id ASC").
		Find(&runs).Error
	return runs, err
}

// UpdateFields 更新运行字段
func (r *runRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	return affected(r.db.WithContext(ctx).Model(&model.Run{}).Where("id = ?", id).Updates(fields))
}

// ResetExecution 重置执行数据
func (r *runRepository) ResetExecution(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteRunDependents(tx, []uint{id}); err != nil {
			return err
		}
		return affected(tx.Model(&model.Run{}).Where("id = ?", id).Updates(map[string]any{
			"processed_count":   0,
			"validation_status": nil,
			"completed_at":      nil,
		}))
	})
}

// Delete 删除运行
func (r *runRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteRunDependents(tx, []uint{id}); err != nil {
			return err
		}
		return affected(tx.Delete(&model.Run{}, "id = ?", id))
	})
}

// ========== 回放结果操作 ==========

// messageResponseRepository 回放结果仓库
type messageResponseRepository struct {
	db *gorm.DB
}

// Create 创建回放结果
func (r *messageResponseRepository) Create(ctx context.Context, resp *model.MessageResponse) error {
	return r.db.WithContext(ctx).Create(resp).Error
}

// ListByRun 获取运行的全部回放结果
func (r *messageResponseRepository) ListByRun(ctx context.Context, runID uint) ([]*model.MessageResponse, error) {
	var responses []*model.MessageResponse
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("id ASC").Find(&responses).Error
	return responses, err
}

// CountByRun 统计运行的回放结果数
func (r *messageResponseRepository) CountByRun(ctx context.Context, runID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.MessageResponse{}).Where("run_id = ?", runID).Count(&count).Error
	return count, err
}

// ListPairsByRun 获取回放结果及其查询
func (r *messageResponseRepository) ListPairsByRun(ctx context.Context, runID uint) ([]ResponsePair, error) {
	responses, err := r.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, nil
	}

	queryIDs := make([]uint, 0, len(responses))
	for _, resp := range responses {
		queryIDs = append(queryIDs, resp.QueryID)
	}
	var queries []*model.Query
	if err := r.db.WithContext(ctx).Where("id IN ?", queryIDs).Find(&queries).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]*model.Query, len(queries))
	for _, q := range queries {
		byID[q.ID] = q
	}

	pairs := make([]ResponsePair, 0, len(responses))
	for _, resp := range responses {
		q, ok := byID[resp.QueryID]
		if !ok {
			continue
		}
		pairs = append(pairs, ResponsePair{Response: resp, Query: q})
	}
	return pairs, nil
}
