package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
)

// datasetRepository 数据集仓库
type datasetRepository struct {
	db *gorm.DB
}

// Create 创建数据集
func (r *datasetRepository) Create(ctx context.Context, dataset *model.Dataset) error {
	return r.db.WithContext(ctx).Create(dataset).Error
}

// CreateWithQueries 在同一事务内创建数据集与查询
func (r *datasetRepository) CreateWithQueries(ctx context.Context, dataset *model.Dataset, queries []*model.Query) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dataset).Error; err != nil {
			return err
		}
		if len(queries) == 0 {
			return nil
		}
		for _, q := range queries {
			q.DatasetID = dataset.ID
		}
		return tx.Create(&queries).Error
	})
}

// GetByID 根据ID获取数据集
func (r *datasetRepository) GetByID(ctx context.Context, id uint) (*model.Dataset, error) {
	var dataset model.Dataset
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dataset).Error; err != nil {
		return nil, translate(err)
	}
	return &dataset, nil
}

// List 列出数据集，最新优先
func (r *datasetRepository) List(ctx context.Context) ([]*model.Dataset, error) {
	var datasets []*model.Dataset
	err := r.db.WithContext(ctx).Order("id DESC").Find(&datasets).Error
	return datasets, err
}

// Update 更新数据集字段
func (r *datasetRepository) Update(ctx context.Context, id uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return affected(r.db.WithContext(ctx).Model(&model.Dataset{}).Where("id = ?", id).Updates(updates))
}

// Delete 删除数据集
func (r *datasetRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var runIDs []uint
		if err := tx.Model(&model.Run{}).Where("dataset_id = ?", id).Pluck("id", &runIDs).Error; err != nil {
			return err
		}
		if err := deleteRunDependents(tx, runIDs); err != nil {
			return err
		}
		if err := tx.Where("dataset_id = ?", id).Delete(&model.Run{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dataset_id = ?", id).Delete(&model.Query{}).Error; err != nil {
			return err
		}
		return affected(tx.Delete(&model.Dataset{}, "id = ?", id))
	})
}

// ========== 查询操作 ==========

// queryRepository 查询仓库
type queryRepository struct {
	db *gorm.DB
}

// Create 创建查询
func (r *queryRepository) Create(ctx context.Context, query *model.Query) error {
	return r.db.WithContext(ctx).Create(query).Error
}

// CreateBatch 批量创建查询
func (r *queryRepository) CreateBatch(ctx context.Context, queries []*model.Query) error {
	if len(queries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&queries).Error
}

// GetByID 根据ID获取查询
func (r *queryRepository) GetByID(ctx context.Context, id uint) (*model.Query, error) {
	var q model.Query
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, translate(err)
	}
	return &q, nil
}

// ListByDataset 获取数据集的全部查询
func (r *queryRepository) ListByDataset(ctx context.Context, datasetID uint) ([]*model.Query, error) {
	var queries []*model.Query
	err := r.db.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("sort_order ASC").Order("id ASC").
		Find(&queries).Error
	return queries, err
}

// ListForExecution 获取回放用的查询列表
func (r *queryRepository) ListForExecution(ctx context.Context, datasetID uint, limit int) ([]*model.Query, error) {
	var queries []*model.Query
	db := r.db.WithContext(ctx).Where("dataset_id = ?", datasetID).Order("id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&queries).Error
	return queries, err
}

// CountByDataset 统计数据集查询数
func (r *queryRepository) CountByDataset(ctx context.Context, datasetID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Query{}).Where("dataset_id = ?", datasetID).Count(&count).Error
	return count, err
}

// NextSortOrder 返回新查询的排序位置
func (r *queryRepository) NextSortOrder(ctx context.Context, datasetID uint) (int, error) {
	var maxOrder sql.NullInt64
	err := r.db.WithContext(ctx).Model(&model.Query{}).
		Where("dataset_id = ?", datasetID).
		Select("MAX(sort_order)").
		Row().Scan(&maxOrder)
	if err != nil {
		return 0, err
	}
	if !maxOrder.Valid {
		return 0, nil
	}
	return int(maxOrder.Int64) + 1, nil
}

// Save 保存查询
func (r *queryRepository) Save(ctx context.Context, query *model.Query) error {
	return r.db.WithContext(ctx).Save(query).Error
}

// UpdateMeta 更新查询注解
func (r *queryRepository) UpdateMeta(ctx context.Context, id uint, meta model.JSON) error {
	return affected(r.db.WithContext(ctx).Model(&model.Query{}).Where("id = ?", id).Update("meta", meta))
}

// Reorder 重新排序
func (r *queryRepository) Reorder(ctx context.Context, datasetID uint, ids []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			res := tx.Model(&model.Query{}).
				Where("id = ? AND dataset_id = ?", id, datasetID).
				Update("sort_order", i)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("query %d not in dataset %d: %w", id, datasetID, ErrNotFound)
			}
		}
		return nil
	})
}

// GetByIDs 批量获取查询
func (r *queryRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]*model.Query, error) {
	result := make(map[uint]*model.Query, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var queries []*model.Query
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&queries).Error; err != nil {
		return nil, err
	}
	for _, q := range queries {
		result[q.ID] = q
	}
	return result, nil
}
