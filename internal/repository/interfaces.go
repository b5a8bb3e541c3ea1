// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
)

// ========== DatasetRepository 接口 ==========

// DatasetRepository 数据集数据访问接口
type DatasetRepository interface {
	Create(ctx context.Context, dataset *model.Dataset) error
	CreateWithQueries(ctx context.Context, dataset *model.Dataset, queries []*model.Query) error
	GetByID(ctx context.Context, id uint) (*model.Dataset, error)
	List(ctx context.Context) ([]*model.Dataset, error)
	Update(ctx context.Context, id uint, updates map[string]any) error
	// Delete 级联删除查询、运行及其全部派生数据
	Delete(ctx context.Context, id uint) error
}

var _ DatasetRepository = (*datasetRepository)(nil)

// ========== QueryRepository 接口 ==========

// QueryRepository 查询数据访问接口
type QueryRepository interface {
	Create(ctx context.Context, query *model.Query) error
	CreateBatch(ctx context.Context, queries []*model.Query) error
	GetByID(ctx context.Context, id uint) (*model.Query, error)
	// ListByDataset 按 sort_order, id 排序
	ListByDataset(ctx context.Context, datasetID uint) ([]*model.Query, error)
	// ListForExecution 按 id 升序，limit <= 0 表示不限
	ListForExecution(ctx context.Context, datasetID uint, limit int) ([]*model.Query, error)
	CountByDataset(ctx context.Context, datasetID uint) (int64, error)
	NextSortOrder(ctx context.Context, datasetID uint) (int, error)
	Save(ctx context.Context, query *model.Query) error
	UpdateMeta(ctx context.Context, id uint, meta model.JSON) error
	// Reorder 按列表顺序设置 sort_order 为 0..n-1，未列出的查询保持不变
	Reorder(ctx context.Context, datasetID uint, ids []uint) error
	GetByIDs(ctx context.Context, ids []uint) (map[uint]*model.Query, error)
}

var _ QueryRepository = (*queryRepository)(nil)

// ========== RunRepository 接口 ==========

// RunRepository 运行数据访问接口
type RunRepository interface {
	Create(ctx context.Context, run *model.Run) error
	GetByID(ctx context.Context, id uint) (*model.Run, error)
	List(ctx context.Context) ([]*model.Run, error)
	ListCompletedWithValidations(ctx context.Context) ([]*model.Run, error)
	// ListIDsByDataset 返回数据集下全部运行 id
	ListIDsByDataset(ctx context.Context, datasetID uint) ([]uint, error)
	// ListStale 列出执行或校验状态停留在 running 的运行
	ListStale(ctx context.Context) ([]*model.Run, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	// ResetExecution 清除上一次执行的回放、判定与批次记录
	ResetExecution(ctx context.Context, id uint) error
	// Delete 级联删除回放、判定与批次记录
	Delete(ctx context.Context, id uint) error
}

var _ RunRepository = (*runRepository)(nil)

// ========== MessageResponseRepository 接口 ==========

// ResponsePair 回放结果与其查询
type ResponsePair struct {
	Response *model.MessageResponse
	Query    *model.Query
}

// MessageResponseRepository 回放结果数据访问接口
type MessageResponseRepository interface {
	Create(ctx context.Context, resp *model.MessageResponse) error
	ListByRun(ctx context.Context, runID uint) ([]*model.MessageResponse, error)
	CountByRun(ctx context.Context, runID uint) (int64, error)
	// ListPairsByRun 按回放结果 id 升序返回，忽略查询已不存在的结果
	ListPairsByRun(ctx context.Context, runID uint) ([]ResponsePair, error)
}

var _ MessageResponseRepository = (*messageResponseRepository)(nil)

// ========== ValidationRepository 接口 ==========

// ValidationRepository 判定数据访问接口
type ValidationRepository interface {
	// SaveWindow 在同一事务内写入一个窗口的判定与批次记录
	SaveWindow(ctx context.Context, batch *model.RunValidationBatch, validations []*model.Validation) error
	ListByRun(ctx context.Context, runID uint) ([]*model.Validation, error)
	ListByResponseAndCriterion(ctx context.Context, runID, messageResponseID uint, criterionKey string) ([]*model.Validation, error)
	UpdateDetails(ctx context.Context, id uint, details model.ValidationDetails) error
	CountByRun(ctx context.Context, runID uint) (int64, error)
	ListBatchesByRun(ctx context.Context, runID uint) ([]*model.RunValidationBatch, error)
}

var _ ValidationRepository = (*validationRepository)(nil)

// ========== CriterionRepository 接口 ==========

// CriterionRepository 校验标准数据访问接口
type CriterionRepository interface {
	// List 按 sort_order, id 排序
	List(ctx context.Context, activeOnly bool) ([]*model.ValidationCriterion, error)
	GetByKey(ctx context.Context, key string) (*model.ValidationCriterion, error)
	GetByKeys(ctx context.Context, keys []string) ([]*model.ValidationCriterion, error)
	Create(ctx context.Context, c *model.ValidationCriterion) error
	Save(ctx context.Context, c *model.ValidationCriterion) error
}

var _ CriterionRepository = (*criterionRepository)(nil)

// ========== PromptRepository 接口 ==========

// PromptRepository 提示词模板数据访问接口
type PromptRepository interface {
	List(ctx context.Context) ([]*model.Prompt, error)
	GetByKey(ctx context.Context, key string) (*model.Prompt, error)
	Create(ctx context.Context, p *model.Prompt) error
	Save(ctx context.Context, p *model.Prompt) error
}

var _ PromptRepository = (*promptRepository)(nil)

// ========== FileRepository 接口 ==========

// FileRepository 上传文件记录数据访问接口
type FileRepository interface {
	Create(ctx context.Context, file *model.UploadedFile) error
	GetByID(ctx context.Context, id string) (*model.UploadedFile, error)
	Delete(ctx context.Context, id string) error
}

var _ FileRepository = (*fileRepository)(nil)
