// Package dataset 管理数据集与查询，并通过 LLM 将转录解析为测试用例
package dataset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	dbmodel "github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/file"
)

var (
	// ErrDatasetNotFound 数据集不存在
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrQueryNotFound 查询不存在或不属于该数据集
	ErrQueryNotFound = errors.New("query not found")
	// ErrInvalidInput 参数无效
	ErrInvalidInput = errors.New("invalid input")
	// ErrPromptMissing 缺少提示词模板
	ErrPromptMissing = errors.New("prompt template missing")
	// ErrDatasetBusy 数据集仍有运行在执行或校验
	ErrDatasetBusy = errors.New("dataset has a busy run")
)

// RunLocker 运行级互斥锁
type RunLocker interface {
	TryLock(ctx context.Context, runID uint) (bool, error)
	Unlock(ctx context.Context, runID uint) error
}

// Service 数据集服务
type Service struct {
	repo      *repository.Repositories
	chatModel model.BaseChatModel
	files     *file.Service
	locks     RunLocker
	cfg       config.ParserConfig
	logger    *zap.Logger
}

// NewService 创建数据集服务
func NewService(repo *repository.Repositories, chatModel model.BaseChatModel, files *file.Service, cfg config.ParserConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		chatModel: chatModel,
		files:     files,
		cfg:       cfg,
		logger:    logger.Named("dataset"),
	}
}

// WithRunLocks 删除数据集前检查其运行是否被占用
func (s *Service) WithRunLocks(locks RunLocker) *Service {
	s.locks = locks
	return s
}

// QueryInput 手工导入的查询
type QueryInput struct {
	Query        string  `json:"query" binding:"required"`
	Expectations *string `json:"expectations"`
}

// CreateDatasetRequest 手工创建数据集请求
type CreateDatasetRequest struct {
	Name           string       `json:"name" binding:"required"`
	SystemBehavior *string      `json:"system_behavior"`
	Queries        []QueryInput `json:"queries"`
}

// UpdateDatasetRequest 更新数据集请求
type UpdateDatasetRequest struct {
	Name           *string `json:"name"`
	SystemBehavior *string `json:"system_behavior"`
}

// UpdateQueryRequest 更新查询请求
type UpdateQueryRequest struct {
	QueryText    *string `json:"query_text"`
	Expectations *string `json:"expectations"`
}

// DatasetWithQueries 数据集及其有序查询
type DatasetWithQueries struct {
	*dbmodel.Dataset
	Queries []*dbmodel.Query `json:"queries"`
}

// CreateDataset 手工创建数据集
func (s *Service) CreateDataset(ctx context.Context, req *CreateDatasetRequest) (*DatasetWithQueries, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	queries, err := buildQueries(req.Queries, 0)
	if err != nil {
		return nil, err
	}

	ds := &dbmodel.Dataset{Name: name, SourceType: "manual", SystemBehavior: trimmedPtr(req.SystemBehavior)}
	if err := s.repo.Datasets.CreateWithQueries(ctx, ds, queries); err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}
	return &DatasetWithQueries{Dataset: ds, Queries: queries}, nil
}

// ListDatasets 列出数据集
func (s *Service) ListDatasets(ctx context.Context) ([]*dbmodel.Dataset, error) {
	datasets, err := s.repo.Datasets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return datasets, nil
}

// GetDataset 获取数据集及其查询（按 sort_order, id 排序）
func (s *Service) GetDataset(ctx context.Context, id uint) (*DatasetWithQueries, error) {
	ds, err := s.dataset(ctx, id)
	if err != nil {
		return nil, err
	}
	queries, err := s.repo.Queries.ListByDataset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	return &DatasetWithQueries{Dataset: ds, Queries: queries}, nil
}

// UpdateDataset 更新名称与系统行为
func (s *Service) UpdateDataset(ctx context.Context, id uint, req *UpdateDatasetRequest) (*dbmodel.Dataset, error) {
	if _, err := s.dataset(ctx, id); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.SystemBehavior != nil {
		updates["system_behavior"] = trimmedPtr(req.SystemBehavior)
	}
	if len(updates) > 0 {
		if err := s.repo.Datasets.Update(ctx, id, updates); err != nil {
			return nil, fmt.Errorf("failed to update dataset: %w", err)
		}
	}
	return s.dataset(ctx, id)
}

// DeleteDataset 级联删除数据集，任一运行被占用时拒绝
func (s *Service) DeleteDataset(ctx context.Context, id uint) error {
	release, err := s.lockRuns(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if err := s.repo.Datasets.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrDatasetNotFound, id)
		}
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return nil
}

// lockRuns 锁住数据集的全部运行，返回释放函数
func (s *Service) lockRuns(ctx context.Context, datasetID uint) (func(), error) {
	var held []uint
	release := func() {
		for _, runID := range held {
			if err := s.locks.Unlock(context.Background(), runID); err != nil {
				s.logger.Warn("failed to release run lock", zap.Uint("run_id", runID), zap.Error(err))
			}
		}
	}
	if s.locks == nil {
		return release, nil
	}

	ids, err := s.repo.Runs.ListIDsByDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	for _, runID := range ids {
		ok, err := s.locks.TryLock(ctx, runID)
		if err != nil || !ok {
			release()
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: run %d", ErrDatasetBusy, runID)
		}
		held = append(held, runID)
	}
	return release, nil
}

// ========== 查询操作 ==========

// ImportQueries 追加导入查询，排序位置接在已有查询之后
func (s *Service) ImportQueries(ctx context.Context, datasetID uint, items []QueryInput) ([]*dbmodel.Query, error) {
	if _, err := s.dataset(ctx, datasetID); err != nil {
		return nil, err
	}
	next, err := s.repo.Queries.NextSortOrder(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute sort order: %w", err)
	}
	queries, err := buildQueries(items, next)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return queries, nil
	}
	for _, q := range queries {
		q.DatasetID = datasetID
	}
	if err := s.repo.Queries.CreateBatch(ctx, queries); err != nil {
		return nil, fmt.Errorf("failed to import queries: %w", err)
	}
	return queries, nil
}

// CreateQuery 在末尾追加一条查询
func (s *Service) CreateQuery(ctx context.Context, datasetID uint, in QueryInput) (*dbmodel.Query, error) {
	queries, err := s.ImportQueries(ctx, datasetID, []QueryInput{in})
	if err != nil {
		return nil, err
	}
	return queries[0], nil
}

// UpdateQuery 更新查询；文本或期望变化时清除清晰度注解
func (s *Service) UpdateQuery(ctx context.Context, datasetID, queryID uint, req *UpdateQueryRequest) (*dbmodel.Query, error) {
	if _, err := s.dataset(ctx, datasetID); err != nil {
		return nil, err
	}
	q, err := s.repo.Queries.GetByID(ctx, queryID)
	if err != nil || q.DatasetID != datasetID {
		if err == nil || errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrQueryNotFound, queryID)
		}
		return nil, fmt.Errorf("failed to load query: %w", err)
	}

	if req.QueryText != nil {
		if strings.TrimSpace(*req.QueryText) == "" {
			return nil, fmt.Errorf("%w: query_text must not be empty", ErrInvalidInput)
		}
		q.QueryText = *req.QueryText
	}
	if req.Expectations != nil {
		q.Expectations = req.Expectations
	}
	if req.QueryText != nil || req.Expectations != nil {
		q.Meta = clearAnnotations(q.Meta)
	}

	if err := s.repo.Queries.Save(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to update query: %w", err)
	}
	return q, nil
}

// ReorderQueries 按列表顺序重排，未列出的查询保持原位置
func (s *Service) ReorderQueries(ctx context.Context, datasetID uint, ids []uint) (*DatasetWithQueries, error) {
	if _, err := s.dataset(ctx, datasetID); err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		if err := s.repo.Queries.Reorder(ctx, datasetID, ids); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: %v", ErrQueryNotFound, err)
			}
			return nil, fmt.Errorf("failed to reorder queries: %w", err)
		}
	}
	return s.GetDataset(ctx, datasetID)
}

func (s *Service) dataset(ctx context.Context, id uint) (*dbmodel.Dataset, error) {
	ds, err := s.repo.Datasets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrDatasetNotFound, id)
		}
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return ds, nil
}

func buildQueries(items []QueryInput, start int) ([]*dbmodel.Query, error) {
	queries := make([]*dbmodel.Query, 0, len(items))
	for i, item := range items {
		text := strings.TrimSpace(item.Query)
		if text == "" {
			return nil, fmt.Errorf("%w: query %d is empty", ErrInvalidInput, i+1)
		}
		queries = append(queries, &dbmodel.Query{
			QueryText:    text,
			Expectations: trimmedPtr(item.Expectations),
			SortOrder:    start + i,
		})
	}
	return queries, nil
}

func clearAnnotations(meta dbmodel.JSON) dbmodel.JSON {
	if meta == nil {
		return nil
	}
	out := make(dbmodel.JSON, len(meta))
	for k, v := range meta {
		if k == dbmodel.MetaExpectationsClear || k == dbmodel.MetaExpectationsFeedback {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
