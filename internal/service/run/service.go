// Package run 编排运行的创建、后台执行与校验
package run

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/metrics"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/usage"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/validation"
)

const maxQueryLimit = 100000

var (
	// ErrRunNotFound 运行不存在
	ErrRunNotFound = errors.New("run not found")
	// ErrDatasetNotFound 数据集不存在
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrInvalidInput 参数无效
	ErrInvalidInput = errors.New("invalid input")
	// ErrRunBusy 运行正在执行或校验
	ErrRunBusy = errors.New("run is busy")
	// ErrNotRestartable 只有 pending 或 failed 的运行可以重启
	ErrNotRestartable = errors.New("run cannot be restarted")
)

// Executor 回放执行
type Executor interface {
	Execute(ctx context.Context, runID uint) error
}

// Validator 运行校验
type Validator interface {
	ValidateRun(ctx context.Context, runID uint) error
}

// Sealer 加密运行凭证
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// Deps 运行服务依赖
type Deps struct {
	Executor  Executor
	Validator Validator
	Estimator *usage.Estimator
	Overrides *validation.OverrideService
	Sealer    Sealer
	Locks     Locker
}

// Service 运行服务
type Service struct {
	repo   *repository.Repositories
	deps   Deps
	cfg    config.ValidationConfig
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewService 创建运行服务
func NewService(repo *repository.Repositories, deps Deps, cfg config.ValidationConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Locks == nil {
		deps.Locks = NewLockManager(nil, 0)
	}
	return &Service{
		repo:   repo,
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("run"),
	}
}

// CreateRunRequest 创建运行请求
type CreateRunRequest struct {
	Name          string   `json:"name"`
	DatasetID     uint     `json:"dataset_id" binding:"required"`
	APIURL        string   `json:"api_url" binding:"required"`
	AuthToken     string   `json:"auth_token" binding:"required"`
	NewThread     *bool    `json:"new_thread_per_query"`
	QueryLimit    *int     `json:"query_limit"`
	CriterionKeys []string `json:"criterion_keys"`
}

// Progress 执行进度
type Progress struct {
	Processed        int                     `json:"processed"`
	Total            int                     `json:"total"`
	Status           model.RunStatus         `json:"status"`
	Remaining        int                     `json:"remaining"`
	ValidationStatus *model.ValidationStatus `json:"validation_status"`
}

// CreateRun 校验参数、加密凭证并在后台开始执行
func (s *Service) CreateRun(ctx context.Context, req *CreateRunRequest) (*model.Run, error) {
	apiURL, err := normalizeURL(req.APIURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.AuthToken) == "" {
		return nil, fmt.Errorf("%w: auth_token is required", ErrInvalidInput)
	}
	if req.QueryLimit != nil && (*req.QueryLimit < 1 || *req.QueryLimit > maxQueryLimit) {
		return nil, fmt.Errorf("%w: query_limit must be between 1 and %d", ErrInvalidInput, maxQueryLimit)
	}

	if _, err := s.repo.Datasets.GetByID(ctx, req.DatasetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrDatasetNotFound, req.DatasetID)
		}
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	count, err := s.repo.Queries.CountByDataset(ctx, req.DatasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to count queries: %w", err)
	}
	total := int(count)
	if req.QueryLimit != nil {
		total = min(total, *req.QueryLimit)
	}

	sealed, err := s.deps.Sealer.Seal(req.AuthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt auth token: %w", err)
	}

	newThread := true
	if req.NewThread != nil {
		newThread = *req.NewThread
	}
	run := &model.Run{
		DatasetID:          req.DatasetID,
		Name:               strings.TrimSpace(req.Name),
		APIURL:             apiURL,
		AuthTokenEncrypted: sealed,
		NewThread:          newThread,
		Status:             model.RunStatusPending,
		TotalQueries:       total,
		Config:             model.RunConfig{QueryLimit: req.QueryLimit, CriterionKeys: req.CriterionKeys},
	}
	if err := s.repo.Runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	s.logger.Info("run created", zap.Uint("run_id", run.ID), zap.Uint("dataset_id", run.DatasetID), zap.Int("total", total))

	if err := s.dispatch(ctx, run.ID, s.executeAndValidate); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns 按 id 降序列出运行
func (s *Service) ListRuns(ctx context.Context) ([]*model.Run, error) {
	runs, err := s.repo.Runs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun 获取运行
func (s *Service) GetRun(ctx context.Context, id uint) (*model.Run, error) {
	run, err := s.repo.Runs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}

// DeleteRun 级联删除运行，执行或校验中的运行不能删除
func (s *Service) DeleteRun(ctx context.Context, id uint) error {
	if _, err := s.GetRun(ctx, id); err != nil {
		return err
	}
	ok, err := s.deps.Locks.TryLock(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrRunBusy, id)
	}
	defer s.unlock(id)

	if err := s.repo.Runs.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrRunNotFound, id)
		}
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// RestartRun 重新执行 pending 或 failed 的运行
func (s *Service) RestartRun(ctx context.Context, id uint) (*model.Run, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if !run.CanExecute() {
		return nil, fmt.Errorf("%w: status is %s", ErrNotRestartable, run.Status)
	}
	if err := s.dispatch(ctx, id, s.executeAndValidate); err != nil {
		return nil, err
	}
	return run, nil
}

// StartValidation 在后台校验已完成的运行
func (s *Service) StartValidation(ctx context.Context, id uint) (*model.Run, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != model.RunStatusCompleted {
		return nil, fmt.Errorf("%w: status is %s", validation.ErrRunNotCompleted, run.Status)
	}
	if err := s.dispatch(ctx, id, s.validate); err != nil {
		return nil, err
	}
	return run, nil
}

// Progress 获取执行进度
func (s *Service) Progress(ctx context.Context, id uint) (*Progress, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Progress{
		Processed:        run.ProcessedCount,
		Total:            run.TotalQueries,
		Status:           run.Status,
		Remaining:        max(0, run.TotalQueries-run.ProcessedCount),
		ValidationStatus: run.ValidationStatus,
	}, nil
}

// Responses 列出运行的回放结果
func (s *Service) Responses(ctx context.Context, id uint) ([]*model.MessageResponse, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}
	responses, err := s.repo.Responses.ListByRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	return responses, nil
}

// TokenUsage 估算运行校验的 token 用量
func (s *Service) TokenUsage(ctx context.Context, id uint) (*usage.RunUsage, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}
	return s.deps.Estimator.EstimateRun(ctx, id)
}

// PatchValidations 写入人工复核
func (s *Service) PatchValidations(ctx context.Context, id uint, updates []validation.OverrideUpdate) (int, error) {
	n, err := s.deps.Overrides.PatchValidations(ctx, id, updates)
	if errors.Is(err, validation.ErrRunNotFound) {
		return 0, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return n, err
}

// Shutdown 等待后台任务结束
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for run workers: %w", ctx.Err())
	}
}

// RecoverStale 将上次进程遗留的 running 状态标记为 failed，返回处理的运行数
// 仍被其他实例持有锁的运行保持不变
func (s *Service) RecoverStale(ctx context.Context) (int, error) {
	stale, err := s.repo.Runs.ListStale(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale runs: %w", err)
	}

	recovered := 0
	for _, r := range stale {
		ok, err := s.deps.Locks.TryLock(ctx, r.ID)
		if err != nil {
			return recovered, err
		}
		if !ok {
			continue
		}

		fields := map[string]any{}
		if r.Status == model.RunStatusRunning {
			fields["status"] = model.RunStatusFailed
		}
		if r.ValidationStatus != nil && *r.ValidationStatus == model.ValidationStatusRunning {
			fields["validation_status"] = model.ValidationStatusFailed
		}
		err = s.repo.Runs.UpdateFields(ctx, r.ID, fields)
		s.unlock(r.ID)
		if err != nil {
			return recovered, fmt.Errorf("failed to recover run %d: %w", r.ID, err)
		}

		s.logger.Warn("recovered interrupted run", zap.Uint("run_id", r.ID), zap.Any("fields", fields))
		recovered++
	}
	return recovered, nil
}

// ========== 后台任务 ==========

// dispatch 同步获取运行锁后启动后台任务，任务结束时释放
func (s *Service) dispatch(ctx context.Context, runID uint, job func(ctx context.Context, runID uint)) error {
	ok, err := s.deps.Locks.TryLock(ctx, runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrRunBusy, runID)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.unlock(runID)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("run worker panicked", zap.Uint("run_id", runID), zap.Any("panic", r))
				s.markFailed(runID)
			}
		}()
		job(context.Background(), runID)
	}()
	return nil
}

// executeAndValidate 执行回放，成功后按配置自动校验
func (s *Service) executeAndValidate(ctx context.Context, runID uint) {
	if err := s.deps.Executor.Execute(ctx, runID); err != nil {
		s.logger.Error("run execution failed", zap.Uint("run_id", runID), zap.Error(err))
		s.markFailed(runID)
		return
	}
	if !s.cfg.AutoStart {
		return
	}

	run, err := s.repo.Runs.GetByID(ctx, runID)
	if err != nil {
		s.logger.Warn("failed to reload run", zap.Uint("run_id", runID), zap.Error(err))
		return
	}
	// 被跳过的运行不重复校验
	if run.Status == model.RunStatusCompleted && run.ValidationStatus == nil {
		s.validate(ctx, runID)
	}
}

// validate 维护 validation_status 并执行校验
func (s *Service) validate(ctx context.Context, runID uint) {
	log := s.logger.With(zap.Uint("run_id", runID))
	if err := s.setValidationStatus(ctx, runID, model.ValidationStatusRunning); err != nil {
		log.Error("failed to mark validation running", zap.Error(err))
		return
	}

	status := model.ValidationStatusCompleted
	if err := s.deps.Validator.ValidateRun(ctx, runID); err != nil {
		log.Error("validation failed", zap.Error(err))
		status = model.ValidationStatusFailed
	}
	if err := s.setValidationStatus(ctx, runID, status); err != nil {
		log.Error("failed to store validation status", zap.Error(err))
	}
}

func (s *Service) setValidationStatus(ctx context.Context, runID uint, status model.ValidationStatus) error {
	return s.repo.Runs.UpdateFields(ctx, runID, map[string]any{"validation_status": status})
}

// markFailed 强制标记失败
func (s *Service) markFailed(runID uint) {
	if err := s.repo.Runs.UpdateFields(context.Background(), runID, map[string]any{"status": model.RunStatusFailed}); err != nil {
		s.logger.Error("failed to mark run failed", zap.Uint("run_id", runID), zap.Error(err))
		return
	}
	metrics.RunsTotal.WithLabelValues(string(model.RunStatusFailed)).Inc()
}

func (s *Service) unlock(runID uint) {
	if err := s.deps.Locks.Unlock(context.Background(), runID); err != nil {
		s.logger.Warn("failed to release run lock", zap.Uint("run_id", runID), zap.Error(err))
	}
}

func normalizeURL(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", fmt.Errorf("%w: api_url is required", ErrInvalidInput)
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: api_url must start with http:// or https://", ErrInvalidInput)
	}
	return v, nil
}
