package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
)

// ErrRunNotFound 运行不存在
var ErrRunNotFound = errors.New("run not found")

// Service 报告服务
type Service struct {
	repo *repository.Repositories
}

// NewService 创建报告服务
func NewService(repo *repository.Repositories) *Service {
	return &Service{repo: repo}
}

// RunReport 运行汇总报告
func (s *Service) RunReport(ctx context.Context, runID uint) (*RunReport, error) {
	run, err := s.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.Responses.CountByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count responses: %w", err)
	}
	validations, err := s.repo.Validations.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list validations: %w", err)
	}
	return BuildRunReport(run, int(count), validations), nil
}

// DeepAnalysis 逐条回放的判定明细
func (s *Service) DeepAnalysis(ctx context.Context, runID uint) (*DeepAnalysis, error) {
	run, err := s.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	pairs, err := s.repo.Responses.ListPairsByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	validations, err := s.repo.Validations.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list validations: %w", err)
	}

	keys := make([]string, 0)
	seen := make(map[string]bool)
	for _, v := range validations {
		if !seen[v.CriterionKey] {
			seen[v.CriterionKey] = true
			keys = append(keys, v.CriterionKey)
		}
	}
	names := make(map[string]string, len(keys))
	if len(keys) > 0 {
		criteria, err := s.repo.Criteria.GetByKeys(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("failed to load criteria: %w", err)
		}
		for _, c := range criteria {
			names[c.Key] = c.Name
		}
	}
	return BuildDeepAnalysis(run, pairs, validations, names), nil
}

// CharacterTimeline 运行的角色时间线
func (s *Service) CharacterTimeline(ctx context.Context, runID uint) (*CharacterTimeline, error) {
	run, err := s.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	pairs, err := s.repo.Responses.ListPairsByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	return BuildCharacterTimeline(run, pairs), nil
}

func (s *Service) loadRun(ctx context.Context, runID uint) (*model.Run, error) {
	run, err := s.repo.Runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}
