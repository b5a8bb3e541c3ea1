// Package usage 估算校验调用的 token 用量与费用
package usage

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/validation"
)

// BatchUsage 单次 (标准, 窗口) 调用的用量
type BatchUsage struct {
	CriterionKey    string `json:"criterion_key"`
	BatchStart      int    `json:"batch_start"`
	BatchSize       int    `json:"batch_size"`
	InputTokens     int    `json:"input_tokens"`
	EstOutputTokens int    `json:"est_output_tokens"`
}

// RunUsage 单个运行的用量汇总
type RunUsage struct {
	RunID                uint         `json:"run_id"`
	RunName              string       `json:"run_name"`
	TotalQueries         int          `json:"total_queries"`
	CriteriaCount        int          `json:"criteria_count"`
	BatchCount           int          `json:"batch_count"`
	TotalInputTokens     int          `json:"total_input_tokens"`
	TotalEstOutputTokens int          `json:"total_est_output_tokens"`
	TotalEstTokens       int          `json:"total_est_tokens"`
	CostUSD              float64      `json:"cost_usd"`
	Tokenizer            string       `json:"tokenizer"`
	BatchDetails         []BatchUsage `json:"batch_details"`
}

// Estimator 用量估算器
type Estimator struct {
	repo      *repository.Repositories
	planner   *validation.Planner
	tokenizer Tokenizer
	cfg       config.ValidationConfig
	pricing   config.PricingConfig
	logger    *zap.Logger
}

// NewEstimator 创建用量估算器
func NewEstimator(repo *repository.Repositories, tokenizer Tokenizer, cfg config.ValidationConfig, pricing config.PricingConfig, logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokenizer == nil {
		tokenizer = DefaultTokenizer(logger)
	}
	return &Estimator{
		repo:      repo,
		planner:   validation.NewPlanner(repo, cfg),
		tokenizer: tokenizer,
		cfg:       cfg,
		pricing:   pricing,
		logger:    logger.Named("usage"),
	}
}

// EstimateRun 估算单个已完成运行的校验用量
func (e *Estimator) EstimateRun(ctx context.Context, runID uint) (*RunUsage, error) {
	plan, err := e.planner.Plan(ctx, runID)
	if err != nil {
		return nil, err
	}
	return e.summarize(plan), nil
}

// EstimateAll 估算所有已完成且已有判定的运行
// 缺少校验模板时返回空列表
func (e *Estimator) EstimateAll(ctx context.Context) ([]*RunUsage, error) {
	runs, err := e.repo.Runs.ListCompletedWithValidations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]*RunUsage, 0, len(runs))
	for _, run := range runs {
		plan, err := e.planner.Plan(ctx, run.ID)
		if err != nil {
			if errors.Is(err, validation.ErrTemplateMissing) {
				e.logger.Warn("validation template missing, skipping estimate")
				return []*RunUsage{}, nil
			}
			return nil, fmt.Errorf("failed to plan run %d: %w", run.ID, err)
		}
		if len(plan.Calls) == 0 {
			continue
		}
		out = append(out, e.summarize(plan))
	}
	return out, nil
}

// Prompts 返回校验器将发送的全部提示
func (e *Estimator) Prompts(ctx context.Context, runID uint) ([]validation.Prompt, error) {
	plan, err := e.planner.Plan(ctx, runID)
	if err != nil {
		return nil, err
	}
	prompts := make([]validation.Prompt, 0, len(plan.Calls))
	for _, call := range plan.Calls {
		prompts = append(prompts, call.Prompt)
	}
	return prompts, nil
}

func (e *Estimator) summarize(plan *validation.Plan) *RunUsage {
	u := &RunUsage{
		RunID:         plan.Run.ID,
		RunName:       plan.Run.Name,
		TotalQueries:  plan.Run.TotalQueries,
		CriteriaCount: len(plan.Criteria),
		Tokenizer:     e.tokenizer.Name(),
		BatchDetails:  make([]BatchUsage, 0, len(plan.Calls)),
	}
	for _, call := range plan.Calls {
		b := BatchUsage{
			CriterionKey:    call.Criterion.Key,
			BatchStart:      call.Window.Start,
			BatchSize:       call.Window.Size(),
			InputTokens:     e.tokenizer.Count(call.Prompt.System) + e.tokenizer.Count(call.Prompt.User),
			EstOutputTokens: call.Window.Size() * e.cfg.EstOutputTokensPerItem,
		}
		u.TotalInputTokens += b.InputTokens
		u.TotalEstOutputTokens += b.EstOutputTokens
		u.BatchDetails = append(u.BatchDetails, b)
	}
	u.BatchCount = len(u.BatchDetails)
	u.TotalEstTokens = u.TotalInputTokens + u.TotalEstOutputTokens
	u.CostUSD = Cost(u.TotalInputTokens, u.TotalEstOutputTokens, e.pricing)
	return u
}

// Cost 按每百万 token 价格计算费用，保留六位小数
func Cost(inputTokens, outputTokens int, pricing config.PricingConfig) float64 {
	cost := float64(inputTokens)*pricing.InputPer1M/1e6 + float64(outputTokens)*pricing.OutputPer1M/1e6
	return math.Round(cost*1e6) / 1e6
}
