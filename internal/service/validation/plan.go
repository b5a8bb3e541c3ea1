package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
)

var (
	// ErrRunNotFound 运行不存在
	ErrRunNotFound = errors.New("run not found")
	// ErrRunNotCompleted 运行尚未执行完成
	ErrRunNotCompleted = errors.New("run is not completed")
	// ErrTemplateMissing 缺少校验模板
	ErrTemplateMissing = errors.New("validation prompt template missing")
)

// Call 一次 (标准, 窗口) 的 LLM 调用
type Call struct {
	Criterion *model.ValidationCriterion
	Window    Window
	Prompt    Prompt
}

// Plan 一次校验的完整调用计划
type Plan struct {
	Run      *model.Run
	Criteria []*model.ValidationCriterion
	Pairs    []repository.ResponsePair
	Calls    []Call
}

// Planner 生成校验计划，校验器与估算器共用
type Planner struct {
	repo *repository.Repositories
	cfg  config.ValidationConfig
}

// NewPlanner 创建计划生成器
func NewPlanner(repo *repository.Repositories, cfg config.ValidationConfig) *Planner {
	return &Planner{repo: repo, cfg: cfg}
}

// Plan 加载运行数据并组装全部提示
// 运行不存在、未完成或缺少模板时返回错误
func (p *Planner) Plan(ctx context.Context, runID uint) (*Plan, error) {
	run, err := p.repo.Runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run.Status != model.RunStatusCompleted {
		return nil, fmt.Errorf("%w: run %d is %s", ErrRunNotCompleted, runID, run.Status)
	}

	plan := &Plan{Run: run}

	pairs, err := p.repo.Responses.ListPairsByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}
	plan.Pairs = pairs

	criteria, err := ResolveCriteria(ctx, p.repo.Criteria, run.Config.CriterionKeys)
	if err != nil {
		return nil, err
	}
	plan.Criteria = criteria

	if len(pairs) == 0 || len(criteria) == 0 {
		return plan, nil
	}

	defaultTemplate, err := p.repo.Prompts.GetByKey(ctx, DefaultTemplateKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, DefaultTemplateKey)
		}
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	dataset, err := p.repo.Datasets.GetByID(ctx, run.DatasetID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	reference, err := p.optionalPrompt(ctx, ReferenceKey)
	if err != nil {
		return nil, err
	}
	systemBehavior := SystemBehaviorSection(dataset.BehaviorText(), reference)

	windows := Windows(len(pairs), p.cfg.BatchSize)
	for _, c := range criteria {
		template := defaultTemplate.Body
		if c.PromptKey != "" && c.PromptKey != DefaultTemplateKey {
			if body, err := p.optionalPrompt(ctx, c.PromptKey); err != nil {
				return nil, err
			} else if body != "" {
				template = body
			}
		}
		instruction := BuildInstruction(template, c, systemBehavior)

		for _, w := range windows {
			prompt, err := BuildWindowPrompt(instruction, pairs, w, p.cfg.ContextTurns)
			if err != nil {
				return nil, err
			}
			plan.Calls = append(plan.Calls, Call{Criterion: c, Window: w, Prompt: prompt})
		}
	}
	return plan, nil
}

func (p *Planner) optionalPrompt(ctx context.Context, key string) (string, error) {
	prompt, err := p.repo.Prompts.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load prompt %s: %w", key, err)
	}
	return prompt.Body, nil
}

// ResolveCriteria 解析适用标准
// keys 非 nil 时按调用方顺序返回且跳过未知 key；为 nil 时返回全部启用标准
func ResolveCriteria(ctx context.Context, repo repository.CriterionRepository, keys []string) ([]*model.ValidationCriterion, error) {
	if keys == nil {
		criteria, err := repo.List(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("failed to list criteria: %w", err)
		}
		return criteria, nil
	}

	found, err := repo.GetByKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to load criteria: %w", err)
	}
	byKey := make(map[string]*model.ValidationCriterion, len(found))
	for _, c := range found {
		byKey[c.Key] = c
	}
	ordered := make([]*model.ValidationCriterion, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if c, ok := byKey[k]; ok && !seen[k] {
			ordered = append(ordered, c)
			seen[k] = true
		}
	}
	return ordered, nil
}
