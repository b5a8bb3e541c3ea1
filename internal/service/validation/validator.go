// Package validation 按标准与窗口批量调用 LLM 校验回放结果
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/metrics"
	dbmodel "github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
)

// Validator 校验器
type Validator struct {
	repo      *repository.Repositories
	planner   *Planner
	chatModel model.BaseChatModel
	logger    *zap.Logger
	now       func() time.Time
}

// NewValidator 创建校验器
func NewValidator(repo *repository.Repositories, chatModel model.BaseChatModel, cfg config.ValidationConfig, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		repo:      repo,
		planner:   NewPlanner(repo, cfg),
		chatModel: chatModel,
		logger:    logger.Named("validator"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ValidateRun 为运行的每条回放在每个适用标准下生成判定
// 前置条件不满足时直接返回错误且不写入任何数据；每个窗口独立提交
func (v *Validator) ValidateRun(ctx context.Context, runID uint) error {
	plan, err := v.planner.Plan(ctx, runID)
	if err != nil {
		return err
	}

	log := v.logger.With(zap.Uint("run_id", runID))
	if len(plan.Calls) == 0 {
		log.Info("nothing to validate", zap.Int("pairs", len(plan.Pairs)), zap.Int("criteria", len(plan.Criteria)))
		return nil
	}
	log.Info("validation started", zap.Int("pairs", len(plan.Pairs)), zap.Int("calls", len(plan.Calls)))

	for i, call := range plan.Calls {
		startedAt := v.now()
		verdicts := v.judge(ctx, call)

		rows := make([]*dbmodel.Validation, 0, len(verdicts))
		for j, verdict := range verdicts {
			pair := plan.Pairs[call.Window.Start+j]
			rows = append(rows, &dbmodel.Validation{
				RunID:             runID,
				MessageResponseID: pair.Response.ID,
				CriterionKey:      call.Criterion.Key,
				Passed:            verdict.Passed,
				Score:             verdict.Score,
				Details:           dbmodel.ValidationDetails{Reason: reasonPtr(verdict.Reason)},
			})
		}

		completedAt := v.now()
		batch := &dbmodel.RunValidationBatch{
			RunID:        runID,
			BatchIndex:   i,
			CriterionKey: call.Criterion.Key,
			BatchStart:   call.Window.Start,
			BatchSize:    call.Window.Size(),
			Status:       dbmodel.BatchStatusCompleted,
			StartedAt:    &startedAt,
			CompletedAt:  &completedAt,
		}
		if err := v.repo.Validations.SaveWindow(ctx, batch, rows); err != nil {
			return fmt.Errorf("failed to save validation window %d: %w", i, err)
		}
	}

	log.Info("validation completed", zap.Int("calls", len(plan.Calls)))
	return nil
}

// judge 执行一次 LLM 调用，调用失败时整窗判定为失败
func (v *Validator) judge(ctx context.Context, call Call) []Verdict {
	n := call.Window.Size()
	messages := []*schema.Message{
		{Role: schema.System, Content: call.Prompt.System},
		{Role: schema.User, Content: call.Prompt.User},
	}

	start := time.Now()
	resp, err := v.chatModel.Generate(ctx, messages)
	metrics.LLMDuration.WithLabelValues("validate").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ValidationWindowsTotal.WithLabelValues(call.Criterion.Key, "error").Inc()
		v.logger.Warn("validation call failed",
			zap.String("criterion", call.Criterion.Key),
			zap.Int("batch_start", call.Window.Start),
			zap.Error(err))
		return FailedVerdicts(n, err.Error())
	}

	reply := DecodeReply(resp.Content)
	metrics.LLMReplyKinds.WithLabelValues(string(reply.Kind)).Inc()
	metrics.ValidationWindowsTotal.WithLabelValues(call.Criterion.Key, "ok").Inc()
	if reply.Kind == ReplyMalformed {
		v.logger.Warn("malformed validation reply",
			zap.String("criterion", call.Criterion.Key),
			zap.Int("batch_start", call.Window.Start),
			zap.Error(reply.Err))
	}
	return reply.Verdicts(n)
}

func reasonPtr(reason string) *string {
	if reason == "" {
		return nil
	}
	return &reason
}
