// Package execution 驱动一次运行的逐条回放
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/metrics"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/replay"
)

// ErrRunNotFound 运行不存在
var ErrRunNotFound = errors.New("run not found")

// TokenOpener 解密运行凭证
type TokenOpener interface {
	Open(sealed string) (string, error)
}

// Executor 运行执行器
type Executor struct {
	repo     *repository.Repositories
	replayer replay.Replayer
	tokens   TokenOpener
	logger   *zap.Logger
	now      func() time.Time
}

// NewExecutor 创建运行执行器
func NewExecutor(repo *repository.Repositories, replayer replay.Replayer, tokens TokenOpener, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		repo:     repo,
		replayer: replayer,
		tokens:   tokens,
		logger:   logger.Named("executor"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Execute 顺序回放运行的全部查询
// 仅 pending 或 failed 状态可执行，其余状态直接返回；单条失败记录为该条的错误且不中断循环
func (e *Executor) Execute(ctx context.Context, runID uint) error {
	run, err := e.repo.Runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
		}
		return fmt.Errorf("failed to load run: %w", err)
	}
	if !run.CanExecute() {
		e.logger.Info("run not executable, skipping", zap.Uint("run_id", runID), zap.String("status", string(run.Status)))
		return nil
	}

	if run.Status == model.RunStatusFailed {
		if err := e.repo.Runs.ResetExecution(ctx, runID); err != nil {
			return fmt.Errorf("failed to reset run: %w", err)
		}
	}

	token, err := e.tokens.Open(run.AuthTokenEncrypted)
	if err != nil {
		return fmt.Errorf("failed to decrypt run token: %w", err)
	}

	limit := 0
	if run.Config.QueryLimit != nil {
		limit = max(1, *run.Config.QueryLimit)
	}
	queries, err := e.repo.Queries.ListForExecution(ctx, run.DatasetID, limit)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	if err := e.repo.Runs.UpdateFields(ctx, runID, map[string]any{
		"status":          model.RunStatusRunning,
		"started_at":      e.now(),
		"total_queries":   len(queries),
		"processed_count": 0,
	}); err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}

	log := e.logger.With(zap.Uint("run_id", runID))
	log.Info("run started", zap.Int("total_queries", len(queries)))

	for i, q := range queries {
		resp := e.replayOne(ctx, run, token, q)
		if err := e.repo.Responses.Create(ctx, resp); err != nil {
			return fmt.Errorf("failed to save response for query %d: %w", q.ID, err)
		}
		if err := e.repo.Runs.UpdateFields(ctx, runID, map[string]any{"processed_count": i + 1}); err != nil {
			return fmt.Errorf("failed to update progress: %w", err)
		}
		if resp.Error != nil {
			log.Warn("query replay failed", zap.Uint("query_id", q.ID), zap.String("error", *resp.Error))
		}
	}

	if err := e.repo.Runs.UpdateFields(ctx, runID, map[string]any{
		"status":       model.RunStatusCompleted,
		"completed_at": e.now(),
	}); err != nil {
		return fmt.Errorf("failed to mark run completed: %w", err)
	}
	metrics.RunsTotal.WithLabelValues(string(model.RunStatusCompleted)).Inc()
	log.Info("run completed", zap.Int("processed", len(queries)))
	return nil
}

// replayOne 回放单条查询，失败时返回带错误信息的结果
func (e *Executor) replayOne(ctx context.Context, run *model.Run, token string, q *model.Query) *model.MessageResponse {
	resp := &model.MessageResponse{
		RunID:          run.ID,
		QueryID:        q.ID,
		RequestMessage: q.QueryText,
	}

	start := time.Now()
	res, err := e.replayer.Replay(ctx, replay.Request{
		URL:       run.APIURL,
		Token:     token,
		Message:   q.QueryText,
		NewThread: run.NewThread,
	})
	metrics.ReplayDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		msg := err.Error()
		resp.Error = &msg
		metrics.ReplayItemsTotal.WithLabelValues("error").Inc()
		return resp
	}

	text := res.Text
	resp.ResponseText = &text
	resp.RawChunks = model.RawChunks{LastChunk: res.LastChunk, StreamChunks: res.Timeline}
	metrics.ReplayItemsTotal.WithLabelValues("ok").Inc()
	return resp
}
