// Package service 组装各业务服务
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/secret"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/callback"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/catalog"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/dataset"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/execution"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/file"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/replay"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/report"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/run"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/usage"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/validation"
)

// Services 服务集合
type Services struct {
	Catalog  *catalog.Service
	Datasets *dataset.Service
	Runs     *run.Service
	Reports  *report.Service
	Usage    *usage.Estimator
	Files    *file.Service

	Config    *config.Config
	ChatModel model.BaseChatModel
}

// NewServices 创建所有服务
// redisClient 为 nil 时运行锁只在进程内生效
func NewServices(ctx context.Context, repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	box, err := secret.NewBox(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to init credential box: %w", err)
	}

	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		// 无 LLM 时仍可浏览数据与报告，调用时返回该错误
		logger.Warn("chat model unavailable", zap.Error(err))
		chatModel = unavailableChatModel{err: err}
	}

	llmLog := callback.NewLogger(logger)

	files, err := file.NewServiceFromConfig(ctx, repo, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to init file storage: %w", err)
	}

	estimator := usage.NewEstimator(repo, usage.DefaultTokenizer(logger), cfg.Validation, cfg.Pricing, logger)
	replayer := replay.NewClient(cfg.Replay, logger)
	locks := run.NewLockManager(redisClient, time.Duration(cfg.Redis.LockTTL)*time.Second)

	runs := run.NewService(repo, run.Deps{
		Executor:  execution.NewExecutor(repo, replayer, box, logger),
		Validator: validation.NewValidator(repo, callback.Instrument(chatModel, "validate", llmLog), cfg.Validation, logger),
		Estimator: estimator,
		Overrides: validation.NewOverrideService(repo),
		Sealer:    box,
		Locks:     locks,
	}, cfg.Validation, logger)

	return &Services{
		Catalog:  catalog.NewService(repo),
		Datasets: dataset.NewService(repo, callback.Instrument(chatModel, "dataset", llmLog), files, cfg.Parser, logger).WithRunLocks(locks),
		Runs:     runs,
		Reports:  report.NewService(repo),
		Usage:    estimator,
		Files:    files,

		Config:    cfg,
		ChatModel: chatModel,
	}, nil
}

// Shutdown 等待后台运行任务结束
func (s *Services) Shutdown(ctx context.Context) error {
	return s.Runs.Shutdown(ctx)
}

// unavailableChatModel 未配置 LLM 时的占位实现
type unavailableChatModel struct {
	err error
}

func (m unavailableChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return nil, m.err
}

func (m unavailableChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, m.err
}

// ErrChatModelDisabled 未配置 API Key
var ErrChatModelDisabled = errors.New("chat model is not configured")
