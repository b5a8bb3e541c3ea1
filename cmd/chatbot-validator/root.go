package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/database"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/logger"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
)

// app 命令共享的基础组件
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB
	repos  *repository.Repositories
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "chatbot-validator",
		Short:         "Replay transcripts against a chat endpoint and validate the replies with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./configs/config.yaml"
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "config file path")

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newSeedCmd(&configPath),
		newTokensCmd(&configPath),
	)
	return root
}

// bootstrap 加载配置、日志并连接数据库（连接时自动迁移）
func bootstrap(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("database connected", zap.String("driver", cfg.Database.Driver))
	return &app{
		cfg:    cfg,
		logger: log,
		db:     db,
		repos:  repository.NewRepositories(db.DB),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// newRedis 未配置 Redis 时返回 nil
func (a *app) newRedis(ctx context.Context) (*redis.Client, error) {
	if !a.cfg.Redis.Enabled() {
		a.logger.Info("redis not configured, using in-process run locks")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.GetAddr(),
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return client, nil
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			a.logger.Info("schema migrated")
			return nil
		},
	}
}
