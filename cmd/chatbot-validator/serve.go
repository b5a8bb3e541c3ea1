package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/handler"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/router"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}
	gin.SetMode(a.cfg.Server.Mode)

	redisClient, err := a.newRedis(ctx)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	services, err := service.NewServices(ctx, a.repos, a.cfg, redisClient, a.logger)
	if err != nil {
		return err
	}
	if n, err := services.Runs.RecoverStale(ctx); err != nil {
		a.logger.Warn("failed to recover interrupted runs", zap.Error(err))
	} else if n > 0 {
		a.logger.Info("interrupted runs marked failed", zap.Int("count", n))
	}
	if a.cfg.Validation.AutoStart {
		a.logger.Info("validation starts automatically after each run")
	}

	r := router.SetupRouter(handler.NewHandlers(services), a.db, a.logger)
	srv := &http.Server{
		Addr:         a.cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	a.logger.Info("shutting down server")

	// 优雅关闭，后台运行任务同样在超时内收尾
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := services.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("run workers still active at exit", zap.Error(err))
	}

	a.logger.Info("server exited")
	return nil
}
