package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/handler"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/metrics"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/middleware"
)

// Pinger 健康检查依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, db Pinger, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	metrics.Init()

	// 中间件
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.CORSMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		if db != nil {
			if err := db.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	// API v1
	v1 := r.Group("/api/v1")
	{
		// Dataset 数据集
		datasets := v1.Group("/datasets")
		{
			datasets.GET("", h.Dataset.ListDatasets)
			datasets.POST("", h.Dataset.CreateDataset)
			datasets.POST("/parse", h.Dataset.ParseTranscript)
			datasets.POST("/upload", h.Dataset.UploadTranscript)
			datasets.GET("/:id", h.Dataset.GetDataset)
			datasets.PATCH("/:id", h.Dataset.UpdateDataset)
			datasets.DELETE("/:id", h.Dataset.DeleteDataset)
			datasets.POST("/:id/evaluate-expectations", h.Dataset.EvaluateExpectations)
			datasets.POST("/:id/queries", h.Dataset.CreateQuery)
			datasets.POST("/:id/queries/import", h.Dataset.ImportQueries)
			datasets.PUT("/:id/queries/reorder", h.Dataset.ReorderQueries)
			datasets.PATCH("/:id/queries/:query_id", h.Dataset.UpdateQuery)
		}

		// Run 运行
		runs := v1.Group("/runs")
		{
			runs.GET("", h.Run.ListRuns)
			runs.POST("", h.Run.CreateRun)
			runs.GET("/:id", h.Run.GetRun)
			runs.DELETE("/:id", h.Run.DeleteRun)
			runs.POST("/:id/restart", h.Run.RestartRun)
			runs.POST("/:id/validate", h.Run.StartValidation)
			runs.GET("/:id/progress", h.Run.Progress)
			runs.GET("/:id/responses", h.Run.Responses)
			runs.GET("/:id/token-usage", h.Run.TokenUsage)
			runs.GET("/:id/report", h.Run.Report)
			runs.GET("/:id/analysis", h.Run.Analysis)
			runs.GET("/:id/character-timeline", h.Run.CharacterTimeline)
			runs.PATCH("/:id/validations", h.Run.PatchValidations)
		}
		v1.GET("/token-usage", h.Run.AllTokenUsage)

		// Prompt 提示词
		prompts := v1.Group("/prompts")
		{
			prompts.GET("", h.Catalog.ListPrompts)
			prompts.POST("/seed", h.Catalog.Seed)
			prompts.GET("/system-behavior-reference", h.Catalog.GetReference)
			prompts.PUT("/system-behavior-reference", h.Catalog.SetReference)
			prompts.GET("/:key", h.Catalog.GetPrompt)
			prompts.PATCH("/:key", h.Catalog.UpdatePrompt)
		}

		// Criteria 校验标准
		criteria := v1.Group("/criteria")
		{
			criteria.GET("", h.Catalog.ListCriteria)
			criteria.POST("", h.Catalog.CreateCriterion)
			criteria.GET("/:key", h.Catalog.GetCriterion)
			criteria.PATCH("/:key", h.Catalog.UpdateCriterion)
		}
	}

	return r
}
