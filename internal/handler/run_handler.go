package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/report"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/run"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/usage"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/validation"
)

// RunHandler 运行与报告处理器
type RunHandler struct {
	runs    *run.Service
	reports *report.Service
	usage   *usage.Estimator
}

// NewRunHandler 创建运行处理器
func NewRunHandler(runs *run.Service, reports *report.Service, estimator *usage.Estimator) *RunHandler {
	return &RunHandler{runs: runs, reports: reports, usage: estimator}
}

// CreateRun 创建运行并在后台执行
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req run.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	data, err := h.runs.CreateRun(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, data)
}

// ListRuns 列出运行
func (h *RunHandler) ListRuns(c *gin.Context) {
	runs, err := h.runs.ListRuns(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, runs)
}

// GetRun 获取运行
func (h *RunHandler) GetRun(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	data, err := h.runs.GetRun(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// DeleteRun 删除运行
func (h *RunHandler) DeleteRun(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.runs.DeleteRun(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}

// RestartRun 重新执行失败的运行
func (h *RunHandler) RestartRun(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	data, err := h.runs.RestartRun(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Accepted(c, data)
}

// StartValidation 开始校验
func (h *RunHandler) StartValidation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	data, err := h.runs.StartValidation(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Accepted(c, data)
}

// Progress 执行进度
func (h *RunHandler) Progress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	data, err := h.runs.Progress(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// Responses 回放结果
func (h *RunHandler) Responses(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	data, err := h.runs.Responses(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// TokenUsage 单个运行的 token 估算
func (h *RunHandler) TokenUsage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	data, err := h.runs.TokenUsage(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// AllTokenUsage 所有已校验运行的 token 估算
func (h *RunHandler) AllTokenUsage(c *gin.Context) {
	data, err := h.usage.EstimateAll(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// PatchValidations 人工复核
func (h *RunHandler) PatchValidations(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Updates []validation.OverrideUpdate `json:"updates" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	n, err := h.runs.PatchValidations(c.Request.Context(), id, req.Updates)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"updated": n})
}

// ========== 报告 ==========

// Report 运行报告
func (h *RunHandler) Report(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	data, err := h.reports.RunReport(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// Analysis 深度分析
func (h *RunHandler) Analysis(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	data, err := h.reports.DeepAnalysis(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// CharacterTimeline 角色时间线
func (h *RunHandler) CharacterTimeline(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	data, err := h.reports.CharacterTimeline(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}
