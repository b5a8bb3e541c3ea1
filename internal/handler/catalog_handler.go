package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/catalog"
)

// CatalogHandler 提示词与校验标准处理器
type CatalogHandler struct {
	svc *catalog.Service
}

// NewCatalogHandler 创建目录处理器
func NewCatalogHandler(svc *catalog.Service) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// ListPrompts 列出提示词
func (h *CatalogHandler) ListPrompts(c *gin.Context) {
	data, err := h.svc.ListPrompts(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, data)
}

// GetPrompt 获取提示词
func (h *CatalogHandler) GetPrompt(c *gin.Context) {
	data, err := h.svc.GetPrompt(c.Request.Context(), c.Param("key"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, data)
}

// UpdatePrompt 更新提示词，正文变化时版本号加一
func (h *CatalogHandler) UpdatePrompt(c *gin.Context) {
	var req catalog.UpdatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	data, err := h.svc.UpdatePrompt(c.Request.Context(), c.Param("key"), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, data)
}

// GetReference 获取系统行为参考
func (h *CatalogHandler) GetReference(c *gin.Context) {
	text, err := h.svc.GetReference(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"content": text})
}

// SetReference 设置系统行为参考
func (h *CatalogHandler) SetReference(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := h.svc.SetReference(c.Request.Context(), req.Content); err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"content": req.Content})
}

// Seed 写入内置提示词与标准
func (h *CatalogHandler) Seed(c *gin.Context) {
	res, err := h.svc.Seed(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, res)
}

// ========== 校验标准 ==========

// ListCriteria 列出标准，active=true 时只返回启用的
func (h *CatalogHandler) ListCriteria(c *gin.Context) {
	data, err := h.svc.ListCriteria(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, data)
}

// GetCriterion 获取标准
func (h *CatalogHandler) GetCriterion(c *gin.Context) {
	data, err := h.svc.GetCriterion(c.Request.Context(), c.Param("key"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, data)
}

// CreateCriterion 创建标准
func (h *CatalogHandler) CreateCriterion(c *gin.Context) {
	var req catalog.CreateCriterionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	data, err := h.svc.CreateCriterion(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, data)
}

// UpdateCriterion 更新标准
func (h *CatalogHandler) UpdateCriterion(c *gin.Context) {
	var req catalog.UpdateCriterionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	data, err := h.svc.UpdateCriterion(c.Request.Context(), c.Param("key"), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, data)
}
