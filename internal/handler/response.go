package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/catalog"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/dataset"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/report"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/run"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/validation"
)

// ========== API 响应格式 ==========

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorBody 错误详情
type ErrorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// Success 成功响应 (200)
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// Created 创建成功响应 (201)
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: data})
}

// Accepted 已受理的后台任务 (202)
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, SuccessResponse{Success: true, Data: data})
}

// NoContent 无内容响应 (204)
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail 以指定状态码返回错误
func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: status, Msg: msg}})
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, msg string) {
	Fail(c, http.StatusBadRequest, msg)
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, msg string) {
	Fail(c, http.StatusNotFound, msg)
}

// Conflict 409 错误响应
func Conflict(c *gin.Context, msg string) {
	Fail(c, http.StatusConflict, msg)
}

// InternalServerError 500 错误响应
func InternalServerError(c *gin.Context, msg string) {
	Fail(c, http.StatusInternalServerError, msg)
}

// Error 根据错误类型返回相应的错误响应
func Error(c *gin.Context, err error) {
	if err == nil {
		return
	}
	Fail(c, statusOf(err), err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, dataset.ErrDatasetNotFound),
		errors.Is(err, dataset.ErrQueryNotFound),
		errors.Is(err, run.ErrRunNotFound),
		errors.Is(err, run.ErrDatasetNotFound),
		errors.Is(err, report.ErrRunNotFound),
		errors.Is(err, validation.ErrRunNotFound),
		errors.Is(err, catalog.ErrCriterionNotFound),
		errors.Is(err, catalog.ErrPromptNotFound):
		return http.StatusNotFound
	case errors.Is(err, run.ErrRunBusy),
		errors.Is(err, dataset.ErrDatasetBusy),
		errors.Is(err, run.ErrNotRestartable),
		errors.Is(err, validation.ErrRunNotCompleted),
		errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, dataset.ErrInvalidInput),
		errors.Is(err, run.ErrInvalidInput),
		errors.Is(err, catalog.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, dataset.ErrPromptMissing),
		errors.Is(err, validation.ErrTemplateMissing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
