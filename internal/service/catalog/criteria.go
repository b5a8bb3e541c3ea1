// Package catalog 管理校验标准与提示词模板
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/validation"
)

var (
	// ErrCriterionNotFound 标准不存在
	ErrCriterionNotFound = errors.New("criterion not found")
	// ErrPromptNotFound 提示词不存在
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrConflict key 已存在
	ErrConflict = errors.New("key already exists")
	// ErrInvalidInput 参数无效
	ErrInvalidInput = errors.New("invalid input")
)

// Service 标准与提示词服务
type Service struct {
	repo *repository.Repositories
}

// NewService 创建服务
func NewService(repo *repository.Repositories) *Service {
	return &Service{repo: repo}
}

// CreateCriterionRequest 创建标准请求
type CreateCriterionRequest struct {
	Key            string  `json:"key" binding:"required"`
	Name           string  `json:"name" binding:"required"`
	Description    string  `json:"description"`
	PromptKey      string  `json:"prompt_key"`
	AppliesToAll   *bool   `json:"applies_to_all"`
	AdditionalInfo *string `json:"additional_info"`
	IsActive       *bool   `json:"is_active"`
	SortOrder      int     `json:"sort_order"`
}

// UpdateCriterionRequest 更新标准请求，nil 字段保持不变
type UpdateCriterionRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	PromptKey      *string `json:"prompt_key"`
	AppliesToAll   *bool   `json:"applies_to_all"`
	AdditionalInfo *string `json:"additional_info"`
	IsActive       *bool   `json:"is_active"`
	SortOrder      *int    `json:"sort_order"`
}

// ListCriteria 列出标准
func (s *Service) ListCriteria(ctx context.Context, activeOnly bool) ([]*model.ValidationCriterion, error) {
	criteria, err := s.repo.Criteria.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list criteria: %w", err)
	}
	return criteria, nil
}

// GetCriterion 获取标准
func (s *Service) GetCriterion(ctx context.Context, key string) (*model.ValidationCriterion, error) {
	c, err := s.repo.Criteria.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCriterionNotFound, key)
		}
		return nil, fmt.Errorf("failed to get criterion: %w", err)
	}
	return c, nil
}

// ResolveCriteria 解析运行适用的标准
func (s *Service) ResolveCriteria(ctx context.Context, keys []string) ([]*model.ValidationCriterion, error) {
	return validation.ResolveCriteria(ctx, s.repo.Criteria, keys)
}

// CreateCriterion 创建标准
func (s *Service) CreateCriterion(ctx context.Context, req *CreateCriterionRequest) (*model.ValidationCriterion, error) {
	key := strings.TrimSpace(req.Key)
	if key == "" || strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: key and name are required", ErrInvalidInput)
	}
	if _, err := s.repo.Criteria.GetByKey(ctx, key); err == nil {
		return nil, fmt.Errorf("%w: criterion %s", ErrConflict, key)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check criterion: %w", err)
	}

	c := &model.ValidationCriterion{
		Key:            key,
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		PromptKey:      req.PromptKey,
		AppliesToAll:   true,
		AdditionalInfo: req.AdditionalInfo,
		IsActive:       true,
		SortOrder:      req.SortOrder,
	}
	if c.PromptKey == "" {
		c.PromptKey = validation.DefaultTemplateKey
	}
	if req.AppliesToAll != nil {
		c.AppliesToAll = *req.AppliesToAll
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	if err := s.repo.Criteria.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create criterion: %w", err)
	}
	return c, nil
}

// UpdateCriterion 部分更新标准
func (s *Service) UpdateCriterion(ctx context.Context, key string, req *UpdateCriterionRequest) (*model.ValidationCriterion, error) {
	c, err := s.GetCriterion(ctx, key)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.PromptKey != nil {
		c.PromptKey = *req.PromptKey
	}
	if req.AppliesToAll != nil {
		c.AppliesToAll = *req.AppliesToAll
	}
	if req.AdditionalInfo != nil {
		c.AdditionalInfo = req.AdditionalInfo
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if req.SortOrder != nil {
		c.SortOrder = *req.SortOrder
	}

	if err := s.repo.Criteria.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update criterion: %w", err)
	}
	return c, nil
}
