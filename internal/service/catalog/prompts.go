package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/validation"
)

// UpdatePromptRequest 更新提示词请求
type UpdatePromptRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Body        *string `json:"body"`
}

// ListPrompts 按 key 列出提示词
func (s *Service) ListPrompts(ctx context.Context) ([]*model.Prompt, error) {
	prompts, err := s.repo.Prompts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	return prompts, nil
}

// GetPrompt 获取提示词
func (s *Service) GetPrompt(ctx context.Context, key string) (*model.Prompt, error) {
	p, err := s.repo.Prompts.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPromptNotFound, key)
		}
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return p, nil
}

// UpdatePrompt 更新提示词，正文变化时版本号加一
func (s *Service) UpdatePrompt(ctx context.Context, key string, req *UpdatePromptRequest) (*model.Prompt, error) {
	p, err := s.GetPrompt(ctx, key)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Body != nil && *req.Body != p.Body {
		p.Body = *req.Body
		p.Version++
	}
	if err := s.repo.Prompts.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update prompt: %w", err)
	}
	return p, nil
}

// GetReference 获取全局系统行为参考，未设置时为空
func (s *Service) GetReference(ctx context.Context) (string, error) {
	p, err := s.repo.Prompts.GetByKey(ctx, validation.ReferenceKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get reference: %w", err)
	}
	return p.Body, nil
}

// SetReference 设置全局系统行为参考
func (s *Service) SetReference(ctx context.Context, text string) error {
	_, err := s.upsertPrompt(ctx, &model.Prompt{
		Key:         validation.ReferenceKey,
		Name:        "System behavior reference",
		Description: "Chat system and prompts reference injected into validation instructions",
		Body:        text,
	})
	return err
}

// upsertPrompt 按 key 插入或更新，返回是否新建
func (s *Service) upsertPrompt(ctx context.Context, in *model.Prompt) (bool, error) {
	existing, err := s.repo.Prompts.GetByKey(ctx, in.Key)
	if errors.Is(err, repository.ErrNotFound) {
		in.Version = 1
		if err := s.repo.Prompts.Create(ctx, in); err != nil {
			return false, fmt.Errorf("failed to create prompt %s: %w", in.Key, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load prompt %s: %w", in.Key, err)
	}

	if in.Name != "" {
		existing.Name = in.Name
	}
	if in.Description != "" {
		existing.Description = in.Description
	}
	if existing.Body != in.Body {
		existing.Body = in.Body
		existing.Version++
	}
	if err := s.repo.Prompts.Save(ctx, existing); err != nil {
		return false, fmt.Errorf("failed to save prompt %s: %w", in.Key, err)
	}
	return false, nil
}
