package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
)

// Optional 区分字段缺失与显式 null
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON 字段出现即视为已设置，null 表示清除
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Some 构造已设置的值
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Clear 构造显式清除
func Clear[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// OverrideUpdate 人工覆盖更新
type OverrideUpdate struct {
	MessageResponseID uint             `json:"message_response_id" binding:"required"`
	CriterionKey      string           `json:"criterion_key" binding:"required"`
	OverridePassed    Optional[bool]   `json:"override_passed"`
	ReviewerComment   Optional[string] `json:"reviewer_comment"`
}

// Apply 按字段出现情况修补详情，不修改 reason
func (u OverrideUpdate) Apply(d model.ValidationDetails) model.ValidationDetails {
	if u.OverridePassed.Set {
		d.OverridePassed = u.OverridePassed.Value
	}
	if u.ReviewerComment.Set {
		d.ReviewerComment = u.ReviewerComment.Value
	}
	return d
}

// OverrideService 人工覆盖
type OverrideService struct {
	repo *repository.Repositories
}

// NewOverrideService 创建人工覆盖服务
func NewOverrideService(repo *repository.Repositories) *OverrideService {
	return &OverrideService{repo: repo}
}

// PatchValidations 应用人工覆盖，返回更新的判定数
func (s *OverrideService) PatchValidations(ctx context.Context, runID uint, updates []OverrideUpdate) (int, error) {
	if _, err := s.repo.Runs.GetByID(ctx, runID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
		}
		return 0, fmt.Errorf("failed to load run: %w", err)
	}

	updated := 0
	for _, u := range updates {
		rows, err := s.repo.Validations.ListByResponseAndCriterion(ctx, runID, u.MessageResponseID, u.CriterionKey)
		if err != nil {
			return updated, fmt.Errorf("failed to load validations: %w", err)
		}
		for _, row := range rows {
			if err := s.repo.Validations.UpdateDetails(ctx, row.ID, u.Apply(row.Details)); err != nil {
				return updated, fmt.Errorf("failed to update validation %d: %w", row.ID, err)
			}
			updated++
		}
	}
	return updated, nil
}
