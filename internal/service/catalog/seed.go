package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
)

//go:embed seed.yaml
var seedYAML []byte

type seedDocument struct {
	Prompts  []seedPrompt    `yaml:"prompts"`
	Criteria []seedCriterion `yaml:"criteria"`
}

type seedPrompt struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Body        string `yaml:"body"`
}

type seedCriterion struct {
	Key            string `yaml:"key"`
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	PromptKey      string `yaml:"prompt_key"`
	SortOrder      int    `yaml:"sort_order"`
	AppliesToAll   *bool  `yaml:"applies_to_all"`
	AdditionalInfo string `yaml:"additional_info"`
}

// SeedResult 初始化结果
type SeedResult struct {
	PromptsCreated  int `json:"prompts_created"`
	PromptsUpdated  int `json:"prompts_updated"`
	CriteriaCreated int `json:"criteria_created"`
	CriteriaUpdated int `json:"criteria_updated"`
}

// Seed 按 key 写入内置提示词与默认标准
func (s *Service) Seed(ctx context.Context) (*SeedResult, error) {
	return s.SeedFrom(ctx, seedYAML)
}

// SeedFrom 从 YAML 文档写入提示词与标准
func (s *Service) SeedFrom(ctx context.Context, data []byte) (*SeedResult, error) {
	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed document: %w", err)
	}

	res := &SeedResult{}
	for _, p := range doc.Prompts {
		if p.Key == "" {
			continue
		}
		name := p.Name
		if name == "" {
			name = p.Key
		}
		created, err := s.upsertPrompt(ctx, &model.Prompt{Key: p.Key, Name: name, Description: p.Description, Body: p.Body})
		if err != nil {
			return nil, err
		}
		if created {
			res.PromptsCreated++
		} else {
			res.PromptsUpdated++
		}
	}

	for _, sc := range doc.Criteria {
		if sc.Key == "" {
			continue
		}
		created, err := s.upsertCriterion(ctx, sc)
		if err != nil {
			return nil, err
		}
		if created {
			res.CriteriaCreated++
		} else {
			res.CriteriaUpdated++
		}
	}
	return res, nil
}

func (s *Service) upsertCriterion(ctx context.Context, sc seedCriterion) (bool, error) {
	c, err := s.repo.Criteria.GetByKey(ctx, sc.Key)
	created := false
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c = &model.ValidationCriterion{Key: sc.Key, IsActive: true}
		created = true
	case err != nil:
		return false, fmt.Errorf("failed to load criterion %s: %w", sc.Key, err)
	}

	c.Name = sc.Name
	if c.Name == "" {
		c.Name = sc.Key
	}
	c.Description = sc.Description
	c.PromptKey = sc.PromptKey
	c.SortOrder = sc.SortOrder
	c.AppliesToAll = sc.AppliesToAll == nil || *sc.AppliesToAll
	c.AdditionalInfo = nil
	if sc.AdditionalInfo != "" {
		info := sc.AdditionalInfo
		c.AdditionalInfo = &info
	}

	if created {
		err = s.repo.Criteria.Create(ctx, c)
	} else {
		err = s.repo.Criteria.Save(ctx, c)
	}
	if err != nil {
		return false, fmt.Errorf("failed to save criterion %s: %w", sc.Key, err)
	}
	return created, nil
}
