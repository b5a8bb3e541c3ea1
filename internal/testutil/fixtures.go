package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
)

// Ptr 返回值的指针
func Ptr[T any](v T) *T {
	return &v
}

// SeedDataset 创建含 n 条查询的数据集
func SeedDataset(t *testing.T, repos *repository.Repositories, n int) (*model.Dataset, []*model.Query) {
	t.Helper()
	ds := &model.Dataset{Name: "support transcripts", SystemBehavior: Ptr("Friendly assistant with a coach persona")}
	queries := make([]*model.Query, 0, n)
	for i := 0; i < n; i++ {
		queries = append(queries, &model.Query{
			QueryText:    fmt.Sprintf("question %d", i+1),
			Expectations: Ptr(fmt.Sprintf("answer %d", i+1)),
			SortOrder:    i,
		})
	}
	if err := repos.Datasets.CreateWithQueries(context.Background(), ds, queries); err != nil {
		t.Fatalf("failed to seed dataset: %v", err)
	}
	return ds, queries
}

// SeedCriterion 创建校验标准
func SeedCriterion(t *testing.T, repos *repository.Repositories, key string, sortOrder int, appliesToAll bool) *model.ValidationCriterion {
	t.Helper()
	c := &model.ValidationCriterion{
		Key:          key,
		Name:         key + " name",
		Description:  key + " description",
		PromptKey:    "validate_batch",
		AppliesToAll: appliesToAll,
		IsActive:     true,
		SortOrder:    sortOrder,
	}
	if err := repos.Criteria.Create(context.Background(), c); err != nil {
		t.Fatalf("failed to seed criterion: %v", err)
	}
	return c
}

// SeedPrompt 创建提示词模板
func SeedPrompt(t *testing.T, repos *repository.Repositories, key, body string) *model.Prompt {
	t.Helper()
	p := &model.Prompt{Key: key, Name: key, Body: body, Version: 1}
	if err := repos.Prompts.Create(context.Background(), p); err != nil {
		t.Fatalf("failed to seed prompt: %v", err)
	}
	return p
}

// SeedCompletedRun 创建已完成的运行，并为每条查询写入回放结果 "reply i"
func SeedCompletedRun(t *testing.T, repos *repository.Repositories, dataset *model.Dataset, queries []*model.Query, criterionKeys []string) (*model.Run, []*model.MessageResponse) {
	t.Helper()
	ctx := context.Background()
	run := &model.Run{
		DatasetID:          dataset.ID,
		Name:               "seeded run",
		APIURL:             "http://chat.local/stream",
		AuthTokenEncrypted: "sealed",
		Status:             model.RunStatusCompleted,
		TotalQueries:       len(queries),
		ProcessedCount:     len(queries),
		Config:             model.RunConfig{CriterionKeys: criterionKeys},
	}
	if err := repos.Runs.Create(ctx, run); err != nil {
		t.Fatalf("failed to seed run: %v", err)
	}

	responses := make([]*model.MessageResponse, 0, len(queries))
	for i, q := range queries {
		resp := &model.MessageResponse{
			RunID:          run.ID,
			QueryID:        q.ID,
			RequestMessage: q.QueryText,
			ResponseText:   Ptr(fmt.Sprintf("reply %d", i+1)),
		}
		if err := repos.Responses.Create(ctx, resp); err != nil {
			t.Fatalf("failed to seed response: %v", err)
		}
		responses = append(responses, resp)
	}
	return run, responses
}
