package usage

import (
	"context"
	"testing"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/validation"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/testutil"
)

const batchTemplate = `{system_behavior}Criterion: {criterion_name}
{criterion_description}
{additional_info}{applies_to_all_instruction}Input list (JSON array): {items_json}`

var (
	testCfg     = config.ValidationConfig{BatchSize: 2, ContextTurns: 2, EstOutputTokensPerItem: 100}
	testPricing = config.PricingConfig{InputPer1M: 2.5, OutputPer1M: 10}
)

func TestCharTokenizer(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{"héllo", 2},
	}
	for _, tt := range tests {
		if got := (CharTokenizer{}).Count(tt.text); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestCost(t *testing.T) {
	if got := Cost(1_000_000, 100_000, testPricing); got != 3.5 {
		t.Errorf("Cost() = %v, want 3.5", got)
	}
	if got := Cost(0, 0, testPricing); got != 0 {
		t.Errorf("Cost() = %v, want 0", got)
	}
}

func seedRun(t *testing.T, n int) (*repository.Repositories, uint) {
	t.Helper()
	repos := repository.NewRepositories(testutil.NewTestDB(t))
	testutil.SeedPrompt(t, repos, validation.DefaultTemplateKey, batchTemplate)
	testutil.SeedPrompt(t, repos, validation.ReferenceKey, "Coach persona reference")
	ds, queries := testutil.SeedDataset(t, repos, n)
	testutil.SeedCriterion(t, repos, "alpha", 0, true)
	testutil.SeedCriterion(t, repos, "beta", 1, false)
	run, _ := testutil.SeedCompletedRun(t, repos, ds, queries, nil)
	return repos, run.ID
}

func TestEstimateRun(t *testing.T) {
	repos, runID := seedRun(t, 3)
	est := NewEstimator(repos, CharTokenizer{}, testCfg, testPricing, nil)

	u, err := est.EstimateRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("EstimateRun() error = %v", err)
	}
	if u.CriteriaCount != 2 || u.BatchCount != 4 || u.TotalQueries != 3 {
		t.Errorf("usage = %+v", u)
	}
	if u.TotalEstOutputTokens != 600 {
		t.Errorf("TotalEstOutputTokens = %d, want 600", u.TotalEstOutputTokens)
	}

	sum := 0
	for _, b := range u.BatchDetails {
		if b.InputTokens <= 0 {
			t.Errorf("batch %+v has no input tokens", b)
		}
		if b.EstOutputTokens != b.BatchSize*100 {
			t.Errorf("batch %+v output mismatch", b)
		}
		sum += b.InputTokens
	}
	if sum != u.TotalInputTokens || u.TotalEstTokens != u.TotalInputTokens+u.TotalEstOutputTokens {
		t.Errorf("totals inconsistent: %+v", u)
	}
	if u.CostUSD != Cost(u.TotalInputTokens, u.TotalEstOutputTokens, testPricing) {
		t.Errorf("CostUSD = %v", u.CostUSD)
	}
	if u.Tokenizer != "chars/4" {
		t.Errorf("Tokenizer = %s", u.Tokenizer)
	}
}

func TestEstimatorPromptsMatchValidator(t *testing.T) {
	repos, runID := seedRun(t, 3)
	llm := &testutil.ChatModel{Replies: []string{`[]`}}
	v := validation.NewValidator(repos, llm, testCfg, nil)
	est := NewEstimator(repos, CharTokenizer{}, testCfg, testPricing, nil)

	prompts, err := est.Prompts(context.Background(), runID)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateRun(context.Background(), runID); err != nil {
		t.Fatal(err)
	}

	calls := llm.Calls()
	if len(calls) != len(prompts) {
		t.Fatalf("validator made %d calls, estimator planned %d", len(calls), len(prompts))
	}
	for i, msgs := range calls {
		if len(msgs) != 2 {
			t.Fatalf("call %d has %d messages", i, len(msgs))
		}
		if msgs[0].Content != prompts[i].System {
			t.Errorf("call %d system differs:\n%q\n%q", i, msgs[0].Content, prompts[i].System)
		}
		if msgs[1].Content != prompts[i].User {
			t.Errorf("call %d user differs:\n%q\n%q", i, msgs[1].Content, prompts[i].User)
		}
	}
}

func TestEstimateAll(t *testing.T) {
	ctx := context.Background()
	repos, runID := seedRun(t, 2)
	est := NewEstimator(repos, CharTokenizer{}, testCfg, testPricing, nil)

	got, err := est.EstimateAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("runs without validations should be skipped, got %d", len(got))
	}

	v := validation.NewValidator(repos, &testutil.ChatModel{Replies: []string{`[]`}}, testCfg, nil)
	if err := v.ValidateRun(ctx, runID); err != nil {
		t.Fatal(err)
	}

	got, err = est.EstimateAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].RunID != runID {
		t.Fatalf("EstimateAll() = %+v", got)
	}
}
