package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/validation"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/testutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(repository.NewRepositories(testutil.NewTestDB(t)))
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	res, err := svc.Seed(ctx)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if res.PromptsCreated != 3 || res.CriteriaCreated != 4 {
		t.Errorf("first seed = %+v", res)
	}

	criteria, err := svc.ListCriteria(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	wantKeys := []string{"expectation_match", "character_switch", "information_correct", "guardrailed"}
	for i, k := range wantKeys {
		if criteria[i].Key != k || !criteria[i].AppliesToAll || !criteria[i].IsActive {
			t.Errorf("criteria[%d] = %+v", i, criteria[i])
		}
	}

	tmpl, err := svc.GetPrompt(ctx, validation.DefaultTemplateKey)
	if err != nil {
		t.Fatal(err)
	}
	for _, ph := range []string{"{system_behavior}", "{criterion_name}", "{criterion_description}", "{additional_info}", "{applies_to_all_instruction}", "Input list (JSON array): {items_json}"} {
		if !strings.Contains(tmpl.Body, ph) {
			t.Errorf("validate_batch missing %s", ph)
		}
	}

	// 重复执行不会新建，正文不变时版本不变
	res, err = svc.Seed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.PromptsCreated != 0 || res.PromptsUpdated != 3 || res.CriteriaUpdated != 4 {
		t.Errorf("second seed = %+v", res)
	}
	again, _ := svc.GetPrompt(ctx, validation.DefaultTemplateKey)
	if again.Version != 1 {
		t.Errorf("version = %d, want 1", again.Version)
	}
}

func TestSeedFrom_UpdatesChangedBody(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	doc := []byte("prompts:\n  - key: p\n    body: first\n")
	if _, err := svc.SeedFrom(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SeedFrom(ctx, []byte("prompts:\n  - key: p\n    body: second\n")); err != nil {
		t.Fatal(err)
	}
	p, _ := svc.GetPrompt(ctx, "p")
	if p.Body != "second\n" && p.Body != "second" {
		t.Errorf("body = %q", p.Body)
	}
	if p.Version != 2 || p.Name != "p" {
		t.Errorf("prompt = %+v", p)
	}

	if _, err := svc.SeedFrom(ctx, []byte("prompts: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestCriterionCRUD(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	c, err := svc.CreateCriterion(ctx, &CreateCriterionRequest{Key: "tone", Name: "Tone", AppliesToAll: testutil.Ptr(false)})
	if err != nil {
		t.Fatal(err)
	}
	if c.PromptKey != validation.DefaultTemplateKey || c.AppliesToAll || !c.IsActive {
		t.Errorf("created = %+v", c)
	}

	if _, err := svc.CreateCriterion(ctx, &CreateCriterionRequest{Key: "tone", Name: "Again"}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate error = %v", err)
	}
	if _, err := svc.CreateCriterion(ctx, &CreateCriterionRequest{Key: " ", Name: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank key error = %v", err)
	}

	updated, err := svc.UpdateCriterion(ctx, "tone", &UpdateCriterionRequest{IsActive: testutil.Ptr(false), SortOrder: testutil.Ptr(5)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.IsActive || updated.SortOrder != 5 || updated.Name != "Tone" {
		t.Errorf("updated = %+v", updated)
	}

	active, _ := svc.ListCriteria(ctx, true)
	if len(active) != 0 {
		t.Errorf("inactive criterion listed: %+v", active)
	}
	all, _ := svc.ListCriteria(ctx, false)
	if len(all) != 1 {
		t.Errorf("all = %d", len(all))
	}

	if _, err := svc.UpdateCriterion(ctx, "missing", &UpdateCriterionRequest{}); !errors.Is(err, ErrCriterionNotFound) {
		t.Errorf("missing error = %v", err)
	}
}

func TestResolveCriteria(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewRepositories(testutil.NewTestDB(t))
	svc := NewService(repos)
	testutil.SeedCriterion(t, repos, "a", 0, true)
	testutil.SeedCriterion(t, repos, "b", 1, true)
	off := testutil.SeedCriterion(t, repos, "c", 2, true)
	off.IsActive = false
	if err := repos.Criteria.Save(ctx, off); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		keys []string
		want []string
	}{
		{name: "nil means active", keys: nil, want: []string{"a", "b"}},
		{name: "caller order, unknown skipped", keys: []string{"c", "zzz", "a"}, want: []string{"c", "a"}},
		{name: "empty list", keys: []string{}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ResolveCriteria(ctx, tt.keys)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d criteria, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Key != tt.want[i] {
					t.Errorf("got[%d] = %s, want %s", i, got[i].Key, tt.want[i])
				}
			}
		})
	}
}

func TestPromptsAndReference(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewRepositories(testutil.NewTestDB(t))
	svc := NewService(repos)
	testutil.SeedPrompt(t, repos, "validate_batch", "body v1")

	p, err := svc.UpdatePrompt(ctx, "validate_batch", &UpdatePromptRequest{Name: testutil.Ptr("Batch")})
	if err != nil {
		t.Fatal(err)
	}
	if p.Version != 1 || p.Name != "Batch" {
		t.Errorf("name-only update = %+v", p)
	}
	p, _ = svc.UpdatePrompt(ctx, "validate_batch", &UpdatePromptRequest{Body: testutil.Ptr("body v2")})
	if p.Version != 2 || p.Body != "body v2" {
		t.Errorf("body update = %+v", p)
	}
	if _, err := svc.UpdatePrompt(ctx, "nope", &UpdatePromptRequest{}); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("missing error = %v", err)
	}

	ref, err := svc.GetReference(ctx)
	if err != nil || ref != "" {
		t.Errorf("GetReference() = %q, %v", ref, err)
	}
	if err := svc.SetReference(ctx, "Coach persona"); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetReference(ctx, "Coach persona v2"); err != nil {
		t.Fatal(err)
	}
	ref, _ = svc.GetReference(ctx)
	if ref != "Coach persona v2" {
		t.Errorf("reference = %q", ref)
	}
	stored, _ := svc.GetPrompt(ctx, validation.ReferenceKey)
	if stored.Version != 2 {
		t.Errorf("reference version = %d", stored.Version)
	}
}
