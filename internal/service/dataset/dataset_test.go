package dataset

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	dbmodel "github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/service/file"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/testutil"
)

var testParserConfig = config.ParserConfig{ChunkSize: 12000, ClarityBatchSize: 50, MaxUploadBytes: 1 << 20}

func setup(t *testing.T, llm *testutil.ChatModel, cfg config.ParserConfig) (*repository.Repositories, *Service) {
	t.Helper()
	repos := repository.NewRepositories(testutil.NewTestDB(t))
	files, err := file.NewServiceFromConfig(context.Background(), repos, config.StorageConfig{
		Type:  "local",
		Local: config.LocalStorageConfig{BasePath: t.TempDir()},
	})
	if err != nil {
		t.Fatal(err)
	}
	return repos, NewService(repos, llm, files, cfg, nil)
}

func TestParseItems(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []ParsedItem
		wantErr bool
	}{
		{
			name:    "canonical keys",
			content: `[{"query": "hi", "expectations": "greets"}]`,
			want:    []ParsedItem{{Query: "hi", Expectations: "greets"}},
		},
		{
			name:    "alias keys in fence",
			content: "```json\n[{\"question\": \"q\", \"expected\": \"e\"}, {\"query\": \"r\", \"expectation\": \"f\"}]\n```",
			want:    []ParsedItem{{Query: "q", Expectations: "e"}, {Query: "r", Expectations: "f"}},
		},
		{
			name:    "single object and skipped entries",
			content: `{"query": "only"}`,
			want:    []ParsedItem{{Query: "only"}},
		},
		{
			name:    "entries without query dropped",
			content: `[{"expectations": "x"}, "junk", {"query": "kept"}]`,
			want:    []ParsedItem{{Query: "kept"}},
		},
		{name: "scalar", content: `"text"`, wantErr: true},
		{name: "garbage", content: `not json at all {{{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseItems(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseItems() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseItems() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseTranscript(t *testing.T) {
	ctx := context.Background()
	llm := &testutil.ChatModel{Replies: []string{"```json\n[{\"question\": \"Hey Luna\", \"expected\": \"Luna answers\"}, {\"query\": \"Thanks\"}]\n```"}}
	repos, svc := setup(t, llm, testParserConfig)
	testutil.SeedPrompt(t, repos, ParsePromptKey, "Extract queries")

	out, err := svc.ParseTranscript(ctx, &ParseRequest{Name: "night shift", Content: "User: Hey Luna\nBot: ...", SystemBehavior: testutil.Ptr("  Coach  ")})
	if err != nil {
		t.Fatalf("ParseTranscript() error = %v", err)
	}
	if out.SourceType != "text" || out.BehaviorText() != "Coach" || len(out.Queries) != 2 {
		t.Fatalf("dataset = %+v", out)
	}
	if out.Queries[1].SortOrder != 1 || out.Queries[1].Expectations != nil {
		t.Errorf("second query = %+v", out.Queries[1])
	}

	calls := llm.Calls()
	if calls[0][0].Role != schema.System || calls[0][0].Content != "Extract queries" || !strings.HasPrefix(calls[0][1].Content, "User: Hey Luna") {
		t.Errorf("messages = %+v", calls[0])
	}

	stored, err := svc.GetDataset(ctx, out.ID)
	if err != nil || len(stored.Queries) != 2 || stored.Queries[0].QueryText != "Hey Luna" {
		t.Errorf("stored = %+v, %v", stored, err)
	}
}

func TestParseTranscript_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing prompt", func(t *testing.T) {
		_, svc := setup(t, &testutil.ChatModel{}, testParserConfig)
		_, err := svc.ParseTranscript(ctx, &ParseRequest{Name: "n", Content: "text"})
		if !errors.Is(err, ErrPromptMissing) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		_, svc := setup(t, &testutil.ChatModel{}, testParserConfig)
		_, err := svc.ParseTranscript(ctx, &ParseRequest{Name: "n", Content: "  "})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("llm failure creates nothing", func(t *testing.T) {
		repos, svc := setup(t, &testutil.ChatModel{Err: errors.New("quota")}, testParserConfig)
		testutil.SeedPrompt(t, repos, ParsePromptKey, "Extract")
		if _, err := svc.ParseTranscript(ctx, &ParseRequest{Name: "n", Content: "text"}); err == nil {
			t.Fatal("expected error")
		}
		list, _ := svc.ListDatasets(ctx)
		if len(list) != 0 {
			t.Errorf("datasets = %d", len(list))
		}
	})
}

func TestParseTranscript_SplitsLongContent(t *testing.T) {
	ctx := context.Background()
	llm := &testutil.ChatModel{Respond: func(messages []*schema.Message) (string, error) {
		return `[{"query": "chunk"}]`, nil
	}}
	repos, svc := setup(t, llm, config.ParserConfig{ChunkSize: 40})
	testutil.SeedPrompt(t, repos, ParsePromptKey, "Extract")

	content := strings.Repeat("User: a question about sleep\n\n", 6)
	out, err := svc.ParseTranscript(ctx, &ParseRequest{Name: "long", Content: content})
	if err != nil {
		t.Fatal(err)
	}
	calls := len(llm.Calls())
	if calls < 2 {
		t.Fatalf("calls = %d, want split into several chunks", calls)
	}
	if len(out.Queries) != calls {
		t.Errorf("queries = %d, want one per chunk (%d)", len(out.Queries), calls)
	}
	for i, q := range out.Queries {
		if q.SortOrder != i {
			t.Errorf("query %d sort = %d", i, q.SortOrder)
		}
	}
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	llm := &testutil.ChatModel{Replies: []string{`[{"query": "hello"}]`}}
	repos, svc := setup(t, llm, config.ParserConfig{ChunkSize: 12000, MaxUploadBytes: 64})
	testutil.SeedPrompt(t, repos, ParsePromptKey, "Extract")

	out, err := svc.ImportFile(ctx, &ImportFileRequest{Name: "undefined", FileName: "log.txt", ContentType: "text/plain", Data: []byte("User: hello")})
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if out.Name != "log.txt" || out.SourceType != "file" || out.SourceFileID == nil {
		t.Errorf("dataset = %+v", out.Dataset)
	}
	record, err := repos.Files.GetByID(ctx, *out.SourceFileID)
	if err != nil || record.FileName != "log.txt" {
		t.Errorf("file record = %+v, %v", record, err)
	}

	_, err = svc.ImportFile(ctx, &ImportFileRequest{Name: "big", FileName: "big.txt", Data: []byte(strings.Repeat("x", 65))})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("oversize error = %v", err)
	}
}

func TestExtractText(t *testing.T) {
	ctx := context.Background()

	got, err := ExtractText(ctx, "notes.txt", "", []byte("plain text"))
	if err != nil || got != "plain text" {
		t.Errorf("text = %q, %v", got, err)
	}

	got, err = ExtractText(ctx, "page.html", "text/html", []byte("<html><body><p>Hello from HTML</p></body></html>"))
	if err != nil || !strings.Contains(got, "Hello from HTML") {
		t.Errorf("html = %q, %v", got, err)
	}
}

func TestDatasetAndQueryCRUD(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t, &testutil.ChatModel{}, testParserConfig)

	ds, err := svc.CreateDataset(ctx, &CreateDatasetRequest{
		Name:    "manual",
		Queries: []QueryInput{{Query: "a"}, {Query: "b", Expectations: testutil.Ptr("B")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	added, err := svc.ImportQueries(ctx, ds.ID, []QueryInput{{Query: "c"}})
	if err != nil || added[0].SortOrder != 2 {
		t.Fatalf("ImportQueries() = %+v, %v", added, err)
	}
	created, err := svc.CreateQuery(ctx, ds.ID, QueryInput{Query: "d"})
	if err != nil || created.SortOrder != 3 {
		t.Fatalf("CreateQuery() = %+v, %v", created, err)
	}
	if _, err := svc.ImportQueries(ctx, ds.ID, []QueryInput{{Query: " "}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank query error = %v", err)
	}

	updated, err := svc.UpdateDataset(ctx, ds.ID, &UpdateDatasetRequest{SystemBehavior: testutil.Ptr("Coach")})
	if err != nil || updated.BehaviorText() != "Coach" || updated.Name != "manual" {
		t.Errorf("UpdateDataset() = %+v, %v", updated, err)
	}

	full, _ := svc.GetDataset(ctx, ds.ID)
	ids := []uint{full.Queries[3].ID, full.Queries[0].ID}
	reordered, err := svc.ReorderQueries(ctx, ds.ID, ids)
	if err != nil {
		t.Fatal(err)
	}
	if reordered.Queries[0].QueryText != "d" || reordered.Queries[1].QueryText != "a" {
		t.Errorf("order = %s, %s", reordered.Queries[0].QueryText, reordered.Queries[1].QueryText)
	}

	other, _ := svc.CreateDataset(ctx, &CreateDatasetRequest{Name: "other", Queries: []QueryInput{{Query: "z"}}})
	if _, err := svc.ReorderQueries(ctx, ds.ID, []uint{other.Queries[0].ID}); !errors.Is(err, ErrQueryNotFound) {
		t.Errorf("foreign reorder error = %v", err)
	}
	if _, err := svc.UpdateQuery(ctx, ds.ID, other.Queries[0].ID, &UpdateQueryRequest{QueryText: testutil.Ptr("x")}); !errors.Is(err, ErrQueryNotFound) {
		t.Errorf("foreign update error = %v", err)
	}

	if err := svc.DeleteDataset(ctx, ds.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetDataset(ctx, ds.ID); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("get after delete error = %v", err)
	}
	if err := svc.DeleteDataset(ctx, ds.ID); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("double delete error = %v", err)
	}
}

// fakeLocker 记录被占用的运行
type fakeLocker struct {
	held map[uint]bool
}

func (l *fakeLocker) TryLock(ctx context.Context, runID uint) (bool, error) {
	if l.held[runID] {
		return false, nil
	}
	l.held[runID] = true
	return true, nil
}

func (l *fakeLocker) Unlock(ctx context.Context, runID uint) error {
	delete(l.held, runID)
	return nil
}

func TestDeleteDataset_RefusesBusyRun(t *testing.T) {
	ctx := context.Background()
	repos, svc := setup(t, &testutil.ChatModel{}, testParserConfig)
	locks := &fakeLocker{held: map[uint]bool{}}
	svc.WithRunLocks(locks)

	ds, _ := testutil.SeedDataset(t, repos, 1)
	idle := &dbmodel.Run{DatasetID: ds.ID, APIURL: "http://chat.local", AuthTokenEncrypted: "x", Status: dbmodel.RunStatusCompleted}
	busy := &dbmodel.Run{DatasetID: ds.ID, APIURL: "http://chat.local", AuthTokenEncrypted: "x", Status: dbmodel.RunStatusRunning}
	for _, r := range []*dbmodel.Run{idle, busy} {
		if err := repos.Runs.Create(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	locks.held[busy.ID] = true

	if err := svc.DeleteDataset(ctx, ds.ID); !errors.Is(err, ErrDatasetBusy) {
		t.Fatalf("DeleteDataset() error = %v, want ErrDatasetBusy", err)
	}
	if locks.held[idle.ID] {
		t.Error("lock on idle run not released")
	}
	if _, err := repos.Runs.GetByID(ctx, busy.ID); err != nil {
		t.Errorf("busy run removed: %v", err)
	}

	delete(locks.held, busy.ID)
	if err := svc.DeleteDataset(ctx, ds.ID); err != nil {
		t.Fatalf("DeleteDataset() error = %v", err)
	}
	if len(locks.held) != 0 {
		t.Errorf("locks left held: %v", locks.held)
	}
	if _, err := repos.Runs.GetByID(ctx, idle.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("run after delete error = %v", err)
	}
}

func TestEvaluateExpectations(t *testing.T) {
	ctx := context.Background()
	llm := &testutil.ChatModel{Replies: []string{
		`[{"clear": true, "suggestion": ""}, {"clear": false, "suggestion": "name the character"}]`,
		`[]`,
	}}
	repos, svc := setup(t, llm, config.ParserConfig{ClarityBatchSize: 2})
	testutil.SeedPrompt(t, repos, ClarityPromptKey, "Items (JSON array): {items_json}")
	testutil.SeedPrompt(t, repos, "system_behavior_reference", "Coach persona")
	ds, queries := testutil.SeedDataset(t, repos, 3)

	res, err := svc.EvaluateExpectations(ctx, ds.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.ClearCount != 1 || res.UnclearCount != 2 {
		t.Errorf("result = %+v", res)
	}

	calls := llm.Calls()
	if len(calls) != 2 || calls[0][0].Role != schema.System || !strings.Contains(calls[0][0].Content, "Coach persona") {
		t.Fatalf("calls = %+v", calls)
	}
	if !strings.Contains(calls[0][1].Content, `"query":"question 1"`) {
		t.Errorf("user message = %s", calls[0][1].Content)
	}

	q2, _ := repos.Queries.GetByID(ctx, queries[1].ID)
	if c := q2.ExpectationsClear(); c == nil || *c {
		t.Errorf("query 2 clear = %v", c)
	}
	if q2.Meta["expectations_feedback"] != "name the character" {
		t.Errorf("feedback = %v", q2.Meta["expectations_feedback"])
	}
	q3, _ := repos.Queries.GetByID(ctx, queries[2].ID)
	if q3.Meta["expectations_feedback"] != "Missing from LLM" {
		t.Errorf("missing feedback = %v", q3.Meta["expectations_feedback"])
	}

	updated, err := svc.UpdateQuery(ctx, ds.ID, queries[1].ID, &UpdateQueryRequest{Expectations: testutil.Ptr("Luna answers")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Meta != nil {
		t.Errorf("annotations not cleared: %v", updated.Meta)
	}
}
