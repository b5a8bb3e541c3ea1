package replay

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/testutil"
)

func TestClient_Replay(t *testing.T) {
	tests := []struct {
		name         string
		events       []string
		wantText     string
		wantLast     bool
		wantTimeline []string
	}{
		{
			name: "string chunks concatenate until stream end",
			events: []string{
				testutil.Event("Hel", false),
				testutil.Event("lo", false),
			},
			wantText: "Hello",
		},
		{
			name: "terminal chunk with nested message object",
			events: []string{
				testutil.Event("partial", false),
				testutil.Event(map[string]any{"avatar": "coach", "message": map[string]any{"text": "Final answer"}}, true),
			},
			wantText:     "Final answer",
			wantLast:     true,
			wantTimeline: []string{"coach"},
		},
		{
			name: "terminal nested message is encoded json",
			events: []string{
				testutil.Event(map[string]any{"message": `{"text":"decoded","action":"open_map"}`}, true),
			},
			wantText: "decoded",
			wantLast: true,
		},
		{
			name: "terminal nested message plain string",
			events: []string{
				testutil.Event(map[string]any{"message": "plain reply"}, true),
			},
			wantText: "plain reply",
			wantLast: true,
		},
		{
			name: "terminal nested object without text is rendered whole",
			events: []string{
				testutil.Event("partial", false),
				testutil.Event(map[string]any{"text": "own text", "message": map[string]any{"action": "open_map"}}, true),
			},
			wantText: `{"action":"open_map"}`,
			wantLast: true,
		},
		{
			name: "terminal nested scalar message",
			events: []string{
				testutil.Event(map[string]any{"message": 42}, true),
			},
			wantText: "42",
			wantLast: true,
		},
		{
			name: "terminal falls back to chunk text",
			events: []string{
				testutil.Event(map[string]any{"text": "own text"}, true),
			},
			wantText: "own text",
			wantLast: true,
		},
		{
			name: "terminal falls back to accumulated text",
			events: []string{
				testutil.Event("abc", false),
				testutil.Event(map[string]any{"action": "noop"}, true),
			},
			wantText: "abc",
			wantLast: true,
		},
		{
			name: "malformed lines and null chunks are skipped",
			events: []string{
				"data: {not json",
				": keep-alive",
				testutil.Event(nil, false),
				testutil.Event("ok", true),
			},
			wantText: "ok",
		},
		{
			name: "events after terminal are ignored",
			events: []string{
				testutil.Event("done", true),
				testutil.Event("ignored", false),
			},
			wantText: "done",
		},
		{
			name: "persona timeline records every tagged structured chunk",
			events: []string{
				testutil.Event(map[string]any{"character": "guide", "text": "step one"}, false),
				testutil.Event(map[string]any{"text": "untagged"}, false),
				testutil.Event(map[string]any{"message": map[string]any{"avatar": "coach", "text": "step two"}}, false),
				testutil.Event(map[string]any{"avatar": "guide", "message": map[string]any{"text": "bye"}}, true),
			},
			wantText:     "bye",
			wantLast:     true,
			wantTimeline: []string{"guide", "coach", "guide"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewStreamServer(t, func(testutil.StreamRequest) []string { return tt.events })
			c := NewClient(config.ReplayConfig{Timeout: 5}, nil)

			res, err := c.Replay(context.Background(), Request{URL: srv.URL, Token: "tok", Message: "hi"})
			if err != nil {
				t.Fatalf("Replay() error = %v", err)
			}
			if res.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", res.Text, tt.wantText)
			}
			if (res.LastChunk != nil) != tt.wantLast {
				t.Errorf("LastChunk = %v, wantLast %v", res.LastChunk, tt.wantLast)
			}
			if len(res.Timeline) != len(tt.wantTimeline) {
				t.Fatalf("Timeline = %+v, want avatars %v", res.Timeline, tt.wantTimeline)
			}
			for i, avatar := range tt.wantTimeline {
				if res.Timeline[i].Avatar != avatar || res.Timeline[i].Order != i+1 {
					t.Errorf("Timeline[%d] = %+v, want avatar %s order %d", i, res.Timeline[i], avatar, i+1)
				}
			}
		})
	}
}

func TestClient_RequestShape(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		wantAuth string
	}{
		{name: "adds bearer prefix", token: "abc", wantAuth: "Bearer abc"},
		{name: "keeps existing prefix", token: "Bearer abc", wantAuth: "Bearer abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewStreamServer(t, func(testutil.StreamRequest) []string {
				return []string{testutil.Event("ok", true)}
			})
			c := NewClient(config.ReplayConfig{}, nil)
			if _, err := c.Replay(context.Background(), Request{URL: srv.URL, Token: tt.token, Message: "where am I?", NewThread: true}); err != nil {
				t.Fatal(err)
			}

			reqs := srv.Requests()
			if len(reqs) != 1 {
				t.Fatalf("requests = %d", len(reqs))
			}
			got := reqs[0]
			if got.Authorization != tt.wantAuth {
				t.Errorf("Authorization = %q, want %q", got.Authorization, tt.wantAuth)
			}
			if got.Message != "where am I?" || !got.NewThread || got.IsAudio {
				t.Errorf("body = %+v", got)
			}
		})
	}
}

func TestClient_TimelineExcerptTruncated(t *testing.T) {
	long := strings.Repeat("é", 300)
	srv := testutil.NewStreamServer(t, func(testutil.StreamRequest) []string {
		return []string{testutil.Event(map[string]any{"avatar": "coach", "text": long}, true)}
	})
	res, err := NewClient(config.ReplayConfig{}, nil).Replay(context.Background(), Request{URL: srv.URL, Token: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(res.Timeline[0].Text)); n != 200 {
		t.Errorf("excerpt length = %d, want 200", n)
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := testutil.NewStreamServer(t, nil)
	srv.Status = http.StatusBadGateway

	_, err := NewClient(config.ReplayConfig{}, nil).Replay(context.Background(), Request{URL: srv.URL, Token: "t", Message: "x"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
}

func TestClient_TransportError(t *testing.T) {
	_, err := NewClient(config.ReplayConfig{Timeout: 1}, nil).Replay(context.Background(), Request{URL: "http://127.0.0.1:1/chat", Token: "t"})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !strings.Contains(err.Error(), "failed to reach chat endpoint") {
		t.Errorf("error = %v", err)
	}
}
