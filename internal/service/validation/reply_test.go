package validation

import (
	"strings"
	"testing"
)

func TestDecodeReply(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		n           int
		wantKind    ReplyKind
		wantPassed  []bool
		wantReasons []string
	}{
		{
			name:        "exact array",
			content:     `[{"passed": true, "score": 90, "reason": "good"}, {"passed": false, "score": 10, "reason": "bad"}]`,
			n:           2,
			wantKind:    ReplyArray,
			wantPassed:  []bool{true, false},
			wantReasons: []string{"good", "bad"},
		},
		{
			name:        "short array padded",
			content:     `[{"passed": true, "score": 80, "reason": "ok"}]`,
			n:           3,
			wantKind:    ReplyArray,
			wantPassed:  []bool{true, false, false},
			wantReasons: []string{"ok", MissingReason, MissingReason},
		},
		{
			name:        "long array truncated",
			content:     `[{"passed": true}, {"passed": true}, {"passed": false}]`,
			n:           2,
			wantKind:    ReplyArray,
			wantPassed:  []bool{true, true},
			wantReasons: []string{"", ""},
		},
		{
			name:        "fenced json",
			content:     "```json\n[{\"passed\": true, \"reason\": \"fenced\"}]\n```",
			n:           1,
			wantKind:    ReplyArray,
			wantPassed:  []bool{true},
			wantReasons: []string{"fenced"},
		},
		{
			name:        "single object wrapped",
			content:     `{"passed": true, "score": 100, "reason": "solo"}`,
			n:           2,
			wantKind:    ReplySingle,
			wantPassed:  []bool{true, false},
			wantReasons: []string{"solo", MissingReason},
		},
		{
			name:        "non-object entries",
			content:     `["yes", {"passed": "true", "reason": 5}]`,
			n:           2,
			wantKind:    ReplyArray,
			wantPassed:  []bool{false, true},
			wantReasons: []string{InvalidReason, "5"},
		},
		{
			name:        "trailing comma repaired",
			content:     `[{"passed": true, "reason": "fixed"},]`,
			n:           1,
			wantKind:    ReplyArray,
			wantPassed:  []bool{true},
			wantReasons: []string{"fixed"},
		},
		{
			name:        "scalar reply malformed",
			content:     `42`,
			n:           2,
			wantKind:    ReplyMalformed,
			wantPassed:  []bool{false, false},
			wantReasons: []string{"Malformed LLM reply", "Malformed LLM reply"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := DecodeReply(tt.content)
			if reply.Kind != tt.wantKind {
				t.Fatalf("Kind = %s, want %s (err %v)", reply.Kind, tt.wantKind, reply.Err)
			}
			verdicts := reply.Verdicts(tt.n)
			if len(verdicts) != tt.n {
				t.Fatalf("len(verdicts) = %d, want %d", len(verdicts), tt.n)
			}
			for i, v := range verdicts {
				if v.Passed != tt.wantPassed[i] {
					t.Errorf("verdict[%d].Passed = %v, want %v", i, v.Passed, tt.wantPassed[i])
				}
				if !strings.HasPrefix(v.Reason, tt.wantReasons[i]) {
					t.Errorf("verdict[%d].Reason = %q, want prefix %q", i, v.Reason, tt.wantReasons[i])
				}
			}
		})
	}
}

func TestDecodeReply_Scores(t *testing.T) {
	reply := DecodeReply(`[{"passed": true, "score": 87.456}, {"passed": true, "score": "55.5"}, {"passed": true, "score": 250}, {"passed": true, "score": null}]`)
	verdicts := reply.Verdicts(4)

	want := []*float64{ptrF(87.46), ptrF(55.5), ptrF(100), nil}
	for i, w := range want {
		got := verdicts[i].Score
		switch {
		case w == nil && got != nil:
			t.Errorf("score[%d] = %v, want nil", i, *got)
		case w != nil && (got == nil || *got != *w):
			t.Errorf("score[%d] = %v, want %v", i, got, *w)
		}
	}
}

func TestFailedVerdicts(t *testing.T) {
	verdicts := FailedVerdicts(3, "timeout")
	for _, v := range verdicts {
		if v.Passed || v.Score == nil || *v.Score != 0 || v.Reason != "timeout" {
			t.Errorf("verdict = %+v", v)
		}
	}
}

func ptrF(f float64) *float64 { return &f }

func TestVerdicts_PaddedEntriesScoreZero(t *testing.T) {
	verdicts := DecodeReply(`["bogus"]`).Verdicts(2)
	for i, want := range []string{InvalidReason, MissingReason} {
		v := verdicts[i]
		if v.Reason != want || v.Score == nil || *v.Score != 0 {
			t.Errorf("verdict[%d] = %+v, want reason %q with score 0", i, v, want)
		}
	}
}
