package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/llmjson"
)

const (
	// MissingReason 回复条目不足时的补齐理由
	MissingReason = "Missing from LLM"
	// InvalidReason 回复条目不是对象时的理由
	InvalidReason = "Invalid result"
)

// ReplyKind LLM 回复形态
type ReplyKind string

const (
	ReplyArray     ReplyKind = "array"
	ReplySingle    ReplyKind = "single"
	ReplyMalformed ReplyKind = "malformed"
)

// Verdict 单条判定
type Verdict struct {
	Passed bool
	Score  *float64
	Reason string
}

// Entry 回复中的一个元素，Valid 为 false 表示该元素不是对象
type Entry struct {
	Verdict Verdict
	Valid   bool
}

// Reply 解码后的 LLM 回复
type Reply struct {
	Kind    ReplyKind
	Entries []Entry
	Err     error
}

// DecodeReply 解码 LLM 回复
// 支持代码块包裹；严格解析失败时尝试修复一次，仍失败则为 malformed
func DecodeReply(content string) Reply {
	data, err := llmjson.Decode(content)
	if err != nil {
		return Reply{Kind: ReplyMalformed, Err: err}
	}

	switch v := data.(type) {
	case []any:
		entries := make([]Entry, 0, len(v))
		for _, el := range v {
			entries = append(entries, decodeEntry(el))
		}
		return Reply{Kind: ReplyArray, Entries: entries}
	case map[string]any:
		return Reply{Kind: ReplySingle, Entries: []Entry{decodeEntry(v)}}
	default:
		return Reply{Kind: ReplyMalformed, Err: fmt.Errorf("unexpected reply type %T", data)}
	}
}

// Verdicts 将回复对齐到 n 个条目：不足补齐，多余截断
func (r Reply) Verdicts(n int) []Verdict {
	if r.Kind == ReplyMalformed {
		return FailedVerdicts(n, fmt.Sprintf("Malformed LLM reply: %v", r.Err))
	}
	out := make([]Verdict, 0, n)
	for i := 0; i < n; i++ {
		zero := 0.0
		switch {
		case i >= len(r.Entries):
			out = append(out, Verdict{Passed: false, Score: &zero, Reason: MissingReason})
		case !r.Entries[i].Valid:
			out = append(out, Verdict{Passed: false, Score: &zero, Reason: InvalidReason})
		default:
			out = append(out, r.Entries[i].Verdict)
		}
	}
	return out
}

// FailedVerdicts 生成 n 条失败判定，分数为 0
func FailedVerdicts(n int, reason string) []Verdict {
	out := make([]Verdict, n)
	for i := range out {
		zero := 0.0
		out[i] = Verdict{Passed: false, Score: &zero, Reason: reason}
	}
	return out
}

func decodeEntry(el any) Entry {
	obj, ok := el.(map[string]any)
	if !ok {
		return Entry{}
	}
	v := Verdict{
		Passed: truthy(obj["passed"]),
		Score:  toScore(obj["score"]),
	}
	switch reason := obj["reason"].(type) {
	case nil:
	case string:
		v.Reason = reason
	default:
		v.Reason = fmt.Sprint(reason)
	}
	return Entry{Verdict: v, Valid: true}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "pass", "passed", "1":
			return true
		}
	}
	return false
}

// toScore 解析分数，限制在 [0, 100] 并保留两位小数
func toScore(v any) *float64 {
	var f float64
	switch s := v.(type) {
	case float64:
		f = s
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	f = math.Round(math.Min(math.Max(f, 0), 100)*100) / 100
	return &f
}
