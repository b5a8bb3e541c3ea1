package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
)

// ========== 提示词组装 ==========
// 校验器与估算器共用以下纯函数，两者发送/计数的文本逐字节一致

const (
	// DefaultTemplateKey 批量校验模板
	DefaultTemplateKey = "validate_batch"
	// ReferenceKey 全局系统行为参考文本
	ReferenceKey = "system_behavior_reference"

	itemsPlaceholder   = "{items_json}"
	itemsInputLine     = "Input list (JSON array): {items_json}"
	itemsHandoff       = "The items will be provided in the next message. Output a JSON array with one object per item, in the same order."
	itemsHandoffShort  = "The items will be provided in the next message."
	userMessagePrefix  = "Input list (JSON array):\n"
	userMessageSuffix  = "\n\nReturn only the JSON array, no markdown or extra text."
	sectionSeparator   = "\n\n---\n\n"
	datasetContextHead = "Dataset context (use to interpret expectations and evaluate responses):\n"
	referenceHead      = "Reference – Chat System & Prompts (for testing/validation):\n"

	// NotApplicableReason 不适用条目的自动通过理由
	NotApplicableReason = "N/A - criterion not applicable"
)

var notApplicableInstruction = "If this criterion does not apply to an item (e.g. no goal string in the query), " +
	`output passed: true, score: 100, reason: "` + NotApplicableReason + `".` + "\n\n"

// Turn 前序对话轮
type Turn struct {
	Query    string `json:"query"`
	Response any    `json:"response"`
}

// Item 单个待校验条目
type Item struct {
	PreviousTurns []Turn `json:"previous_turns"`
	Query         string `json:"query"`
	Expectations  string `json:"expectations"`
	Response      any    `json:"response"`
}

// Prompt 一次 LLM 调用的两条消息
type Prompt struct {
	System string
	User   string
}

// Window 条目切片 [Start, End)
type Window struct {
	Start int
	End   int
}

// Size 窗口条目数
func (w Window) Size() int {
	return w.End - w.Start
}

// SystemBehaviorSection 组装数据集上下文与全局参考
func SystemBehaviorSection(datasetBehavior, reference string) string {
	var parts []string
	if b := strings.TrimSpace(datasetBehavior); b != "" {
		parts = append(parts, datasetContextHead+b)
	}
	if r := strings.TrimSpace(reference); r != "" {
		parts = append(parts, referenceHead+r)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, sectionSeparator) + "\n\n"
}

// BuildInstruction 为单个标准生成系统消息
func BuildInstruction(template string, c *model.ValidationCriterion, systemBehavior string) string {
	additional := ""
	if c.AdditionalInfo != nil && strings.TrimSpace(*c.AdditionalInfo) != "" {
		additional = fmt.Sprintf("Additional context for this criterion: %s\n\n", strings.TrimSpace(*c.AdditionalInfo))
	}
	appliesInstruction := ""
	if !c.AppliesToAll {
		appliesInstruction = notApplicableInstruction
	}

	body := template
	if strings.Contains(body, itemsInputLine) {
		body = strings.Replace(body, itemsInputLine, itemsHandoff, 1)
	}
	body = strings.ReplaceAll(body, itemsPlaceholder, itemsHandoffShort)

	r := strings.NewReplacer(
		"{system_behavior}", systemBehavior,
		"{criterion_name}", c.Name,
		"{criterion_description}", c.Description,
		"{additional_info}", additional,
		"{applies_to_all_instruction}", appliesInstruction,
	)
	return strings.TrimSpace(r.Replace(body))
}

// Windows 将 n 个条目切分为不超过 size 的窗口
func Windows(n, size int) []Window {
	if size < 1 {
		size = 1
	}
	windows := make([]Window, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		windows = append(windows, Window{Start: start, End: min(start+size, n)})
	}
	return windows
}

// BuildItems 构造窗口内条目，前序对话取自同一运行的前 contextTurns 条
func BuildItems(pairs []repository.ResponsePair, w Window, contextTurns int) []Item {
	items := make([]Item, 0, w.Size())
	for i := w.Start; i < w.End; i++ {
		turns := make([]Turn, 0, contextTurns)
		for j := max(0, i-contextTurns); j < i; j++ {
			turns = append(turns, Turn{
				Query:    pairs[j].Query.QueryText,
				Response: pairs[j].Response.ResponsePayload(),
			})
		}
		items = append(items, Item{
			PreviousTurns: turns,
			Query:         pairs[i].Query.QueryText,
			Expectations:  pairs[i].Query.ExpectationText(),
			Response:      pairs[i].Response.ResponsePayload(),
		})
	}
	return items
}

// BuildUserMessage 生成用户消息
func BuildUserMessage(items []Item) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "", fmt.Errorf("failed to encode items: %w", err)
	}
	return userMessagePrefix + strings.TrimSuffix(buf.String(), "\n") + userMessageSuffix, nil
}

// BuildWindowPrompt 组装单个 (标准, 窗口) 的完整提示
func BuildWindowPrompt(instruction string, pairs []repository.ResponsePair, w Window, contextTurns int) (Prompt, error) {
	user, err := BuildUserMessage(BuildItems(pairs, w, contextTurns))
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: instruction, User: user}, nil
}
