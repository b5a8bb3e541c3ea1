// Package llmjson 解析 LLM 返回的 JSON 文本
package llmjson

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// StripFence 去除 markdown 代码块包裹
func StripFence(content string) string {
	text := strings.TrimSpace(content)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	} else {
		text = text[3:]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// Decode 去除代码块后严格解析，失败时修复一次再解析
// 修复后仍失败时返回严格解析的错误
func Decode(content string) (any, error) {
	text := StripFence(content)

	var data any
	err := json.Unmarshal([]byte(text), &data)
	if err == nil {
		return data, nil
	}
	repaired, rerr := jsonrepair.JSONRepair(text)
	if rerr != nil {
		return nil, err
	}
	if err2 := json.Unmarshal([]byte(repaired), &data); err2 != nil {
		return nil, err
	}
	return data, nil
}

// Objects 将数组或单个对象统一为对象列表，非对象元素为 nil
func Objects(data any) ([]map[string]any, bool) {
	switch v := data.(type) {
	case []any:
		out := make([]map[string]any, len(v))
		for i, el := range v {
			if obj, ok := el.(map[string]any); ok {
				out[i] = obj
			}
		}
		return out, true
	case map[string]any:
		return []map[string]any{v}, true
	default:
		return nil, false
	}
}
