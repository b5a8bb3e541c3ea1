// Package replay 将单条查询回放到被测聊天接口并汇总流式响应
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/model"
)

const (
	dataPrefix     = "data: "
	maxExcerptLen  = 200
	maxErrorBody   = 512
	maxStreamLine  = 4 << 20
	defaultTimeout = 120 * time.Second
)

// Request 单次回放请求
type Request struct {
	URL       string
	Token     string
	Message   string
	NewThread bool
}

// Result 回放结果
type Result struct {
	Text      string
	LastChunk map[string]any
	Timeline  []model.TimelineEntry
}

// StatusError 聊天接口返回非 2xx 状态
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// Replayer 回放接口，供执行器注入
type Replayer interface {
	Replay(ctx context.Context, req Request) (*Result, error)
}

// Client 流式聊天接口客户端
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Replayer = (*Client)(nil)

// NewClient 创建客户端
func NewClient(cfg config.ReplayConfig, logger *zap.Logger) *Client {
	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return NewClientWithHTTP(&http.Client{Timeout: timeout}, logger)
}

// NewClientWithHTTP 使用指定 http.Client 创建客户端
func NewClientWithHTTP(hc *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{httpClient: hc, logger: logger}
}

type streamEvent struct {
	Chunk       json.RawMessage `json:"chunk"`
	LastMessage bool            `json:"last_message"`
}

// Replay 发送一条消息并消费事件流，直到终止事件或流结束
func (c *Client) Replay(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(map[string]any{
		"message":    req.Message,
		"new_thread": req.NewThread,
		"is_audio":   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", bearer(req.Token))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach chat endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	return c.consume(resp.Body)
}

func (c *Client) consume(r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

	var (
		text     strings.Builder
		result   = &Result{}
		terminal bool
	)

	for !terminal && scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &ev); err != nil {
			c.logger.Debug("skipping malformed stream line", zap.Error(err))
			continue
		}
		if len(ev.Chunk) == 0 || string(ev.Chunk) == "null" {
			continue
		}

		var chunk any
		if err := json.Unmarshal(ev.Chunk, &chunk); err != nil {
			continue
		}

		switch v := chunk.(type) {
		case string:
			text.WriteString(v)
			if ev.LastMessage {
				terminal = true
				result.Text = text.String()
			}
		case map[string]any:
			if avatar := Persona(v); avatar != "" {
				result.Timeline = append(result.Timeline, model.TimelineEntry{
					Order:  len(result.Timeline) + 1,
					Avatar: avatar,
					Text:   truncate(excerptOf(v), maxExcerptLen),
				})
			}
			if ev.LastMessage {
				terminal = true
				result.LastChunk = v
				result.Text = finalText(v, text.String())
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat stream: %w", err)
	}

	if !terminal {
		result.Text = text.String()
	}
	return result, nil
}

// finalText 终止块的最终文本：存在嵌套消息时取消息文本，缺少文本字段时取消息本身；
// 没有嵌套消息时取块自身文本，最后为已累积文本
func finalText(chunk map[string]any, accumulated string) string {
	switch msg := chunk["message"].(type) {
	case nil:
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(msg), &decoded); err == nil {
			if s, ok := decoded["text"].(string); ok {
				return s
			}
		}
		return msg
	case map[string]any:
		if s, ok := msg["text"].(string); ok {
			return s
		}
		return stringify(msg)
	default:
		return stringify(msg)
	}
	if s, ok := chunk["text"].(string); ok && s != "" {
		return s
	}
	return accumulated
}

func stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Persona 从块或嵌套消息中读取角色标记
func Persona(chunk map[string]any) string {
	if s := firstString(chunk, "avatar", "character"); s != "" {
		return s
	}
	if msg, ok := chunk["message"].(map[string]any); ok {
		return firstString(msg, "avatar", "character")
	}
	return ""
}

func excerptOf(chunk map[string]any) string {
	if s, ok := chunk["text"].(string); ok && s != "" {
		return s
	}
	switch msg := chunk["message"].(type) {
	case map[string]any:
		if s, ok := msg["text"].(string); ok {
			return s
		}
	case string:
		return msg
	}
	return ""
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func bearer(token string) string {
	if strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}
