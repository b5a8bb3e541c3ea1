package testutil

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel 可编程的 eino 对话模型
// Respond 为空时返回 Replies 中的下一条回复，耗尽后重复最后一条
type ChatModel struct {
	mu      sync.Mutex
	calls   [][]*schema.Message
	Replies []string
	Err     error
	Respond func(messages []*schema.Message) (string, error)
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// Generate 实现 model.BaseChatModel
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	idx := len(m.calls)
	m.calls = append(m.calls, input)
	m.mu.Unlock()

	if m.Respond != nil {
		content, err := m.Respond(input)
		if err != nil {
			return nil, err
		}
		return schema.AssistantMessage(content, nil), nil
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Replies) == 0 {
		return schema.AssistantMessage("[]", nil), nil
	}
	if idx >= len(m.Replies) {
		idx = len(m.Replies) - 1
	}
	return schema.AssistantMessage(m.Replies[idx], nil), nil
}

// Stream 实现 model.BaseChatModel
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// Calls 返回全部调用的消息
func (m *ChatModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*schema.Message, len(m.calls))
	copy(out, m.calls)
	return out
}
