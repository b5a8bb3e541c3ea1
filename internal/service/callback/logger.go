// Package callback 提供 Eino Callback 日志与指标支持
package callback

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/metrics"
)

// Logger 日志回调处理器
// 实现 callbacks.Handler 接口，记录 LLM 调用与 token 用量
type Logger struct {
	logger *zap.Logger
}

var _ callbacks.Handler = (*Logger)(nil)

// NewLogger 创建日志回调处理器
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("eino")}
}

// OnStart 组件执行开始时调用
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	fields := runFields(info)
	if in := model.ConvCallbackInput(input); in != nil {
		fields = append(fields, zap.Int("messages", len(in.Messages)))
	}
	l.logger.Debug("llm call started", fields...)
	return ctx
}

// OnEnd 组件执行成功结束时调用
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	fields := runFields(info)
	if out := model.ConvCallbackOutput(output); out != nil && out.TokenUsage != nil {
		usage := out.TokenUsage
		metrics.LLMTokensTotal.WithLabelValues(info.Name, "prompt").Add(float64(usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(info.Name, "completion").Add(float64(usage.CompletionTokens))
		fields = append(fields,
			zap.Int("prompt_tokens", usage.PromptTokens),
			zap.Int("completion_tokens", usage.CompletionTokens),
			zap.Int("total_tokens", usage.TotalTokens),
		)
	}
	l.logger.Debug("llm call finished", fields...)
	return ctx
}

// OnError 组件执行出错时调用
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	l.logger.Warn("llm call failed", append(runFields(info), zap.Error(err))...)
	return ctx
}

// OnStartWithStreamInput 流式输入开始时调用
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

// OnEndWithStreamOutput 流式输出结束时调用
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

func runFields(info *callbacks.RunInfo) []zap.Field {
	if info == nil {
		return nil
	}
	return []zap.Field{
		zap.String("name", info.Name),
		zap.String("type", info.Type),
		zap.String("component", string(info.Component)),
	}
}

// ========== ChatModel 包装 ==========

// instrumented 为每次调用注入回调上下文
type instrumented struct {
	inner    model.BaseChatModel
	name     string
	handlers []callbacks.Handler
}

// Instrument 包装 ChatModel，使内部触发的回调送达 handlers
func Instrument(m model.BaseChatModel, name string, handlers ...callbacks.Handler) model.BaseChatModel {
	return &instrumented{inner: m, name: name, handlers: handlers}
}

func (m *instrumented) ctx(ctx context.Context) context.Context {
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      m.name,
		Type:      "ChatModel",
		Component: components.ComponentOfChatModel,
	}, m.handlers...)
}

// Generate 实现 model.BaseChatModel
func (m *instrumented) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return m.inner.Generate(m.ctx(ctx), input, opts...)
}

// Stream 实现 model.BaseChatModel
func (m *instrumented) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return m.inner.Stream(m.ctx(ctx), input, opts...)
}
