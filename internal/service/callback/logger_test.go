package callback

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// reportingModel 像真实模型一样自行触发回调
type reportingModel struct {
	err error
}

func (m reportingModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	ctx = callbacks.OnStart(ctx, &model.CallbackInput{Messages: input})
	if m.err != nil {
		callbacks.OnError(ctx, m.err)
		return nil, m.err
	}
	msg := schema.AssistantMessage("[]", nil)
	callbacks.OnEnd(ctx, &model.CallbackOutput{
		Message:    msg,
		TokenUsage: &model.TokenUsage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150},
	})
	return msg, nil
}

func (m reportingModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestInstrument(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := Instrument(reportingModel{}, "validate", NewLogger(zap.New(core)))

	if _, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")}); err != nil {
		t.Fatal(err)
	}

	started := logs.FilterMessage("llm call started").All()
	if len(started) != 1 || started[0].ContextMap()["messages"] != int64(1) {
		t.Errorf("start logs = %+v", started)
	}
	finished := logs.FilterMessage("llm call finished").All()
	if len(finished) != 1 {
		t.Fatalf("finish logs = %d", len(finished))
	}
	fields := finished[0].ContextMap()
	if fields["name"] != "validate" || fields["total_tokens"] != int64(150) {
		t.Errorf("fields = %v", fields)
	}
}

func TestInstrument_Error(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := Instrument(reportingModel{err: errors.New("rate limited")}, "parse", NewLogger(zap.New(core)))

	if _, err := m.Generate(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	failed := logs.FilterMessage("llm call failed").All()
	if len(failed) != 1 || failed[0].Level != zapcore.WarnLevel {
		t.Errorf("error logs = %+v", failed)
	}
}
