package service

import (
	"context"
	"errors"
	"testing"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/repository"
	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/testutil"
)

func TestNewChatModel(t *testing.T) {
	tests := []struct {
		name    string
		ai      config.AIConfig
		wantErr error
	}{
		{
			name:    "missing key",
			ai:      config.AIConfig{Provider: "openai"},
			wantErr: ErrChatModelDisabled,
		},
		{
			name: "deepseek",
			ai: config.AIConfig{Provider: "deepseek", DeepSeek: config.OpenAIConfig{
				APIKey: "sk-test", BaseURL: "https://api.deepseek.com/v1", Model: "deepseek-chat",
			}},
		},
		{
			name: "openai default model",
			ai:   config.AIConfig{Provider: "openai", OpenAI: config.OpenAIConfig{APIKey: "sk-test"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := newChatModel(context.Background(), &config.Config{AI: tt.ai})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || m == nil {
				t.Errorf("newChatModel() = %v, %v", m, err)
			}
		})
	}

	if _, err := newChatModel(context.Background(), &config.Config{AI: config.AIConfig{Provider: "qwen"}}); err == nil {
		t.Error("unsupported provider should fail")
	}
}

func TestNewServices(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewRepositories(testutil.NewTestDB(t))
	cfg := &config.Config{
		AI:         config.AIConfig{Provider: "openai"},
		Validation: config.ValidationConfig{BatchSize: 50, ContextTurns: 2},
		Storage:    config.StorageConfig{Type: "local", Local: config.LocalStorageConfig{BasePath: t.TempDir()}},
	}

	if _, err := NewServices(ctx, repos, cfg, nil, nil); err == nil {
		t.Fatal("missing encryption key should fail")
	}

	cfg.Security.EncryptionKey = "test-key"
	svcs, err := NewServices(ctx, repos, cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewServices() error = %v", err)
	}
	if svcs.Runs == nil || svcs.Datasets == nil || svcs.Catalog == nil || svcs.Reports == nil || svcs.Usage == nil {
		t.Fatalf("services = %+v", svcs)
	}

	// 未配置 LLM 时调用返回配置错误
	if _, err := svcs.ChatModel.Generate(ctx, nil); !errors.Is(err, ErrChatModelDisabled) {
		t.Errorf("Generate() error = %v", err)
	}
	if err := svcs.Shutdown(ctx); err != nil {
		t.Error(err)
	}
}
