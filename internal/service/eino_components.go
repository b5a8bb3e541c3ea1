package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/SohaibKhanpriv/AI-Chatbot-Validator/internal/config"
)

// newChatModel 创建 OpenAI 兼容的 ChatModel
func newChatModel(ctx context.Context, cfg *config.Config) (model.BaseChatModel, error) {
	aiCfg := cfg.AI

	var provider config.OpenAIConfig
	switch aiCfg.Provider {
	case "openai", "":
		provider = aiCfg.OpenAI
	case "deepseek":
		provider = aiCfg.DeepSeek
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider)
	}

	if provider.APIKey == "" {
		return nil, fmt.Errorf("%w: api key missing for provider %q", ErrChatModelDisabled, aiCfg.Provider)
	}

	modelName := provider.Model
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	timeout := time.Duration(provider.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  provider.APIKey,
		BaseURL: provider.BaseURL,
		Model:   modelName,
		Timeout: timeout,
	})
}
