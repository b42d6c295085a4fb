package llm

import (
	"context"
	"fmt"
	"sync"

	drepo "NewsDesk/internal/domain/repository"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// openAIGenerator talks to any OpenAI-compatible endpoint. One ChatModel is
// built lazily per model name; sampling is set per call.
type openAIGenerator struct {
	cfg Config

	mu     sync.Mutex
	models map[string]model.ChatModel
}

func newOpenAI(cfg Config) *openAIGenerator {
	return &openAIGenerator{cfg: cfg, models: make(map[string]model.ChatModel)}
}

func (g *openAIGenerator) chatModel(ctx context.Context, name string) (model.ChatModel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cm, ok := g.models[name]; ok {
		return cm, nil
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: g.cfg.BaseURL,
		APIKey:  g.cfg.APIKey,
		Model:   name,
		Timeout: g.cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model %s: %w", name, err)
	}
	g.models[name] = cm
	return cm, nil
}

func (g *openAIGenerator) generate(ctx context.Context, req drepo.ChatRequest) (string, error) {
	cm, err := g.chatModel(ctx, req.Model)
	if err != nil {
		return "", err
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: req.System},
		{Role: schema.User, Content: req.User},
	}
	var opts []model.Option
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	resp, err := cm.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", req.Stage, err)
	}
	return resp.Content, nil
}
