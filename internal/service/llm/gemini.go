package llm

import (
	"context"
	"fmt"

	drepo "NewsDesk/internal/domain/repository"

	"google.golang.org/genai"
)

type geminiGenerator struct {
	client *genai.Client
}

func newGemini(ctx context.Context, cfg Config) (*geminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &geminiGenerator{client: client}, nil
}

func (g *geminiGenerator) generate(ctx context.Context, req drepo.ChatRequest) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: req.User}},
		Role:  genai.RoleUser,
	}}

	gc := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		},
	}
	if req.Temperature > 0 {
		t := req.Temperature
		gc.Temperature = &t
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, contents, gc)
	if err != nil {
		return "", fmt.Errorf("gemini %s call failed: %w", req.Stage, err)
	}
	return resp.Text(), nil
}
