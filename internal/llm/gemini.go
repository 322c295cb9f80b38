package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiClient implements Client on the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Chat ignores req.Model unless it names a gemini model; OpenRouter ids are
// meaningless to this backend.
func (g *GeminiClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	start := time.Now()
	content, err := g.chat(ctx, req)
	recordRequest("gemini", err, time.Since(start))
	return content, err
}

func (g *GeminiClient) chat(ctx context.Context, req ChatRequest) (string, error) {
	model := g.model
	if strings.HasPrefix(req.Model, "gemini-") {
		model = req.Model
	}

	contents, cfg := geminiRequest(req)
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// geminiRequest maps req onto genai contents. The system message becomes
// the system instruction.
func geminiRequest(req ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	var contents []*genai.Content
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			cfg.SystemInstruction = genai.NewContentFromText(m.Text, genai.RoleUser)
			continue
		}

		parts := []*genai.Part{genai.NewPartFromText(m.Text)}
		for _, img := range m.Images {
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
		}

		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents, cfg
}
