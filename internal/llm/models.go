package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ModelLister lists the models available upstream.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// DefaultModel is used when no listed model is acceptable or listing fails.
const DefaultModel = "anthropic/claude-3-haiku"

// PreferredModels in order of preference.
var PreferredModels = []string{
	"anthropic/claude-3-haiku",
	"anthropic/claude-3-sonnet",
	"google/gemini-pro",
	"meta-llama/llama-3-70b-instruct",
	"openchat/openchat-7b",
	"gpt-3.5-turbo",
}

func (c *OpenRouterClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Provider: "openrouter", StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var listResp struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}
	return listResp.Data, nil
}

// ModelSelector picks the model to use for a request from the upstream listing.
type ModelSelector struct {
	lister    ModelLister
	preferred []string
	fallback  string
	logger    *zap.Logger
}

func NewModelSelector(lister ModelLister, logger *zap.Logger) *ModelSelector {
	return &ModelSelector{
		lister:    lister,
		preferred: PreferredModels,
		fallback:  DefaultModel,
		logger:    logger,
	}
}

// Select returns the first preferred model that is listed, then any listed
// claude or gpt model, then DefaultModel. Listing failures are not fatal.
func (s *ModelSelector) Select(ctx context.Context) string {
	models, err := s.lister.ListModels(ctx)
	if err != nil {
		s.logger.Warn("could not fetch available models, using fallback", zap.Error(err))
		return s.fallback
	}
	return ChooseModel(models, s.preferred, s.fallback)
}

func ChooseModel(available []ModelInfo, preferred []string, fallback string) string {
	listed := make(map[string]struct{}, len(available))
	for _, m := range available {
		listed[m.ID] = struct{}{}
	}

	for _, p := range preferred {
		if _, ok := listed[p]; ok {
			return p
		}
	}
	for _, m := range available {
		if strings.Contains(m.ID, "claude") || strings.Contains(m.ID, "gpt") {
			return m.ID
		}
	}
	return fallback
}
