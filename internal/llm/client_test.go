package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *OpenRouterClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenRouterClient(OpenRouterConfig{
		BaseURL:  srv.URL,
		APIKey:   "test-key",
		SiteURL:  "https://civicsafe.test",
		SiteName: "CivicSafe",
	})
}

func TestChatSendsOpenRouterRequest(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "https://civicsafe.test", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "CivicSafe", r.Header.Get("X-Title"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "anthropic/claude-3-haiku", body["model"])
		assert.InDelta(t, 0.1, body["temperature"], 1e-9)
		assert.EqualValues(t, 50, body["max_tokens"])

		msgs := body["messages"].([]interface{})
		require.Len(t, msgs, 1)
		assert.Equal(t, "classify this", msgs[0].(map[string]interface{})["content"])

		w.Write([]byte(`{"choices":[{"message":{"content":"  Fire\n"}}]}`))
	})

	out, err := client.Chat(context.Background(), ChatRequest{
		Model:       "anthropic/claude-3-haiku",
		Messages:    []Message{{Role: RoleUser, Text: "classify this"}},
		Temperature: 0.1,
		MaxTokens:   50,
	})
	require.NoError(t, err)
	assert.Equal(t, "Fire", out)
}

func TestChatEncodesImagesAsContentParts(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content []map[string]interface{} `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		parts := body.Messages[0].Content
		require.Len(t, parts, 2)
		assert.Equal(t, "text", parts[0]["type"])
		assert.Equal(t, "image_url", parts[1]["type"])
		url := parts[1]["image_url"].(map[string]interface{})["url"]
		assert.Equal(t, "data:image/png;base64,AQID", url)

		w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	})

	_, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{{
			Role:   RoleUser,
			Text:   "describe",
			Images: []Image{{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
		}},
	})
	require.NoError(t, err)
}

func TestChatErrors(t *testing.T) {
	t.Run("non 200", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limited"}}`))
		})
		_, err := client.Chat(context.Background(), ChatRequest{})
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	})

	t.Run("no choices", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		})
		_, err := client.Chat(context.Background(), ChatRequest{})
		assert.True(t, errors.Is(err, ErrEmptyResponse))
	})

	t.Run("blank content", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
		})
		_, err := client.Chat(context.Background(), ChatRequest{})
		assert.True(t, errors.Is(err, ErrEmptyResponse))
	})

	t.Run("malformed body", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		})
		_, err := client.Chat(context.Background(), ChatRequest{})
		assert.Error(t, err)
	})
}

func TestListModelsAndSelect(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Write([]byte(`{"data":[{"id":"mistral/mixtral"},{"id":"google/gemini-pro"},{"id":"anthropic/claude-3-sonnet"}]}`))
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 3)

	selector := NewModelSelector(client, zap.NewNop())
	assert.Equal(t, "anthropic/claude-3-sonnet", selector.Select(context.Background()))
}

func TestSelectFallsBackWhenListingFails(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	selector := NewModelSelector(client, zap.NewNop())
	assert.Equal(t, DefaultModel, selector.Select(context.Background()))
}

func TestChooseModel(t *testing.T) {
	tests := []struct {
		name      string
		available []string
		want      string
	}{
		{"preferred order wins", []string{"gpt-3.5-turbo", "anthropic/claude-3-haiku"}, "anthropic/claude-3-haiku"},
		{"any claude or gpt", []string{"mistral/mixtral", "openai/gpt-4o"}, "openai/gpt-4o"},
		{"nothing usable", []string{"mistral/mixtral"}, DefaultModel},
		{"empty listing", nil, DefaultModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var infos []ModelInfo
			for _, id := range tt.available {
				infos = append(infos, ModelInfo{ID: id})
			}
			assert.Equal(t, tt.want, ChooseModel(infos, PreferredModels, DefaultModel))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", `Sure! {"a":{"b":2}} hope this helps`, `{"a":{"b":2}}`, false},
		{"no object", "Fire", "", true},
		{"broken", `{"a":}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
