package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Client is a chat-completion backend.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

type ChatRequest struct {
	// Model may be empty, in which case the backend uses its own default.
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Message struct {
	Role   string
	Text   string
	Images []Image
}

// Image is an inline image attached to a message.
type Image struct {
	MIMEType string
	Data     []byte
}

// Roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the upstream replies without content.
var ErrEmptyResponse = errors.New("empty response from model")

// StatusError is returned for a non-2xx upstream reply.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

type OpenRouterConfig struct {
	BaseURL  string
	APIKey   string
	SiteURL  string
	SiteName string
	Timeout  time.Duration
}

// OpenRouterClient talks to an OpenRouter compatible chat completions API.
type OpenRouterClient struct {
	baseURL    string
	apiKey     string
	siteURL    string
	siteName   string
	httpClient *http.Client
}

func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &OpenRouterClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		siteURL:  cfg.SiteURL,
		siteName: cfg.SiteName,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatMessage content is a plain string, or a list of parts when images are attached.
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func toChatMessages(msgs []Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		if len(m.Images) == 0 {
			out = append(out, chatMessage{Role: m.Role, Content: m.Text})
			continue
		}
		parts := []contentPart{{Type: "text", Text: m.Text}}
		for _, img := range m.Images {
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: DataURI(img)},
			})
		}
		out = append(out, chatMessage{Role: m.Role, Content: parts})
	}
	return out
}

// DataURI encodes img as a base64 data URI.
func DataURI(img Image) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func (c *OpenRouterClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	start := time.Now()
	content, err := c.chat(ctx, req)
	recordRequest("openrouter", err, time.Since(start))
	return content, err
}

func (c *OpenRouterClient) chat(ctx context.Context, req ChatRequest) (string, error) {
	reqBody := chatCompletionRequest{
		Model:       req.Model,
		Messages:    toChatMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: "openrouter", StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if chatResp.Error != nil && chatResp.Error.Message != "" {
		return "", fmt.Errorf("openrouter error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (c *OpenRouterClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var (
	jsonFenceRe = regexp.MustCompile("(?i)```json\\s*")
	fenceRe     = regexp.MustCompile("```\\s*")
)

// StripCodeFences removes markdown code fences the model may wrap output in.
func StripCodeFences(response string) string {
	response = jsonFenceRe.ReplaceAllString(response, "")
	response = fenceRe.ReplaceAllString(response, "")
	return strings.TrimSpace(response)
}

// ExtractJSON extracts JSON from LLM response that may contain extra text
func ExtractJSON(response string) (string, error) {
	response = StripCodeFences(strings.TrimSpace(response))

	// Find the first { and last }
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no valid JSON object found in response")
	}

	jsonStr := response[start : end+1]

	// Validate it's valid JSON
	var js json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &js); err != nil {
		return "", fmt.Errorf("extracted text is not valid JSON: %w", err)
	}

	return jsonStr, nil
}
