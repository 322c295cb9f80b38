// Package assistant answers citizen questions about emergency reporting.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/civicsafe/api/internal/llm"
	"go.uber.org/zap"
)

// Replies used when the model cannot answer.
const (
	UnavailableReply  = "The chat service is temporarily unavailable. For emergencies call 999 directly."
	EmptyMessageReply = "Sorry, we did not receive your message. Please try again."
	NoAnswerReply     = "Sorry, we cannot answer right now. For emergencies call 999."
)

type Request struct {
	Message    string `json:"message"`
	ReportType string `json:"reportType"`
	Location   string `json:"location"`
}

type Reply struct {
	Response string `json:"response"`
	// Fallback is set when Response is one of the canned replies.
	Fallback bool `json:"fallback"`
}

type Service struct {
	client llm.Client
	model  string
	logger *zap.Logger
}

// New returns an assistant. A nil client always answers UnavailableReply.
func New(client llm.Client, model string, logger *zap.Logger) *Service {
	if model == "" {
		model = llm.DefaultModel
	}
	return &Service{client: client, model: model, logger: logger}
}

// Reply never fails; upstream errors become a canned reply.
func (s *Service) Reply(ctx context.Context, req Request) Reply {
	if s.client == nil {
		return Reply{Response: UnavailableReply, Fallback: true}
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Reply{Response: EmptyMessageReply, Fallback: true}
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = "unknown"
	}
	reportType := strings.TrimSpace(req.ReportType)
	if reportType == "" {
		reportType = "general"
	}

	answer, err := s.client.Chat(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Text: llm.ChatSystemPrompt},
			{Role: llm.RoleUser, Text: fmt.Sprintf(llm.ChatUserPrompt, location, reportType, message)},
		},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		s.logger.Warn("chat completion failed", zap.Error(err))
		if errors.Is(err, llm.ErrEmptyResponse) {
			return Reply{Response: NoAnswerReply, Fallback: true}
		}
		return Reply{Response: UnavailableReply, Fallback: true}
	}
	return Reply{Response: answer}
}
