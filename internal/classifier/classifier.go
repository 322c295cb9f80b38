// Package classifier routes incident descriptions to a dispatch department
// using an LLM, falling back to keyword rules when the model is unavailable.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civicsafe/api/internal/llm"
	"github.com/civicsafe/api/internal/model"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured    = errors.New("classification service not configured")
	ErrEmptyDescription = errors.New("description is required")
)

// DegradedNotice is reported when every model attempt failed.
const DegradedNotice = "AI classification failed, used keyword matching"

// Outcome tells callers how a Result was produced.
type Outcome string

const (
	// OutcomeClassified means the model produced a recognised department.
	OutcomeClassified Outcome = "classified"
	// OutcomeDegraded means the keyword rules decided.
	OutcomeDegraded Outcome = "degraded"
)

type Result struct {
	Department Department `json:"department"`
	Confidence string     `json:"confidence"`
	Via        string     `json:"via"`
	Outcome    Outcome    `json:"outcome"`
	Model      string     `json:"model,omitempty"`
	Attempts   int        `json:"attempts"`
	// Notice is set when all model attempts failed.
	Notice string `json:"notice,omitempty"`
}

// ModelSelector resolves the model id for a request.
type ModelSelector interface {
	Select(ctx context.Context) string
}

type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Rules       *Rules
}

type Service struct {
	client      llm.Client
	models      ModelSelector
	rules       *Rules
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
}

// New builds a classifier. A nil client yields a service that reports
// ErrNotConfigured; models may be nil when the backend picks its own model.
func New(client llm.Client, models ModelSelector, logger *zap.Logger, opts Options) *Service {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 2
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Rules == nil {
		opts.Rules = defaultRules
	}
	return &Service{
		client:      client,
		models:      models,
		rules:       opts.Rules,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		logger:      logger,
	}
}

func (s *Service) Configured() bool {
	return s.client != nil
}

// Classify never fails because of the upstream model: transport errors are
// retried with a fixed delay and then answered by the keyword rules. Errors
// are returned only for an empty description or a missing backend.
func (s *Service) Classify(ctx context.Context, description string) (Result, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Result{}, ErrEmptyDescription
	}
	if s.client == nil {
		return Result{Department: Other, Confidence: model.ConfidenceLow}, ErrNotConfigured
	}

	modelID := ""
	if s.models != nil {
		modelID = s.models.Select(ctx)
	}
	prompt := fmt.Sprintf(llm.ClassificationPrompt, departmentList(), description)

	attempts := 0
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		attempts = attempt
		reply, err := s.client.Chat(ctx, llm.ChatRequest{
			Model:       modelID,
			Messages:    []llm.Message{{Role: llm.RoleUser, Text: prompt}},
			Temperature: 0.1,
			MaxTokens:   50,
		})
		if err == nil {
			res := s.interpret(reply, description)
			res.Model = modelID
			res.Attempts = attempt
			recordClassification(res)
			return res, nil
		}

		s.logger.Warn("classification attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", s.maxAttempts),
			zap.Error(err),
		)
		if attempt < s.maxAttempts {
			if err := llm.Wait(ctx, s.retryDelay); err != nil {
				break
			}
		}
	}

	res := Result{
		Department: s.rules.Match(description),
		Confidence: model.ConfidenceLow,
		Via:        model.ClassifiedViaHeuristic,
		Outcome:    OutcomeDegraded,
		Model:      modelID,
		Attempts:   attempts,
		Notice:     DegradedNotice,
	}
	recordClassification(res)
	return res, nil
}

func (s *Service) interpret(reply, description string) Result {
	if dept, ok := ParseDepartment(reply); ok {
		confidence := model.ConfidenceHigh
		if dept == Other {
			confidence = model.ConfidenceLow
		}
		return Result{
			Department: dept,
			Confidence: confidence,
			Via:        model.ClassifiedViaModel,
			Outcome:    OutcomeClassified,
		}
	}

	s.logger.Debug("unrecognised department label, using keyword rules", zap.String("reply", reply))
	return Result{
		Department: s.rules.Match(description),
		Confidence: model.ConfidenceLow,
		Via:        model.ClassifiedViaHeuristic,
		Outcome:    OutcomeDegraded,
	}
}
