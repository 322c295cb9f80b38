// Package vision drafts incident reports from photos using a multimodal model.
package vision

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

// Outcome tells callers how an Analysis was produced.
type Outcome string

const (
	OutcomeAnalyzed  Outcome = "analyzed"  // model returned valid JSON
	OutcomeExtracted Outcome = "extracted" // fields recovered from free text
	OutcomeFallback  Outcome = "fallback"  // model unavailable, generic draft
)

type Analysis struct {
	Title       string  `json:"title"`
	ReportType  string  `json:"reportType"`
	Description string  `json:"description"`
	Outcome     Outcome `json:"outcome"`
}

type Options struct {
	Model       string
	MaxAttempts int
	RetryDelay  time.Duration
}

type Analyzer struct {
	client      llm.Client
	model       string
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewAnalyzer builds an analyzer. A nil client answers every request with a
// manual-entry draft.
func NewAnalyzer(client llm.Client, logger *zap.Logger, opts Options) *Analyzer {
	if opts.Model == "" {
		opts.Model = llm.DefaultModel
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 2
	}
	return &Analyzer{
		client:      client,
		model:       opts.Model,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		logger:      logger,
		now:         time.Now,
	}
}

// Analyze returns an error only when the payload itself is unusable
// (ErrNoImage, ErrImageTooSmall, ErrInvalidImage). Every other failure
// produces a fallback draft.
func (a *Analyzer) Analyze(ctx context.Context, raw string) (Analysis, error) {
	payload, err := DecodePayload(raw)
	if err != nil {
		return Analysis{}, err
	}

	if a.client == nil {
		res := Analysis{
			Title:       "Emergency Report - Manual Entry Required",
			ReportType:  model.IncidentOther,
			Description: "Image analysis service is not configured. Please provide details manually.",
			Outcome:     OutcomeFallback,
		}
		recordAnalysis(res)
		return res, nil
	}

	a.logger.Debug("analyzing image",
		zap.String("mimeType", payload.MIMEType),
		zap.Int("bytes", len(payload.Data)),
	)

	content, err := a.complete(ctx, payload)
	if err != nil {
		a.logger.Warn("image analysis failed, returning fallback", zap.Error(err))
		res := a.fallback(err)
		recordAnalysis(res)
		return res, nil
	}

	res, err := parseJSON(content)
	if err != nil {
		a.logger.Info("analysis JSON unusable, extracting fields from text", zap.Error(err))
		res = extractFields(content)
	}
	recordAnalysis(res)
	return res, nil
}

func (a *Analyzer) complete(ctx context.Context, payload *Payload) (string, error) {
	req := llm.ChatRequest{
		Model: a.model,
		Messages: []llm.Message{{
			Role:   llm.RoleUser,
			Text:   fmt.Sprintf(llm.ImageAnalysisPrompt, strings.Join(model.IncidentKinds, ", ")),
			Images: []llm.Image{{MIMEType: payload.MIMEType, Data: payload.Data}},
		}},
		Temperature: 0.1,
		MaxTokens:   300,
	}

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		content, err := a.client.Chat(ctx, req)
		if err == nil {
			return content, nil
		}
		lastErr = err
		a.logger.Warn("image analysis attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt < a.maxAttempts {
			if err := llm.Wait(ctx, a.retryDelay); err != nil {
				return "", errors.Join(lastErr, err)
			}
		}
	}
	return "", lastErr
}

func (a *Analyzer) fallback(err error) Analysis {
	var statusErr *llm.StatusError
	switch {
	case errors.As(err, &statusErr):
		return Analysis{
			Title:       "Incident Report",
			ReportType:  model.IncidentOther,
			Description: "Unable to analyze image. Please provide details manually.",
			Outcome:     OutcomeFallback,
		}
	case errors.Is(err, llm.ErrEmptyResponse):
		return Analysis{
			Title:       "Incident Report",
			ReportType:  model.IncidentOther,
			Description: "Image analysis failed. Please provide details manually.",
			Outcome:     OutcomeFallback,
		}
	default:
		return Analysis{
			Title:       "Emergency Report - " + a.now().Format("2006-01-02"),
			ReportType:  model.IncidentOther,
			Description: "Unable to analyze image automatically. Please provide incident details manually.",
			Outcome:     OutcomeFallback,
		}
	}
}
