package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/civicsafe/api/internal/assistant"
	"github.com/civicsafe/api/internal/classifier"
	"github.com/civicsafe/api/internal/vision"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Classifier interface {
	Classify(ctx context.Context, description string) (classifier.Result, error)
}

type ImageAnalyzer interface {
	Analyze(ctx context.Context, raw string) (vision.Analysis, error)
}

type ChatAssistant interface {
	Reply(ctx context.Context, req assistant.Request) assistant.Reply
}

type AIHandler struct {
	classifier Classifier
	analyzer   ImageAnalyzer
	assistant  ChatAssistant
	timeout    time.Duration
	logger     *zap.Logger
}

func NewAIHandler(c Classifier, a ImageAnalyzer, chat ChatAssistant, timeout time.Duration, logger *zap.Logger) *AIHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AIHandler{
		classifier: c,
		analyzer:   a,
		assistant:  chat,
		timeout:    timeout,
		logger:     logger,
	}
}

// detach keeps upstream calls running when the client goes away; they end
// at the LLM timeout or when retries are exhausted.
func detach(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), timeout)
}

type ClassifyRequest struct {
	Description string `json:"description"`
}

// Classify handles POST /api/ai/classify
func (h *AIHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid description"})
		return
	}

	ctx, cancel := detach(c, h.timeout)
	defer cancel()

	res, err := h.classifier.Classify(ctx, req.Description)
	switch {
	case errors.Is(err, classifier.ErrEmptyDescription):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid description"})
		return
	case errors.Is(err, classifier.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"department": classifier.Other,
			"error":      "classification service not configured",
		})
		return
	case err != nil:
		h.logger.Error("classification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "classification failed"})
		return
	}

	c.JSON(http.StatusOK, res)
}

type AnalyzeImageRequest struct {
	Image string `json:"image"`
}

// AnalyzeImage handles POST /api/analyze-image
func (h *AIHandler) AnalyzeImage(c *gin.Context) {
	var req AnalyzeImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": vision.ErrNoImage.Error()})
		return
	}

	ctx, cancel := detach(c, h.timeout)
	defer cancel()

	analysis, err := h.analyzer.Analyze(ctx, req.Image)
	if err != nil {
		if errors.Is(err, vision.ErrNoImage) || errors.Is(err, vision.ErrImageTooSmall) || errors.Is(err, vision.ErrInvalidImage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("image analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "image analysis failed"})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// Chat handles POST /api/chat. It always answers 200.
func (h *AIHandler) Chat(c *gin.Context) {
	var req assistant.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		req = assistant.Request{}
	}

	ctx, cancel := detach(c, h.timeout)
	defer cancel()

	c.JSON(http.StatusOK, h.assistant.Reply(ctx, req))
}
