// Package ratelimit implements fixed-window request limits backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

type ActionConfig struct {
	Limit  int64
	Window time.Duration
}

// Actions
const (
	ActionClassify     = "classify"
	ActionAnalyzeImage = "analyze_image"
	ActionChat         = "chat"
	ActionSubmitReport = "submit_report"
	ActionLogin        = "login"
)

// DefaultLimits returns per-minute limits scaled from perMinute.
// Image analysis is the most expensive call and gets a quarter of it.
func DefaultLimits(perMinute int64) map[string]ActionConfig {
	if perMinute < 1 {
		perMinute = 20
	}
	quarter := max(perMinute/4, 1)
	half := max(perMinute/2, 1)
	return map[string]ActionConfig{
		ActionClassify:     {Limit: perMinute, Window: time.Minute},
		ActionAnalyzeImage: {Limit: quarter, Window: time.Minute},
		ActionChat:         {Limit: perMinute, Window: time.Minute},
		ActionSubmitReport: {Limit: half, Window: time.Minute},
		ActionLogin:        {Limit: 10, Window: time.Minute},
	}
}

// Storage is a counter store with expiring keys.
type Storage interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type Limiter struct {
	storage Storage
	limits  map[string]ActionConfig
	now     func() time.Time
}

type CheckResult struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"`
	ResetAt   int64 `json:"reset_at"`
	Limit     int64 `json:"limit"`
}

func NewLimiter(storage Storage, limits map[string]ActionConfig) *Limiter {
	return &Limiter{storage: storage, limits: limits, now: time.Now}
}

func (l *Limiter) Check(ctx context.Context, clientID, action string) (*CheckResult, error) {
	config, ok := l.limits[action]
	if !ok {
		// Default limit for unknown actions
		config = ActionConfig{Limit: 100, Window: time.Minute}
	}

	key := fmt.Sprintf("rate:%s:%s", clientID, action)

	count, err := l.storage.Incr(ctx, key, config.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to increment counter: %w", err)
	}

	ttl, err := l.storage.TTL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get TTL: %w", err)
	}

	resetAt := l.now().Add(ttl).Unix()
	remaining := config.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &CheckResult{
		Allowed:   count <= config.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
		Limit:     config.Limit,
	}, nil
}
