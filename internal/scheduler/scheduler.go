// Package scheduler re-runs classification on reports whose model
// classification was degraded to keyword rules.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/civicsafe/api/internal/classifier"
	"github.com/civicsafe/api/internal/model"
	"github.com/civicsafe/api/internal/report"
	"go.uber.org/zap"
)

// Source lists reports awaiting triage. Satisfied by store.ReportStore.
type Source interface {
	FindNeedingTriage(ctx context.Context, limit int) ([]model.Report, error)
}

// Reclassifier is satisfied by *report.Service.
type Reclassifier interface {
	Reclassify(ctx context.Context, r *model.Report, persist bool) (*report.Reclassification, error)
}

type TriageScheduler struct {
	source       Source
	reclassifier Reclassifier
	interval     time.Duration
	batchSize    int
	pause        time.Duration
	logger       *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	runs     int
	upgraded int
	lastRun  time.Time
	lastErr  string
}

type Config struct {
	Interval  time.Duration
	BatchSize int
	// Pause between reports in a batch to stay under provider rate limits.
	Pause time.Duration
}

func NewTriageScheduler(source Source, reclassifier Reclassifier, logger *zap.Logger, cfg Config) *TriageScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	}
	return &TriageScheduler{
		source:       source,
		reclassifier: reclassifier,
		interval:     cfg.Interval,
		batchSize:    cfg.BatchSize,
		pause:        cfg.Pause,
		logger:       logger,
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (s *TriageScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	stop := make(chan struct{})
	s.stopChan = stop
	s.mu.Unlock()

	s.logger.Info("triage scheduler starting", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("triage scheduler context cancelled, stopping")
			s.markStopped(stop)
			return
		case <-stop:
			s.logger.Info("triage scheduler stop signal received")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *TriageScheduler) markStopped(stop chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan == stop {
		s.running = false
	}
}

func (s *TriageScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopChan)
		s.running = false
	}
}

// RunOnce triages one batch and returns how many reports changed department
// or confidence.
func (s *TriageScheduler) RunOnce(ctx context.Context) int {
	reports, err := s.source.FindNeedingTriage(ctx, s.batchSize)
	if err != nil {
		s.logger.Warn("triage: failed to list reports", zap.Error(err))
		s.record(0, err)
		return 0
	}

	upgraded := 0
	var lastErr error
	for i := range reports {
		if ctx.Err() != nil {
			break
		}
		r := &reports[i]
		out, err := s.reclassifier.Reclassify(ctx, r, true)
		if errors.Is(err, classifier.ErrNotConfigured) {
			lastErr = err
			break
		}
		if err != nil {
			s.logger.Warn("triage: reclassification failed", zap.String("reportId", r.ReportID), zap.Error(err))
			lastErr = err
			continue
		}
		if out.Changed {
			upgraded++
			s.logger.Info("triage: report reclassified",
				zap.String("reportId", r.ReportID),
				zap.String("from", out.Previous),
				zap.String("to", string(out.Result.Department)),
			)
		}
		if s.pause > 0 && i < len(reports)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(s.pause):
			}
		}
	}

	s.record(upgraded, lastErr)
	return upgraded
}

func (s *TriageScheduler) record(upgraded int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.upgraded += upgraded
	s.lastRun = time.Now()
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
}

// GetStatus returns current scheduler status
func (s *TriageScheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":   s.running,
		"interval":  s.interval.String(),
		"batchSize": s.batchSize,
		"runs":      s.runs,
		"upgraded":  s.upgraded,
	}
	if !s.lastRun.IsZero() {
		status["lastRun"] = s.lastRun
	}
	if s.lastErr != "" {
		status["lastError"] = s.lastErr
	}
	return status
}
