package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/civicsafe/api/internal/model"
	"github.com/google/uuid"
)

// MemoryReportStore keeps reports in process memory. It backs tests and
// local runs without a database.
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports map[string]*model.Report
	// Err, when set, is returned from every operation wrapped in ErrUnavailable.
	Err error
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{reports: make(map[string]*model.Report)}
}

func clone(r *model.Report) *model.Report {
	c := *r
	c.Timeline = append(model.Timeline(nil), r.Timeline...)
	return &c
}

func (s *MemoryReportStore) failure(op string) error {
	if s.Err != nil {
		return unavailable(op, s.Err)
	}
	return nil
}

func (s *MemoryReportStore) Create(ctx context.Context, r *model.Report) error {
	if err := s.failure("create report"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.reports[r.ReportID] = clone(r)
	return nil
}

func (s *MemoryReportStore) FindByPublicID(ctx context.Context, reportID string) (*model.Report, error) {
	if err := s.failure("find report"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r), nil
}

func (s *MemoryReportStore) FindMany(ctx context.Context, f ReportFilter) ([]model.Report, int64, error) {
	if err := s.failure("list reports"); err != nil {
		return nil, 0, err
	}
	f.Normalize()

	s.mu.RLock()
	var matched []model.Report
	for _, r := range s.reports {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if f.Department != "" && r.Department != f.Department {
			continue
		}
		if f.UserID != nil && (r.UserID == nil || *r.UserID != *f.UserID) {
			continue
		}
		matched = append(matched, *clone(r))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := f.Offset()
	if start >= len(matched) {
		return []model.Report{}, total, nil
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryReportStore) UpdateStatus(ctx context.Context, r *model.Report) error {
	return s.update("update report status", r, func(cur *model.Report) {
		cur.Status = r.Status
		cur.Timeline = append(model.Timeline(nil), r.Timeline...)
	})
}

func (s *MemoryReportStore) UpdateClassification(ctx context.Context, r *model.Report) error {
	return s.update("update report classification", r, func(cur *model.Report) {
		cur.Department = r.Department
		cur.Confidence = r.Confidence
		cur.ClassifiedVia = r.ClassifiedVia
		cur.Analysis = append([]byte(nil), r.Analysis...)
	})
}

func (s *MemoryReportStore) update(op string, r *model.Report, apply func(cur *model.Report)) error {
	if err := s.failure(op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.reports[r.ReportID]
	if !ok {
		return ErrNotFound
	}
	apply(cur)
	cur.UpdatedAt = time.Now()
	r.UpdatedAt = cur.UpdatedAt
	return nil
}

func (s *MemoryReportStore) FindNeedingTriage(ctx context.Context, limit int) ([]model.Report, error) {
	if err := s.failure("find reports needing triage"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []model.Report
	for _, r := range s.reports {
		if r.ClassifiedVia == model.ClassifiedViaHeuristic && !r.Status.IsTerminal() {
			out = append(out, *clone(r))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryReportStore) Stats(ctx context.Context) (*Stats, error) {
	if err := s.failure("count reports"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		ByStatus:     map[string]int64{},
		ByType:       map[string]int64{},
		ByDepartment: map[string]int64{},
	}
	for _, r := range s.reports {
		stats.TotalReports++
		stats.ByStatus[string(r.Status)]++
		stats.ByType[string(r.Type)]++
		stats.ByDepartment[r.Department]++
		if model.KeywordClassified(r.ClassifiedVia) {
			stats.DegradedReports++
		}
	}
	return stats, nil
}
