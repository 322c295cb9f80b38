package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civicsafe/api/internal/model"
	"gorm.io/gorm"
)

type GormReportStore struct {
	db *gorm.DB
}

func NewGormReportStore(db *gorm.DB) *GormReportStore {
	return &GormReportStore{db: db}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func (s *GormReportStore) Create(ctx context.Context, r *model.Report) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return unavailable("create report", err)
	}
	return nil
}

func (s *GormReportStore) FindByPublicID(ctx context.Context, reportID string) (*model.Report, error) {
	var r model.Report
	err := s.db.WithContext(ctx).Where("report_id = ?", reportID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find report", err)
	}
	return &r, nil
}

func (s *GormReportStore) FindMany(ctx context.Context, f ReportFilter) ([]model.Report, int64, error) {
	f.Normalize()

	query := s.db.WithContext(ctx).Model(&model.Report{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Department != "" {
		query = query.Where("department = ?", f.Department)
	}
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, unavailable("count reports", err)
	}

	var reports []model.Report
	err := query.Order("created_at DESC").
		Offset(f.Offset()).
		Limit(f.Limit).
		Find(&reports).Error
	if err != nil {
		return nil, 0, unavailable("list reports", err)
	}
	return reports, totalCount, nil
}

func (s *GormReportStore) UpdateStatus(ctx context.Context, r *model.Report) error {
	return s.updateColumns(ctx, "update report status", r, map[string]interface{}{
		"status":   r.Status,
		"timeline": r.Timeline,
	})
}

func (s *GormReportStore) UpdateClassification(ctx context.Context, r *model.Report) error {
	return s.updateColumns(ctx, "update report classification", r, map[string]interface{}{
		"department":     r.Department,
		"confidence":     r.Confidence,
		"classified_via": r.ClassifiedVia,
		"analysis":       r.Analysis,
	})
}

// updateColumns writes the given columns only, so concurrent writers of
// other columns are not overwritten with stale values.
func (s *GormReportStore) updateColumns(ctx context.Context, op string, r *model.Report, columns map[string]interface{}) error {
	now := time.Now()
	columns["updated_at"] = now

	result := s.db.WithContext(ctx).
		Model(&model.Report{}).
		Where("report_id = ?", r.ReportID).
		Updates(columns)
	if result.Error != nil {
		return unavailable(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.UpdatedAt = now
	return nil
}

func (s *GormReportStore) FindNeedingTriage(ctx context.Context, limit int) ([]model.Report, error) {
	var reports []model.Report
	err := s.db.WithContext(ctx).
		Where("classified_via = ? AND status IN ?", model.ClassifiedViaHeuristic,
			[]model.ReportStatus{model.StatusPending, model.StatusInProgress}).
		Order("created_at ASC").
		Limit(limit).
		Find(&reports).Error
	if err != nil {
		return nil, unavailable("find reports needing triage", err)
	}
	return reports, nil
}

type groupCount struct {
	GroupKey string
	Count    int64
}

func (s *GormReportStore) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{}

	if err := db.Model(&model.Report{}).Count(&stats.TotalReports).Error; err != nil {
		return nil, unavailable("count reports", err)
	}
	if err := db.Model(&model.Report{}).Where("classified_via IN ?", []string{model.ClassifiedViaHeuristic, model.ClassifiedViaHeuristicReviewed}).
		Count(&stats.DegradedReports).Error; err != nil {
		return nil, unavailable("count degraded reports", err)
	}

	var err error
	if stats.ByStatus, err = s.countBy(ctx, "status"); err != nil {
		return nil, err
	}
	if stats.ByType, err = s.countBy(ctx, "type"); err != nil {
		return nil, err
	}
	if stats.ByDepartment, err = s.countBy(ctx, "department"); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *GormReportStore) countBy(ctx context.Context, column string) (map[string]int64, error) {
	var counts []groupCount
	err := s.db.WithContext(ctx).Model(&model.Report{}).
		Select(column + " as group_key, count(*) as count").
		Group(column).
		Scan(&counts).Error
	if err != nil {
		return nil, unavailable("count reports by "+column, err)
	}

	out := make(map[string]int64, len(counts))
	for _, c := range counts {
		out[c.GroupKey] = c.Count
	}
	return out, nil
}
