// Package store persists reports.
package store

import (
	"context"
	"errors"

	"github.com/civicsafe/api/internal/model"
)

var (
	// ErrNotFound means no report has the requested id.
	ErrNotFound = errors.New("report not found")
	// ErrUnavailable wraps failures of the backing database.
	ErrUnavailable = errors.New("report store unavailable")
)

type ReportFilter struct {
	Status     model.ReportStatus
	Type       model.ReportType
	Department string
	UserID     *int64
	Page       int
	Limit      int
}

// Normalize applies the listing defaults: page 1, 20 per page, at most 100.
func (f *ReportFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

func (f ReportFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type Stats struct {
	TotalReports    int64            `json:"totalReports"`
	ByStatus        map[string]int64 `json:"byStatus"`
	ByType          map[string]int64 `json:"byType"`
	ByDepartment    map[string]int64 `json:"byDepartment"`
	DegradedReports int64            `json:"degradedReports"`
}

type ReportStore interface {
	Create(ctx context.Context, r *model.Report) error
	FindByPublicID(ctx context.Context, reportID string) (*model.Report, error)
	// FindMany returns one page of reports, newest first, and the total match count.
	FindMany(ctx context.Context, f ReportFilter) ([]model.Report, int64, error)
	// UpdateStatus writes only the status and timeline of r.
	UpdateStatus(ctx context.Context, r *model.Report) error
	// UpdateClassification writes only the department, confidence,
	// classified_via and analysis columns of r.
	UpdateClassification(ctx context.Context, r *model.Report) error
	// FindNeedingTriage returns non-terminal reports classified by keyword rules, oldest first.
	FindNeedingTriage(ctx context.Context, limit int) ([]model.Report, error)
	Stats(ctx context.Context) (*Stats, error)
}
