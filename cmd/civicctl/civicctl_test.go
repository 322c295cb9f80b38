package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/civicsafe/api/internal/auth"
	"github.com/civicsafe/api/internal/classifier"
	"github.com/civicsafe/api/internal/model"
	"github.com/civicsafe/api/internal/report"
	"github.com/civicsafe/api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedClassifier struct {
	mu     sync.Mutex
	calls  int
	result classifier.Result
	err    error
}

func (s *scriptedClassifier) Classify(ctx context.Context, description string) (classifier.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func seedReports(t *testing.T, st *store.MemoryReportStore, n int, status model.ReportStatus) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, st.Create(context.Background(), &model.Report{
			ReportID:      fmt.Sprintf("%016x", i+1),
			Type:          model.ReportTypeEmergency,
			Title:         "Smoke",
			Description:   "smoke coming out of the bakery",
			Status:        status,
			Department:    "Other",
			ClassifiedVia: model.ClassifiedViaHeuristic,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func fireResult() classifier.Result {
	return classifier.Result{
		Department: classifier.Fire,
		Confidence: model.ConfidenceHigh,
		Via:        model.ClassifiedViaModel,
		Outcome:    classifier.OutcomeClassified,
	}
}

func TestReclassifyPersistsAcrossPages(t *testing.T) {
	st := store.NewMemoryReportStore()
	seedReports(t, st, 7, model.StatusPending)
	c := &scriptedClassifier{result: fireResult()}
	svc := report.NewService(report.Deps{Store: st, Classifier: c})

	var mu sync.Mutex
	var seen []string
	sum, err := reclassify(context.Background(), st, svc, reclassifyOptions{Workers: 3, PageSize: 3}, zap.NewNop(),
		func(rc *report.Reclassification) {
			mu.Lock()
			seen = append(seen, rc.ReportID)
			mu.Unlock()
		})
	require.NoError(t, err)

	assert.Equal(t, reclassifySummary{Scanned: 7, Changed: 7}, sum)
	assert.Len(t, seen, 7)
	assert.Equal(t, 7, c.calls)

	r, err := st.FindByPublicID(context.Background(), fmt.Sprintf("%016x", 4))
	require.NoError(t, err)
	assert.Equal(t, "Fire", r.Department)
	assert.Equal(t, model.ClassifiedViaModel, r.ClassifiedVia)
}

func TestReclassifyDryRunWritesNothing(t *testing.T) {
	st := store.NewMemoryReportStore()
	seedReports(t, st, 2, model.StatusPending)
	svc := report.NewService(report.Deps{Store: st, Classifier: &scriptedClassifier{result: fireResult()}})

	sum, err := reclassify(context.Background(), st, svc, reclassifyOptions{Workers: 2, DryRun: true}, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Changed)

	r, err := st.FindByPublicID(context.Background(), fmt.Sprintf("%016x", 1))
	require.NoError(t, err)
	assert.Equal(t, "Other", r.Department)
	assert.Equal(t, model.ClassifiedViaHeuristic, r.ClassifiedVia)
}

func TestReclassifyHonoursMaxAndStatus(t *testing.T) {
	st := store.NewMemoryReportStore()
	seedReports(t, st, 5, model.StatusPending)
	c := &scriptedClassifier{result: fireResult()}
	svc := report.NewService(report.Deps{Store: st, Classifier: c})

	sum, err := reclassify(context.Background(), st, svc, reclassifyOptions{Workers: 2, PageSize: 2, Max: 3}, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Scanned)
	assert.Equal(t, 3, c.calls)

	sum, err = reclassify(context.Background(), st, svc, reclassifyOptions{Status: model.StatusResolved}, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Zero(t, sum.Scanned)
}

func TestReclassifyCountsDegradedAndFailures(t *testing.T) {
	st := store.NewMemoryReportStore()
	seedReports(t, st, 2, model.StatusPending)

	degraded := &scriptedClassifier{result: classifier.Result{
		Department: classifier.Other,
		Confidence: model.ConfidenceLow,
		Via:        model.ClassifiedViaHeuristic,
		Outcome:    classifier.OutcomeDegraded,
		Notice:     classifier.DegradedNotice,
	}}
	svc := report.NewService(report.Deps{Store: st, Classifier: degraded})
	sum, err := reclassify(context.Background(), st, svc, reclassifyOptions{}, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, reclassifySummary{Scanned: 2, Degraded: 2}, sum)

	failing := &scriptedClassifier{err: errors.New("boom")}
	svc = report.NewService(report.Deps{Store: st, Classifier: failing})
	sum, err = reclassify(context.Background(), st, svc, reclassifyOptions{}, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, reclassifySummary{Scanned: 2, Failed: 2}, sum)
}

func TestReclassifyStopsWithoutBackend(t *testing.T) {
	st := store.NewMemoryReportStore()
	seedReports(t, st, 3, model.StatusPending)
	svc := report.NewService(report.Deps{Store: st, Classifier: &scriptedClassifier{err: classifier.ErrNotConfigured}})

	_, err := reclassify(context.Background(), st, svc, reclassifyOptions{Workers: 1}, zap.NewNop(), nil)
	assert.ErrorIs(t, err, classifier.ErrNotConfigured)
}

func TestReclassifyStoreFailure(t *testing.T) {
	st := store.NewMemoryReportStore()
	st.Err = errors.New("connection refused")
	svc := report.NewService(report.Deps{Store: st, Classifier: &scriptedClassifier{result: fireResult()}})

	_, err := reclassify(context.Background(), st, svc, reclassifyOptions{}, zap.NewNop(), nil)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestNewSeedUser(t *testing.T) {
	u, err := newSeedUser("  Admin@Example.org ", "", "correct-horse", "moderator")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.org", u.Email)
	assert.Equal(t, "admin", u.Name)
	assert.Equal(t, string(auth.RoleModerator), u.Role)
	assert.Equal(t, model.ProviderCredentials, u.Provider)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "correct-horse"))

	tests := []struct {
		name, email, password, role string
	}{
		{"bad email", "nobody", "correct-horse", "ADMIN"},
		{"bad role", "a@b.c", "correct-horse", "ROOT"},
		{"short password", "a@b.c", "short", "ADMIN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newSeedUser(tt.email, "", tt.password, tt.role)
			assert.Error(t, err)
		})
	}
}
