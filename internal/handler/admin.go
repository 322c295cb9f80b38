package handler

import (
	"errors"
	"net/http"

	"github.com/civicsafe/api/internal/middleware"
	"github.com/civicsafe/api/internal/model"
	"github.com/civicsafe/api/internal/report"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	reports *report.Service
	logger  *zap.Logger
}

func NewAdminHandler(reports *report.Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{reports: reports, logger: logger}
}

type DashboardStats struct {
	TotalReports      int64            `json:"totalReports"`
	PendingReports    int64            `json:"pendingReports"`
	InProgressReports int64            `json:"inProgressReports"`
	ResolvedReports   int64            `json:"resolvedReports"`
	DismissedReports  int64            `json:"dismissedReports"`
	DegradedReports   int64            `json:"degradedReports"`
	ReportsByType     map[string]int64 `json:"reportsByType"`
	ReportsByDept     map[string]int64 `json:"reportsByDepartment"`
}

// GetStats returns dashboard statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.reports.Stats(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		if errors.Is(err, report.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		h.logger.Error("failed to load stats", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, DashboardStats{
		TotalReports:      stats.TotalReports,
		PendingReports:    stats.ByStatus[string(model.StatusPending)],
		InProgressReports: stats.ByStatus[string(model.StatusInProgress)],
		ResolvedReports:   stats.ByStatus[string(model.StatusResolved)],
		DismissedReports:  stats.ByStatus[string(model.StatusDismissed)],
		DegradedReports:   stats.DegradedReports,
		ReportsByType:     stats.ByType,
		ReportsByDept:     stats.ByDepartment,
	})
}
