package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/civicsafe/api/internal/middleware"
	"github.com/civicsafe/api/internal/model"
	"github.com/civicsafe/api/internal/report"
	"github.com/civicsafe/api/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// listTimeout bounds staff listings; a slow database answers 504.
const listTimeout = 15 * time.Second

type ReportHandler struct {
	reports *report.Service
	timeout time.Duration
	logger  *zap.Logger
}

// NewReportHandler takes the LLM timeout, which bounds submission since it
// classifies the description.
func NewReportHandler(reports *report.Service, timeout time.Duration, logger *zap.Logger) *ReportHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReportHandler{reports: reports, timeout: timeout, logger: logger}
}

type SubmitReportRequest struct {
	Type         model.ReportType `json:"type" binding:"required,reporttype"`
	SpecificType string           `json:"specificType"`
	Title        string           `json:"title" binding:"required"`
	Description  string           `json:"description" binding:"required"`
	Location     string           `json:"location"`
	Latitude     *float64         `json:"latitude"`
	Longitude    *float64         `json:"longitude"`
	Image        string           `json:"image"`
}

// Submit creates a report. Anonymous submissions are allowed.
func (h *ReportHandler) Submit(c *gin.Context) {
	var req SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}

	actor := middleware.CurrentIdentity(c)
	ctx, cancel := detach(c, h.timeout)
	defer cancel()

	r, err := h.reports.Submit(ctx, actor, report.SubmitInput{
		Type:         req.Type,
		SpecificType: req.SpecificType,
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Image:        req.Image,
	})
	if err != nil {
		h.writeError(c, "submit report", err)
		return
	}

	middleware.RecordReportSubmitted(string(r.Type), actor == nil)
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"reportId":   r.ReportID,
		"id":         r.ID,
		"department": r.Department,
		"confidence": r.Confidence,
		"message":    "Report submitted successfully",
	})
}

// Track returns the public view of a report by its report id.
func (h *ReportHandler) Track(c *gin.Context) {
	view, err := h.reports.Track(c.Request.Context(), c.Param("reportId"))
	if err != nil {
		h.writeError(c, "track report", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,reportstatus"`
	Note   string `json:"note"`
}

// UpdateStatus handles PATCH /api/reports/:reportId (staff only)
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	status, _ := model.ParseReportStatus(req.Status)

	r, err := h.reports.UpdateStatus(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("reportId"), status, req.Note)
	if err != nil {
		h.writeError(c, "update report status", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// List returns all reports for staff, filtered by status, type and department.
func (h *ReportHandler) List(c *gin.Context) {
	f := store.ReportFilter{Department: c.Query("department")}
	if s := c.Query("status"); s != "" {
		status, ok := model.ParseReportStatus(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		f.Status = status
	}
	if t := c.Query("type"); t != "" {
		rt := model.ReportType(strings.ToUpper(t))
		if !rt.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type filter"})
			return
		}
		f.Type = rt
	}
	f.Page, f.Limit = pagination(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), listTimeout)
	defer cancel()

	page, err := h.reports.List(ctx, middleware.CurrentIdentity(c), f)
	if err != nil {
		h.writeError(c, "list reports", err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(page))
}

// ListMine returns the current user's reports
func (h *ReportHandler) ListMine(c *gin.Context) {
	page, limit := pagination(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), listTimeout)
	defer cancel()

	result, err := h.reports.ListByOwner(ctx, middleware.CurrentIdentity(c), page, limit)
	if err != nil {
		h.writeError(c, "list own reports", err)
		return
	}
	c.JSON(http.StatusOK, pageResponse(result))
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}

func pageResponse(p *report.Page) gin.H {
	totalPages := int((p.Total + int64(p.Limit) - 1) / int64(p.Limit))
	return gin.H{
		"data":       p.Reports,
		"page":       p.Page,
		"limit":      p.Limit,
		"totalCount": p.Total,
		"totalPages": totalPages,
	}
}

// writeError maps service errors to status codes. Store failures are
// logged; the caller only sees a generic message.
func (h *ReportHandler) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, report.ErrValidation), errors.Is(err, report.ErrBlockedContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, report.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn(op+" timed out", zap.Error(err))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "database timeout"})
	case errors.Is(err, store.ErrUnavailable):
		h.logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable, please retry"})
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
