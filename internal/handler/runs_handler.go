package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-generator/worker/internal/crawl"
)

// ReportFinder looks up run reports.
type ReportFinder interface {
	Get(batchID string) (crawl.Report, bool)
}

// RunsHandler exposes run progress.
type RunsHandler struct {
	reports ReportFinder
}

// NewRunsHandler creates a new handler instance.
func NewRunsHandler(reports ReportFinder) *RunsHandler {
	return &RunsHandler{reports: reports}
}

// Get handles GET /runs/:batch_id.
func (h *RunsHandler) Get(c echo.Context) error {
	batchID := strings.TrimSpace(c.Param("batch_id"))
	report, ok := h.reports.Get(batchID)
	if !ok {
		return Error(c, http.StatusNotFound, "run not found")
	}
	return Success(c, http.StatusOK, "run retrieved", report)
}
