package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/octobees/leads-generator/worker/internal/crawl"
	"github.com/octobees/leads-generator/worker/internal/dto"
	middleware "github.com/octobees/leads-generator/worker/internal/middleware"
)

// RunStarter launches a crawl run in the background.
type RunStarter interface {
	Start(ctx context.Context, query, batchID string) (string, error)
}

// ScrapeHandler accepts scrape jobs.
type ScrapeHandler struct {
	runs   RunStarter
	logger *zap.Logger
}

// NewScrapeHandler constructs a scrape handler.
func NewScrapeHandler(runs RunStarter, logger *zap.Logger) *ScrapeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScrapeHandler{runs: runs, logger: logger}
}

// Enqueue handles POST /scrape. The browser is launched before the response,
// so a 202 means the run is underway.
func (h *ScrapeHandler) Enqueue(c echo.Context) error {
	var req dto.ScrapeRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	req.Query = strings.TrimSpace(req.Query)
	req.BatchID = strings.TrimSpace(req.BatchID)
	req.TypeBusiness = strings.TrimSpace(req.TypeBusiness)
	req.City = strings.TrimSpace(req.City)
	req.Country = strings.TrimSpace(req.Country)

	if err := c.Validate(&req); err != nil {
		return Error(c, http.StatusBadRequest, validationMessage(err))
	}

	query := req.Query
	if query == "" {
		query = composeQuery(req.TypeBusiness, req.City, req.Country)
	}
	if query == "" {
		return Error(c, http.StatusBadRequest, "query is required")
	}

	batchID, err := h.runs.Start(c.Request().Context(), query, req.BatchID)
	if err != nil {
		if errors.Is(err, crawl.ErrEmptyQuery) {
			return Error(c, http.StatusBadRequest, "query is required")
		}
		h.logger.Error("run failed to start",
			zap.String("request_id", middleware.RequestIDFromContext(c)),
			zap.String("query", query),
			zap.Error(err),
		)
		return Error(c, http.StatusBadGateway, err.Error())
	}

	return Success(c, http.StatusAccepted, "scrape run started", dto.ScrapeResponse{
		BatchID: batchID,
		Query:   query,
		Status:  crawl.StatusRunning,
	})
}

// composeQuery builds "<type> in <city>, <country>" from the API's payload.
func composeQuery(typeBusiness, city, country string) string {
	if typeBusiness == "" {
		return ""
	}
	var place []string
	for _, part := range []string{city, country} {
		if part != "" {
			place = append(place, part)
		}
	}
	if len(place) == 0 {
		return typeBusiness
	}
	return fmt.Sprintf("%s in %s", typeBusiness, strings.Join(place, ", "))
}
