package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/octobees/leads-generator/worker/internal/dto"
	"github.com/octobees/leads-generator/worker/internal/entity"
)

// PlacesReader is the read side of the listings store.
type PlacesReader interface {
	Find(ctx context.Context, filter dto.ListFilter) ([]entity.BusinessListing, error)
	Count(ctx context.Context, filter dto.ListFilter) (int64, error)
}

// PlacesHandler exposes stored listings for inspection.
type PlacesHandler struct {
	places PlacesReader
}

// NewPlacesHandler creates a new handler instance.
func NewPlacesHandler(places PlacesReader) *PlacesHandler {
	return &PlacesHandler{places: places}
}

// List handles GET /places requests.
func (h *PlacesHandler) List(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	if page < 1 {
		page = 1
	}
	perPage := parseIntDefault(c.QueryParam("per_page"), 20)
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	website := strings.ToLower(strings.TrimSpace(c.QueryParam("website")))
	switch website {
	case "", "missing", "available":
	default:
		return Error(c, http.StatusBadRequest, "website must be missing or available")
	}

	filter := dto.ListFilter{
		Q:             strings.TrimSpace(c.QueryParam("q")),
		BatchID:       strings.TrimSpace(c.QueryParam("batch_id")),
		Category:      strings.TrimSpace(c.QueryParam("category")),
		WebsiteStatus: website,
		Sort:          strings.TrimSpace(c.QueryParam("sort")),
		Skip:          (page - 1) * perPage,
		Limit:         perPage,
	}

	var (
		items []entity.BusinessListing
		total int64
	)
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		items, err = h.places.Find(ctx, filter)
		return err
	})
	g.Go(func() (err error) {
		total, err = h.places.Count(ctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return Error(c, http.StatusInternalServerError, "failed to list places")
	}
	if items == nil {
		items = []entity.BusinessListing{}
	}

	return Success(c, http.StatusOK, "places retrieved", PageData{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}

func parseIntDefault(input string, fallback int) int {
	if input == "" {
		return fallback
	}
	if value, err := strconv.Atoi(input); err == nil {
		return value
	}
	return fallback
}
