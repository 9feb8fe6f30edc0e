package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-generator/worker/internal/config"
	"github.com/octobees/leads-generator/worker/internal/handler"
	middlewarepkg "github.com/octobees/leads-generator/worker/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Scrape *handler.ScrapeHandler
	Runs   *handler.RunsHandler
	Places *handler.PlacesHandler
}

// Register wires all HTTP routes for the worker.
func Register(e *echo.Echo, cfg *config.Config, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	secured := e.Group("")
	secured.Use(middlewarepkg.IDToken(cfg.IDTokenAudience))

	secured.POST("/scrape", handlers.Scrape.Enqueue, middlewarepkg.ScrapeRateLimiter(cfg.RateLimitScrape))
	secured.GET("/runs/:batch_id", handlers.Runs.Get)
	if handlers.Places != nil {
		secured.GET("/places", handlers.Places.List)
	}
}
