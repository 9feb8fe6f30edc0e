package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/octobees/leads-generator/worker/internal/app"
	"github.com/octobees/leads-generator/worker/internal/config"
	"github.com/octobees/leads-generator/worker/internal/handler"
	"github.com/octobees/leads-generator/worker/internal/logger"
	middlewarepkg "github.com/octobees/leads-generator/worker/internal/middleware"
	"github.com/octobees/leads-generator/worker/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// Cancelled on shutdown so background runs stop and close their browsers.
	runCtx, stopRuns := context.WithCancel(context.Background())
	defer stopRuns()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	worker, err := app.Build(ctx, runCtx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to initialise worker", zap.Error(err))
	}
	defer worker.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(zl))
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, router.Handlers{
		Scrape: handler.NewScrapeHandler(worker.Controller, zl),
		Runs:   handler.NewRunsHandler(worker.Controller.Registry()),
		Places: handler.NewPlacesHandler(worker.Places),
	})

	serverErr := make(chan error, 1)
	go func() {
		zl.Info("worker listening", zap.String("port", cfg.Port), zap.String("store", cfg.Store.Driver))
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zl.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("server error", zap.Error(err))
		}
		stopRuns()
		worker.Controller.Wait()
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Warn("graceful shutdown failed", zap.Error(err))
	}
	stopRuns()
	worker.Controller.Wait()
}
