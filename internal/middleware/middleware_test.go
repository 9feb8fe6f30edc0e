package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/api/idtoken"

	"github.com/octobees/leads-generator/worker/internal/config"
)

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mw := Logging(zap.New(core))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(ContextKeyRequestID, "rid-123")

	err := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	entries := logs.FilterField(zap.String("request_id", "rid-123")).All()
	if len(entries) != 1 {
		t.Fatalf("expected one access line for rid-123, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Fatalf("expected status field 200, got %v", got)
	}

	// errors are propagated and logged
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set(ContextKeyRequestID, "rid-456")
	expected := errors.New("boom")
	err = mw(func(c echo.Context) error {
		return expected
	})(c)
	if logs.FilterField(zap.String("request_id", "rid-456")).Len() != 1 {
		t.Fatalf("expected second log entry with new request id")
	}
	if !errors.Is(err, expected) {
		t.Fatalf("expected error to bubble up")
	}
}

func TestScrapeRateLimiter(t *testing.T) {
	mw := ScrapeRateLimiter(config.RateLimitConfig{Requests: 1, Interval: time.Minute})

	e := echo.New()
	nextCalls := 0
	next := func(c echo.Context) error {
		nextCalls++
		return c.NoContent(http.StatusOK)
	}
	handler := mw(next)

	rec := httptest.NewRecorder()
	_ = handler(e.NewContext(httptest.NewRequest(http.MethodPost, "/scrape", nil), rec))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}

	rec2 := httptest.NewRecorder()
	_ = handler(e.NewContext(httptest.NewRequest(http.MethodPost, "/scrape", nil), rec2))
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request rejected, got %d", rec2.Code)
	}

	// zero config should behave as passthrough
	passthrough := ScrapeRateLimiter(config.RateLimitConfig{})(next)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		_ = passthrough(e.NewContext(httptest.NewRequest(http.MethodPost, "/scrape", nil), rec))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected passthrough when limiter disabled")
		}
	}
	if nextCalls != 4 {
		t.Fatalf("expected 4 handler calls, got %d", nextCalls)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()
	handler := RequestID()

	t.Run("reuse incoming header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "incoming")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(func(c echo.Context) error {
			if RequestIDFromContext(c) != "incoming" {
				t.Fatalf("expected request id to be stored")
			}
			return c.NoContent(http.StatusOK)
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if rec.Header().Get(HeaderRequestID) != "incoming" {
			t.Fatalf("expected response header to propagate request id")
		}
	})

	t.Run("generate when missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(func(c echo.Context) error {
			if RequestIDFromContext(c) == "" {
				t.Fatalf("expected generated request id")
			}
			return c.NoContent(http.StatusOK)
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if rec.Header().Get(HeaderRequestID) == "" {
			t.Fatalf("expected response header set")
		}
	})
}

func TestIDToken(t *testing.T) {
	e := echo.New()
	validate := func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		if token != "good" || audience != "https://worker.example" {
			return nil, errors.New("bad token")
		}
		return &idtoken.Payload{Subject: "123", Claims: map[string]any{"email": "api@project.iam.gserviceaccount.com"}}, nil
	}
	mw := IDTokenWithValidator("https://worker.example", validate)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/scrape", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			_ = mw(func(c echo.Context) error {
				if c.Get(ContextKeyCaller) != "api@project.iam.gserviceaccount.com" {
					t.Fatalf("expected caller to be recorded, got %v", c.Get(ContextKeyCaller))
				}
				return c.NoContent(http.StatusOK)
			})(c)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestIDTokenDisabledWithoutAudience(t *testing.T) {
	e := echo.New()
	called := false
	mw := IDTokenWithValidator("", func(context.Context, string, string) (*idtoken.Payload, error) {
		t.Fatalf("validator must not run without an audience")
		return nil, nil
	})

	rec := httptest.NewRecorder()
	_ = mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})(e.NewContext(httptest.NewRequest(http.MethodPost, "/scrape", nil), rec))
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected passthrough, got %d", rec.Code)
	}
}
