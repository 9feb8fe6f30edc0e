package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"google.golang.org/api/idtoken"
)

// TokenValidator verifies a Google-signed ID token for an audience.
type TokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// IDToken admits only callers presenting an ID token minted for audience,
// which is how the API's idtoken client calls the worker on Cloud Run. An
// empty audience disables the check.
func IDToken(audience string) echo.MiddlewareFunc {
	return IDTokenWithValidator(audience, idtoken.Validate)
}

// IDTokenWithValidator is IDToken with a custom verifier.
func IDTokenWithValidator(audience string, validate TokenValidator) echo.MiddlewareFunc {
	audience = strings.TrimSpace(audience)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if audience == "" {
			return next
		}
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return unauthorized(c, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				return unauthorized(c, "invalid authorization header")
			}

			payload, err := validate(c.Request().Context(), strings.TrimSpace(parts[1]), audience)
			if err != nil {
				return unauthorized(c, "invalid token")
			}

			caller := payload.Subject
			if email, ok := payload.Claims["email"].(string); ok && email != "" {
				caller = email
			}
			c.Set(ContextKeyCaller, caller)

			return next(c)
		}
	}
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"status": "error", "message": message})
}
