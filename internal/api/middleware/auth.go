package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
)

const claimsKey = "claims"

// Auth validates the bearer token and injects its claims into the context.
func Auth(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return unauthorized(c, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return unauthorized(c, "invalid authorization header")
			}

			claims, err := verifier.VerifyToken(strings.TrimSpace(parts[1]))
			if err != nil {
				return unauthorized(c, "invalid token")
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims set by Auth. ok is false on routes the
// middleware did not run on.
func ClaimsFrom(c echo.Context) (domain.Claims, bool) {
	claims, ok := c.Get(claimsKey).(domain.Claims)
	return claims, ok && claims.Subject != ""
}

// SetClaims stores claims the way Auth does. Intended for handler tests.
func SetClaims(c echo.Context, claims domain.Claims) {
	c.Set(claimsKey, claims)
}

func unauthorized(c echo.Context, msg string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}
