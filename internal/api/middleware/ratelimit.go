package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/core/ports"
	"github.com/99minutos/user-directory/internal/pkg/metrics"
)

// KeyFunc picks the identity a request is rate limited by.
type KeyFunc func(c echo.Context) string

// ByRealIP keys requests by the client address echo resolves.
func ByRealIP(c echo.Context) string {
	return c.RealIP()
}

// RateLimit declines requests over the limiter's window with 429. Limiter
// backend errors let the request through.
func RateLimit(limiter ports.RateLimiter, scope string, keyFunc KeyFunc, log zerolog.Logger) echo.MiddlewareFunc {
	if keyFunc == nil {
		keyFunc = ByRealIP
	}
	log = log.With().Str("component", "rate_limit").Str("scope", scope).Logger()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := keyFunc(c)
			allowed, err := limiter.Allow(c.Request().Context(), scope+":"+key)
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter unavailable")
				return next(c)
			}
			if !allowed {
				log.Warn().Str("key", key).Msg("rate limit exceeded")
				metrics.RateLimitedTotal.WithLabelValues(scope).Inc()
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
