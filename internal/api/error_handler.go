package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/core/domain"
)

// errorResponse is the {"error": msg} envelope every failure is rendered in.
type errorResponse struct {
	Error string `json:"error"`
}

type errorMapping struct {
	target error
	code   int
	// msg is sent verbatim; empty means err.Error().
	msg string
}

var domainErrors = []errorMapping{
	{domain.ErrIdentityNotFound, http.StatusNotFound, "user not found"},
	{domain.ErrDuplicateIdentity, http.StatusConflict, "user already exists"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{domain.ErrForbidden, http.StatusForbidden, "access forbidden"},
	{domain.ErrRateLimitExceeded, http.StatusTooManyRequests, "rate limit exceeded"},
	{domain.ErrInvalidInput, http.StatusUnprocessableEntity, ""},
	{domain.ErrStoreFailure, http.StatusInternalServerError, "internal server error"},
}

// NewHTTPErrorHandler renders handler errors. Domain sentinels get fixed
// status codes; anything unrecognised is logged and hidden behind a 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg, known := resolveError(err)
		if !known {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("unhandled error")
		}
		if code == http.StatusUnauthorized {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error) (code int, msg string, known bool) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message), true
	}

	for _, m := range domainErrors {
		if !errors.Is(err, m.target) {
			continue
		}
		if m.msg == "" {
			return m.code, err.Error(), true
		}
		return m.code, m.msg, true
	}
	return http.StatusInternalServerError, "internal server error", false
}
