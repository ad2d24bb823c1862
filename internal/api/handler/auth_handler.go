package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
	"github.com/99minutos/user-directory/internal/pkg/metrics"
)

// AuthHandler exchanges credentials for a bearer token.
type AuthHandler struct {
	identity ports.IdentityService
	tokens   ports.TokenIssuer
	log      zerolog.Logger
}

func NewAuthHandler(identity ports.IdentityService, tokens ports.TokenIssuer, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		tokens:   tokens,
		log:      log.With().Str("component", "auth_handler").Logger(),
	}
}

// Login handles POST /login with form fields username (the email), password
// and an optional org.
//
// @Summary      Obtain a bearer token
// @Tags         auth
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        username  formData  string  true   "Email"
// @Param        password  formData  string  true   "Password"
// @Param        org       formData  string  false  "Organization"
// @Success      200       {object}  tokenResponse
// @Failure      401       {object}  errorResponse
// @Failure      422       {object}  errorResponse
// @Failure      429       {object}  errorResponse
// @Router       /login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if !h.identity.AuthenticatePassword(c.Request().Context(), req.Username, req.Password, req.Org) {
		return domain.ErrInvalidCredentials
	}

	email := strings.ToLower(strings.TrimSpace(req.Username))
	token, err := h.tokens.IssueToken(email, strings.TrimSpace(req.Org))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to issue token")
		return err
	}

	metrics.TokensIssuedTotal.Inc()
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}
