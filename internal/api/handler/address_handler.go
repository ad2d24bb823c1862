package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-directory/internal/api/middleware"
	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
)

// AddressHandler serves the token-protected address endpoints.
type AddressHandler struct {
	identity ports.IdentityService
}

func NewAddressHandler(identity ports.IdentityService) *AddressHandler {
	return &AddressHandler{identity: identity}
}

// AddAddress handles POST /add_user_address. The owner is the user named by
// the bearer token; a body user_id naming anyone else is refused.
//
// @Summary      Add an address to the authenticated user
// @Tags         addresses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      addressRequest  true  "Address"
// @Success      201   {object}  domain.Address
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /add_user_address [post]
func (h *AddressHandler) AddAddress(c echo.Context) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return domain.ErrInvalidCredentials
	}

	var req addressRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	ownerID, err := h.identity.AuthorizeOwner(ctx, claims, req.UserID)
	if err != nil {
		return err
	}

	addr, err := h.identity.AddAddress(ctx, ports.AddressInput{
		UserID:  ownerID,
		Street:  req.Street,
		City:    req.City,
		State:   req.State,
		ZipCode: req.ZipCode,
		Country: req.Country,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, addr)
}
