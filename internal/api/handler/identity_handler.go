package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-directory/internal/core/ports"
)

// IdentityHandler serves the tenant-scoped user endpoints.
type IdentityHandler struct {
	service ports.IdentityService
}

func NewIdentityHandler(service ports.IdentityService) *IdentityHandler {
	return &IdentityHandler{service: service}
}

// CreateUser handles POST /users_create.
//
// @Summary      Create a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      createUserRequest  true  "User details"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /users_create [post]
func (h *IdentityHandler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.service.CreateUser(c.Request().Context(), ports.CreateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Org:       req.Org,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toUserResponse(user))
}

// GetUserByID handles GET /users/:user_id. Lookups are rate limited per
// client address.
//
// @Summary      Get a user by id
// @Tags         users
// @Produce      json
// @Param        user_id  path      int  true  "User id"
// @Success      200      {object}  userResponse
// @Failure      400      {object}  errorResponse
// @Failure      404      {object}  errorResponse
// @Failure      429      {object}  errorResponse
// @Router       /users/{user_id} [get]
func (h *IdentityHandler) GetUserByID(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	ctx := ports.WithCallerKey(c.Request().Context(), c.RealIP())
	user, err := h.service.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// ListAddresses handles GET /users/:user_id/addresses.
//
// @Summary      List the addresses of a user
// @Tags         addresses
// @Produce      json
// @Param        user_id  path      int  true  "User id"
// @Success      200      {array}   domain.Address
// @Failure      404      {object}  errorResponse
// @Router       /users/{user_id}/addresses [get]
func (h *IdentityHandler) ListAddresses(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	addrs, err := h.service.ListAddresses(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, addrs)
}

// GetUserByEmail handles GET /user_by_email/:email/:org.
//
// @Summary      Get a user by email within an org
// @Tags         users
// @Produce      json
// @Param        email  path      string  true  "Email"
// @Param        org    path      string  true  "Organization"
// @Success      200    {object}  userResponse
// @Failure      404    {object}  errorResponse
// @Router       /user_by_email/{email}/{org} [get]
func (h *IdentityHandler) GetUserByEmail(c echo.Context) error {
	p, err := pathParams(c, "email", "org")
	if err != nil {
		return err
	}
	user, err := h.service.GetUserByEmail(c.Request().Context(), p[0], p[1])
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// DeleteUser handles DELETE /user_delete/:email/:org.
//
// @Summary      Delete a user and its addresses
// @Tags         users
// @Produce      json
// @Param        email  path      string  true  "Email"
// @Param        org    path      string  true  "Organization"
// @Success      200    {object}  deletedResponse
// @Failure      404    {object}  errorResponse
// @Router       /user_delete/{email}/{org} [delete]
func (h *IdentityHandler) DeleteUser(c echo.Context) error {
	p, err := pathParams(c, "email", "org")
	if err != nil {
		return err
	}
	deleted, err := h.service.DeleteUser(c.Request().Context(), p[0], p[1])
	if err != nil {
		return err
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "user not found"})
	}
	return c.JSON(http.StatusOK, deletedResponse{Deleted: true})
}

// RenameUser handles POST /user_update_name/:email/:new_name/:org.
//
// @Summary      Change the first name of a user
// @Tags         users
// @Produce      json
// @Param        email     path      string  true  "Email"
// @Param        new_name  path      string  true  "New first name"
// @Param        org       path      string  true  "Organization"
// @Success      200       {object}  updatedResponse
// @Failure      404       {object}  errorResponse
// @Failure      422       {object}  errorResponse
// @Router       /user_update_name/{email}/{new_name}/{org} [post]
func (h *IdentityHandler) RenameUser(c echo.Context) error {
	p, err := pathParams(c, "email", "new_name", "org")
	if err != nil {
		return err
	}
	updated, err := h.service.RenameUser(c.Request().Context(), p[0], p[1], p[2])
	if err != nil {
		return err
	}
	if !updated {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "user not found"})
	}
	return c.JSON(http.StatusOK, updatedResponse{Updated: true})
}

// SearchUsers handles GET /search_users_by_name/:query/:org. The query is
// matched as a case-insensitive substring of the email.
//
// @Summary      Search users by email substring
// @Tags         users
// @Produce      json
// @Param        query  path      string  true  "Substring"
// @Param        org    path      string  true  "Organization"
// @Success      200    {array}   userResponse
// @Router       /search_users_by_name/{query}/{org} [get]
func (h *IdentityHandler) SearchUsers(c echo.Context) error {
	p, err := pathParams(c, "query", "org")
	if err != nil {
		return err
	}
	users, err := h.service.SearchByEmailSubstring(c.Request().Context(), p[0], p[1])
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponses(users))
}

// AuthenticatePath handles GET /users/:email/:password/:org. Kept for
// existing clients; prefer POST /authenticate, which keeps the password out
// of URLs and access logs.
//
// @Summary      Check credentials (deprecated, credentials in path)
// @Tags         auth
// @Produce      json
// @Param        email     path      string  true  "Email"
// @Param        password  path      string  true  "Password"
// @Param        org       path      string  true  "Organization"
// @Success      200       {object}  authenticatedResponse
// @Deprecated
// @Router       /users/{email}/{password}/{org} [get]
func (h *IdentityHandler) AuthenticatePath(c echo.Context) error {
	p, err := pathParams(c, "email", "password", "org")
	if err != nil {
		return err
	}
	ok := h.service.AuthenticatePassword(c.Request().Context(), p[0], p[1], p[2])
	return c.JSON(http.StatusOK, authenticatedResponse{Authenticated: ok})
}

// Authenticate handles POST /authenticate.
//
// @Summary      Check credentials
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      authenticateRequest  true  "Credentials"
// @Success      200   {object}  authenticatedResponse
// @Failure      422   {object}  errorResponse
// @Router       /authenticate [post]
func (h *IdentityHandler) Authenticate(c echo.Context) error {
	var req authenticateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ok := h.service.AuthenticatePassword(c.Request().Context(), req.Email, req.Password, req.Org)
	return c.JSON(http.StatusOK, authenticatedResponse{Authenticated: ok})
}

func userIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "user_id must be a positive integer")
	}
	return id, nil
}

// pathParams returns the named path parameters decoded. echo leaves them
// percent-encoded whenever the request carries a RawPath.
func pathParams(c echo.Context, names ...string) ([]string, error) {
	encoded := c.Request().URL.RawPath != ""
	out := make([]string, len(names))
	for i, name := range names {
		v := c.Param(name)
		if encoded {
			decoded, err := url.PathUnescape(v)
			if err != nil {
				return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" in path")
			}
			v = decoded
		}
		out[i] = v
	}
	return out, nil
}
