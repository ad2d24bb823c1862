package handler

import (
	"context"
	"io"
	"net/http/httptest"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
)

// stubIdentityService overrides only the methods a test sets; calling any
// other method panics on the nil embedded interface.
type stubIdentityService struct {
	ports.IdentityService
	createFn    func(ctx context.Context, in ports.CreateUserInput) (*domain.User, error)
	getByIDFn   func(ctx context.Context, id int64) (*domain.User, error)
	getByMailFn func(ctx context.Context, email, org string) (*domain.User, error)
	authFn      func(ctx context.Context, email, password, org string) bool
	deleteFn    func(ctx context.Context, email, org string) (bool, error)
	renameFn    func(ctx context.Context, email, name, org string) (bool, error)
	searchFn    func(ctx context.Context, query, org string) ([]domain.User, error)
	addAddrFn   func(ctx context.Context, in ports.AddressInput) (*domain.Address, error)
	listAddrFn  func(ctx context.Context, userID int64) ([]domain.Address, error)
	authorizeFn func(ctx context.Context, claims domain.Claims, target int64) (int64, error)
}

func (s *stubIdentityService) CreateUser(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	return s.createFn(ctx, in)
}

func (s *stubIdentityService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.getByIDFn(ctx, id)
}

func (s *stubIdentityService) GetUserByEmail(ctx context.Context, email, org string) (*domain.User, error) {
	return s.getByMailFn(ctx, email, org)
}

func (s *stubIdentityService) AuthenticatePassword(ctx context.Context, email, password, org string) bool {
	return s.authFn(ctx, email, password, org)
}

func (s *stubIdentityService) DeleteUser(ctx context.Context, email, org string) (bool, error) {
	return s.deleteFn(ctx, email, org)
}

func (s *stubIdentityService) RenameUser(ctx context.Context, email, name, org string) (bool, error) {
	return s.renameFn(ctx, email, name, org)
}

func (s *stubIdentityService) SearchByEmailSubstring(ctx context.Context, query, org string) ([]domain.User, error) {
	return s.searchFn(ctx, query, org)
}

func (s *stubIdentityService) AddAddress(ctx context.Context, in ports.AddressInput) (*domain.Address, error) {
	return s.addAddrFn(ctx, in)
}

func (s *stubIdentityService) ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error) {
	return s.listAddrFn(ctx, userID)
}

func (s *stubIdentityService) AuthorizeOwner(ctx context.Context, claims domain.Claims, target int64) (int64, error) {
	return s.authorizeFn(ctx, claims, target)
}

// newTestContext builds an echo context wired with the real validator.
func newTestContext(method, target string, body io.Reader, contentType string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// httpCode extracts the status of an error a handler returned.
func httpCode(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}
