package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
)

func sampleUser() *domain.User {
	return &domain.User{
		ID:                7,
		FirstName:         "Ada",
		LastName:          "Lovelace",
		Email:             "ada@example.com",
		Org:               "acme",
		EncryptedPassword: "$2a$10$secretdigest",
		CreatedAt:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestIdentityHandler_CreateUser_Success(t *testing.T) {
	stub := &stubIdentityService{
		createFn: func(_ context.Context, in ports.CreateUserInput) (*domain.User, error) {
			if in.Email != "ada@example.com" || in.Org != "acme" || in.Password != "pw" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return sampleUser(), nil
		},
	}
	h := NewIdentityHandler(stub)

	body := `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","org":"acme","password":"pw"}`
	c, rec := newTestContext(http.MethodPost, "/users_create", strings.NewReader(body), echo.MIMEApplicationJSON)

	if err := h.CreateUser(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["password"] != "protected" {
		t.Fatalf("expected protected password, got %v", resp["password"])
	}
	if strings.Contains(rec.Body.String(), "secretdigest") {
		t.Fatalf("digest leaked in response: %s", rec.Body.String())
	}
	if resp["id"].(float64) != 7 {
		t.Fatalf("unexpected id: %v", resp["id"])
	}
}

func TestIdentityHandler_CreateUser_Validation(t *testing.T) {
	stub := &stubIdentityService{
		createFn: func(context.Context, ports.CreateUserInput) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewIdentityHandler(stub)

	c, _ := newTestContext(http.MethodPost, "/users_create", strings.NewReader(`{"first_name":"Ada","email":"not-an-email"}`), echo.MIMEApplicationJSON)
	err := h.CreateUser(c)
	if httpCode(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
	for _, want := range []string{"last_name is required", "email must be a valid email", "password is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestIdentityHandler_CreateUser_InvalidPayload(t *testing.T) {
	h := NewIdentityHandler(&stubIdentityService{})
	c, _ := newTestContext(http.MethodPost, "/users_create", strings.NewReader("not-json"), echo.MIMEApplicationJSON)

	if err := h.CreateUser(c); httpCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestIdentityHandler_CreateUser_Duplicate(t *testing.T) {
	stub := &stubIdentityService{
		createFn: func(context.Context, ports.CreateUserInput) (*domain.User, error) {
			return nil, domain.ErrDuplicateIdentity
		},
	}
	h := NewIdentityHandler(stub)
	body := `{"first_name":"Ada","last_name":"L","email":"ada@example.com","password":"pw"}`
	c, _ := newTestContext(http.MethodPost, "/users_create", strings.NewReader(body), echo.MIMEApplicationJSON)

	if err := h.CreateUser(c); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestIdentityHandler_GetUserByID_SetsCallerKey(t *testing.T) {
	stub := &stubIdentityService{
		getByIDFn: func(ctx context.Context, id int64) (*domain.User, error) {
			key, ok := ports.CallerKey(ctx)
			if !ok || key != "192.0.2.1" {
				t.Fatalf("expected caller key from client ip, got %q", key)
			}
			if id != 7 {
				t.Fatalf("unexpected id %d", id)
			}
			return sampleUser(), nil
		},
	}
	h := NewIdentityHandler(stub)
	c, rec := newTestContext(http.MethodGet, "/users/7", nil, "")
	c.Request().RemoteAddr = "192.0.2.1:5555"
	c.SetParamNames("user_id")
	c.SetParamValues("7")

	if err := h.GetUserByID(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestIdentityHandler_GetUserByID_BadID(t *testing.T) {
	h := NewIdentityHandler(&stubIdentityService{})
	for _, raw := range []string{"abc", "0", "-1"} {
		c, _ := newTestContext(http.MethodGet, "/users/"+raw, nil, "")
		c.SetParamNames("user_id")
		c.SetParamValues(raw)
		if err := h.GetUserByID(c); httpCode(err) != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %v", raw, err)
		}
	}
}

func TestIdentityHandler_GetUserByEmail_NotFound(t *testing.T) {
	stub := &stubIdentityService{
		getByMailFn: func(context.Context, string, string) (*domain.User, error) {
			return nil, domain.ErrIdentityNotFound
		},
	}
	h := NewIdentityHandler(stub)
	c, _ := newTestContext(http.MethodGet, "/user_by_email/x/y", nil, "")
	c.SetParamNames("email", "org")
	c.SetParamValues("x@example.com", "acme")

	if err := h.GetUserByEmail(c); !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestIdentityHandler_DeleteUser(t *testing.T) {
	found := true
	stub := &stubIdentityService{
		deleteFn: func(_ context.Context, email, org string) (bool, error) {
			if email != "ada@example.com" || org != "acme" {
				t.Fatalf("unexpected args %s %s", email, org)
			}
			return found, nil
		},
	}
	h := NewIdentityHandler(stub)

	for _, tc := range []struct {
		found bool
		code  int
	}{{true, http.StatusOK}, {false, http.StatusNotFound}} {
		found = tc.found
		c, rec := newTestContext(http.MethodDelete, "/user_delete/ada@example.com/acme", nil, "")
		c.SetParamNames("email", "org")
		c.SetParamValues("ada@example.com", "acme")
		if err := h.DeleteUser(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != tc.code {
			t.Fatalf("found=%v: expected %d, got %d", tc.found, tc.code, rec.Code)
		}
		if tc.found && !strings.Contains(rec.Body.String(), `"deleted":true`) {
			t.Fatalf("unexpected body %s", rec.Body.String())
		}
	}
}

func TestIdentityHandler_RenameUser(t *testing.T) {
	stub := &stubIdentityService{
		renameFn: func(_ context.Context, email, name, org string) (bool, error) {
			if name != "Grace" {
				t.Fatalf("unexpected name %q", name)
			}
			return true, nil
		},
	}
	h := NewIdentityHandler(stub)
	c, rec := newTestContext(http.MethodPost, "/user_update_name/a/Grace/acme", nil, "")
	c.SetParamNames("email", "new_name", "org")
	c.SetParamValues("ada@example.com", "Grace", "acme")

	if err := h.RenameUser(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"updated":true`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestIdentityHandler_SearchUsers_EmptyIsArray(t *testing.T) {
	stub := &stubIdentityService{
		searchFn: func(context.Context, string, string) ([]domain.User, error) {
			return []domain.User{}, nil
		},
	}
	h := NewIdentityHandler(stub)
	c, rec := newTestContext(http.MethodGet, "/search_users_by_name/x/acme", nil, "")
	c.SetParamNames("query", "org")
	c.SetParamValues("x", "acme")

	if err := h.SearchUsers(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestIdentityHandler_Authenticate(t *testing.T) {
	stub := &stubIdentityService{
		authFn: func(_ context.Context, email, password, org string) bool {
			return email == "ada@example.com" && password == "pw" && org == "acme"
		},
	}
	h := NewIdentityHandler(stub)

	c, rec := newTestContext(http.MethodGet, "/users/ada@example.com/pw/acme", nil, "")
	c.SetParamNames("email", "password", "org")
	c.SetParamValues("ada@example.com", "pw", "acme")
	if err := h.AuthenticatePath(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"authenticated":true`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	c, rec = newTestContext(http.MethodPost, "/authenticate",
		strings.NewReader(`{"email":"ada@example.com","password":"bad","org":"acme"}`), echo.MIMEApplicationJSON)
	if err := h.Authenticate(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"authenticated":false`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestIdentityHandler_ListAddresses(t *testing.T) {
	stub := &stubIdentityService{
		listAddrFn: func(_ context.Context, id int64) ([]domain.Address, error) {
			return []domain.Address{{ID: 1, UserID: id, Street: "1 Main", City: "X", Country: "US"}}, nil
		},
	}
	h := NewIdentityHandler(stub)
	c, rec := newTestContext(http.MethodGet, "/users/7/addresses", nil, "")
	c.SetParamNames("user_id")
	c.SetParamValues("7")

	if err := h.ListAddresses(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var addrs []domain.Address
	if err := json.Unmarshal(rec.Body.Bytes(), &addrs); err != nil || len(addrs) != 1 || addrs[0].UserID != 7 {
		t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
	}
}

func TestIdentityHandler_DecodesEncodedPathParams(t *testing.T) {
	var gotEmail, gotPassword, gotOrg string
	stub := &stubIdentityService{
		getByMailFn: func(_ context.Context, email, org string) (*domain.User, error) {
			gotEmail, gotOrg = email, org
			return sampleUser(), nil
		},
		authFn: func(_ context.Context, email, password, org string) bool {
			gotEmail, gotPassword, gotOrg = email, password, org
			return true
		},
	}
	h := NewIdentityHandler(stub)

	c, _ := newTestContext(http.MethodGet, "/user_by_email/a%2Bb%40example.com/acme%20labs", nil, "")
	c.SetParamNames("email", "org")
	c.SetParamValues("a%2Bb%40example.com", "acme%20labs")
	if err := h.GetUserByEmail(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if gotEmail != "a+b@example.com" || gotOrg != "acme labs" {
		t.Fatalf("params not decoded: %q %q", gotEmail, gotOrg)
	}

	c, rec := newTestContext(http.MethodGet, "/users/a%2Bb%40example.com/p%2Fw/acme", nil, "")
	c.SetParamNames("email", "password", "org")
	c.SetParamValues("a%2Bb%40example.com", "p%2Fw", "acme")
	if err := h.AuthenticatePath(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if gotEmail != "a+b@example.com" || gotPassword != "p/w" {
		t.Fatalf("params not decoded: %q %q", gotEmail, gotPassword)
	}
	if !strings.Contains(rec.Body.String(), `"authenticated":true`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestIdentityHandler_PlainPathParamsKeptVerbatim(t *testing.T) {
	var gotEmail string
	stub := &stubIdentityService{
		getByMailFn: func(_ context.Context, email, _ string) (*domain.User, error) {
			gotEmail = email
			return sampleUser(), nil
		},
	}
	h := NewIdentityHandler(stub)

	// Path "%" decoded by net/http already; it must not be unescaped twice.
	c, _ := newTestContext(http.MethodGet, "/user_by_email/100%25@example.com/acme", nil, "")
	c.SetParamNames("email", "org")
	c.SetParamValues("100%@example.com", "acme")
	if err := h.GetUserByEmail(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if gotEmail != "100%@example.com" {
		t.Fatalf("unexpected email %q", gotEmail)
	}
}

func TestIdentityHandler_BadPathEscape(t *testing.T) {
	h := NewIdentityHandler(&stubIdentityService{})
	c, _ := newTestContext(http.MethodDelete, "/user_delete/a%2Bb/acme", nil, "")
	c.SetParamNames("email", "org")
	c.SetParamValues("a%ZZ", "acme")

	if err := h.DeleteUser(c); httpCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
