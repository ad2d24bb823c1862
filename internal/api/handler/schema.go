package handler

import (
	"time"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request types ---

type createUserRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name"  validate:"required,max=100"`
	Email     string `json:"email"      validate:"required,email,max=100"`
	Org       string `json:"org"        validate:"max=100"`
	Password  string `json:"password"   validate:"required,max=72"`
}

type authenticateRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
	Org      string `json:"org"`
}

type loginRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
	Org      string `form:"org"`
}

type addressRequest struct {
	UserID  int64  `json:"user_id"`
	Street  string `json:"street"   validate:"required,max=255"`
	City    string `json:"city"     validate:"required,max=100"`
	State   string `json:"state"    validate:"max=100"`
	ZipCode string `json:"zip_code" validate:"max=20"`
	Country string `json:"country"  validate:"required,max=100"`
}

type summarizeRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"      validate:"required"`
	Text        string  `json:"text"        validate:"required"`
	Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `json:"max_tokens"  validate:"gte=0,lte=16384"`
}

// --- Response types ---

type userResponse struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Org       string    `json:"org"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type deletedResponse struct {
	Deleted bool `json:"deleted"`
}

type updatedResponse struct {
	Updated bool `json:"updated"`
}

type authenticatedResponse struct {
	Authenticated bool `json:"authenticated"`
}

type summarizeResponse struct {
	Response string `json:"response"`
}

// bulkResponse mirrors ports.BulkResult for the API docs.
type bulkResponse = ports.BulkResult

// toUserResponse never exposes the stored digest.
func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Org:       u.Org,
		Password:  domain.ProtectedPassword,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toUserResponses(users []domain.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	return out
}
