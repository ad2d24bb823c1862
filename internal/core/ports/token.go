package ports

import "github.com/99minutos/user-directory/internal/core/domain"

// TokenIssuer mints bearer tokens for an authenticated identity.
type TokenIssuer interface {
	IssueToken(email, org string) (string, error)
}

// TokenVerifier validates bearer tokens. Any failure is domain.ErrInvalidCredentials.
type TokenVerifier interface {
	VerifyToken(token string) (domain.Claims, error)
}
