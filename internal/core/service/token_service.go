package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/user-directory/internal/core/domain"
)

const defaultTokenTTL = 30 * time.Minute

// tokenClaims is the JWT payload: sub carries the email.
type tokenClaims struct {
	jwt.RegisteredClaims
	Org string `json:"org,omitempty"`
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithTokenClock replaces the wall clock. Used by tests to simulate expiry.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// WithIssuer sets the iss claim written and required by the service.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) { s.issuer = issuer }
}

func NewTokenService(secret string, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token service: secret is required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	s := &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueToken mints a token asserting email and, when non-empty, org.
func (s *TokenService) IssueToken(email, org string) (string, error) {
	now := s.now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Org: org,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// VerifyToken checks signature, algorithm, expiry and issuer. Every failure
// collapses to domain.ErrInvalidCredentials.
func (s *TokenService) VerifyToken(token string) (domain.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims tokenClaims
	tkn, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return domain.Claims{}, domain.ErrInvalidCredentials
	}

	out := domain.Claims{Subject: claims.Subject, Org: claims.Org}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
