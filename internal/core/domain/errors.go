package domain

import "errors"

var (
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("access forbidden")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrStoreFailure       = errors.New("store failure")
	ErrInvalidInput       = errors.New("invalid input")
)
