package ports

import (
	"context"

	"github.com/99minutos/user-directory/internal/core/domain"
)

// CreateUserInput is the DTO passed from the transport layer to IdentityService.
type CreateUserInput struct {
	FirstName string
	LastName  string
	Email     string
	Org       string
	Password  string
}

// AddressInput carries the fields of a new address. UserID must already be
// authorized by the caller.
type AddressInput struct {
	UserID  int64
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// IdentityService defines the tenant-scoped use cases of the directory.
type IdentityService interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email, org string) (*domain.User, error)
	// AuthenticatePassword never reports why a check failed.
	AuthenticatePassword(ctx context.Context, email, password, org string) bool
	DeleteUser(ctx context.Context, email, org string) (bool, error)
	RenameUser(ctx context.Context, email, newFirstName, org string) (bool, error)
	SearchByEmailSubstring(ctx context.Context, query, org string) ([]domain.User, error)
	AddAddress(ctx context.Context, in AddressInput) (*domain.Address, error)
	ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error)
	LookupIDBy(ctx context.Context, email, org string) (int64, error)
	// AuthorizeOwner resolves the token subject to a user id and checks it
	// against targetUserID. A zero target means "whoever the token names".
	AuthorizeOwner(ctx context.Context, claims domain.Claims, targetUserID int64) (int64, error)
}
