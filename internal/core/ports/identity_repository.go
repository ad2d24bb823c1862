package ports

import (
	"context"

	"github.com/99minutos/user-directory/internal/core/domain"
)

// IdentityRepository defines persistence for users and their addresses.
// Implementations map driver errors to domain sentinels:
// ErrIdentityNotFound on misses and ErrDuplicateIdentity on (email, org)
// conflicts. Every mutating call runs in its own transaction.
type IdentityRepository interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	FindUserByID(ctx context.Context, id int64) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email, org string) (*domain.User, error)
	// DeleteUserByEmail removes the user and every address it owns.
	DeleteUserByEmail(ctx context.Context, email, org string) error
	UpdateFirstName(ctx context.Context, email, org, firstName string) error
	// SearchByEmail matches query as a literal, case-insensitive substring.
	SearchByEmail(ctx context.Context, query, org string) ([]domain.User, error)
	// CreateAddress verifies the owner exists in the same transaction as the insert.
	CreateAddress(ctx context.Context, addr *domain.Address) (*domain.Address, error)
	ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error)
	Ping(ctx context.Context) error
}
