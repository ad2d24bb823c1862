package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/99minutos/user-directory/internal/core/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	userColumns    = `id, first_name, last_name, email, org, encrypted_password, created_at, updated_at`
	addressColumns = `id, user_id, street, city, COALESCE(state, ''), COALESCE(zip_code, ''), country`
)

// IdentityRepository implements ports.IdentityRepository on PostgreSQL.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func (r *IdentityRepository) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var created *domain.User
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO users (first_name, last_name, email, org, encrypted_password, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+userColumns,
			user.FirstName, user.LastName, user.Email, user.Org, user.EncryptedPassword,
			user.CreatedAt, user.UpdatedAt,
		)
		u, err := scanUser(row)
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *IdentityRepository) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "find user by id")
	}
	return u, nil
}

func (r *IdentityRepository) FindUserByEmail(ctx context.Context, email, org string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND org = $2`, email, org))
	if err != nil {
		return nil, notFoundOr(err, "find user by email")
	}
	return u, nil
}

// DeleteUserByEmail relies on ON DELETE CASCADE to remove owned addresses.
func (r *IdentityRepository) DeleteUserByEmail(ctx context.Context, email, org string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE email = $1 AND org = $2`, email, org)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrIdentityNotFound
		}
		return nil
	})
}

func (r *IdentityRepository) UpdateFirstName(ctx context.Context, email, org, firstName string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users SET first_name = $3, updated_at = now()
			WHERE email = $1 AND org = $2
		`, email, org, firstName)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrIdentityNotFound
		}
		return nil
	})
}

func (r *IdentityRepository) SearchByEmail(ctx context.Context, query, org string) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE org = $2 AND email ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY id
	`, escapeLike(query), org)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// CreateAddress locks the owner row FOR SHARE so a concurrent delete cannot
// slip between the existence check and the insert.
func (r *IdentityRepository) CreateAddress(ctx context.Context, addr *domain.Address) (*domain.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var created domain.Address
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var one int
		if err := tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR SHARE`, addr.UserID).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrIdentityNotFound
			}
			return err
		}

		return tx.QueryRow(ctx, `
			INSERT INTO addresses (user_id, street, city, state, zip_code, country)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
			RETURNING `+addressColumns,
			addr.UserID, addr.Street, addr.City, addr.State, addr.ZipCode, addr.Country,
		).Scan(
			&created.ID, &created.UserID, &created.Street, &created.City,
			&created.State, &created.ZipCode, &created.Country,
		)
	})
	switch {
	case errors.Is(err, domain.ErrIdentityNotFound), isPgCode(err, pgForeignKeyViolation):
		return nil, domain.ErrIdentityNotFound
	case err != nil:
		return nil, fmt.Errorf("insert address: %w", err)
	}
	return &created, nil
}

func (r *IdentityRepository) ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	addrs := []domain.Address{}
	for rows.Next() {
		var a domain.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.State, &a.ZipCode, &a.Country); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addrs = append(addrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return addrs, nil
}

func (r *IdentityRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Org,
		&u.EncryptedPassword, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrIdentityNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// escapeLike makes query match literally inside a LIKE pattern.
func escapeLike(query string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
}
