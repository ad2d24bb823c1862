package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/99minutos/user-directory/internal/core/domain"
)

// newTestRepository connects to DIRECTORY_TEST_DATABASE_URL, applies the
// migrations and truncates both tables. Tests skip when it is unset.
func newTestRepository(t *testing.T) *IdentityRepository {
	t.Helper()
	url := os.Getenv("DIRECTORY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DIRECTORY_TEST_DATABASE_URL not set")
	}
	if err := Migrate(url, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `TRUNCATE addresses, users RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewIdentityRepository(pool)
}

func testUser(email, org string) *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		FirstName:         "Ada",
		LastName:          "Lovelace",
		Email:             email,
		Org:               org,
		EncryptedPassword: "$2a$10$digest",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestIdentityRepository_CreateAndFind(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, testUser("ada@example.com", "acme"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	byID, err := repo.FindUserByID(ctx, created.ID)
	if err != nil || byID.Email != "ada@example.com" {
		t.Fatalf("find by id: %+v %v", byID, err)
	}
	byEmail, err := repo.FindUserByEmail(ctx, "ada@example.com", "acme")
	if err != nil || byEmail.ID != created.ID {
		t.Fatalf("find by email: %+v %v", byEmail, err)
	}
	if _, err := repo.FindUserByEmail(ctx, "ada@example.com", "other"); !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Fatalf("expected not found in other org, got %v", err)
	}
}

func TestIdentityRepository_DuplicatePerOrg(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, testUser("a@example.com", "acme")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateUser(ctx, testUser("a@example.com", "acme")); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := repo.CreateUser(ctx, testUser("a@example.com", "globex")); err != nil {
		t.Fatalf("same email in another org should be allowed: %v", err)
	}
}

func TestIdentityRepository_ConcurrentCreateSingleWinner(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.CreateUser(ctx, testUser("race@example.com", "acme"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, domain.ErrDuplicateIdentity):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one winner, got %d", ok)
	}
}

func TestIdentityRepository_DeleteCascadesAddresses(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, testUser("del@example.com", "acme"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateAddress(ctx, &domain.Address{UserID: u.ID, Street: "1 Main", City: "Springfield", Country: "US"}); err != nil {
		t.Fatalf("address: %v", err)
	}

	if err := repo.DeleteUserByEmail(ctx, "del@example.com", "acme"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	addrs, err := repo.ListAddresses(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(addrs) != 0 {
		t.Fatalf("expected cascade, got %d addresses", len(addrs))
	}
	if err := repo.DeleteUserByEmail(ctx, "del@example.com", "acme"); !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestIdentityRepository_AddressForMissingUser(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.CreateAddress(context.Background(), &domain.Address{UserID: 999, Street: "x", City: "y", Country: "z"})
	if !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIdentityRepository_AddressOptionalFields(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	u, _ := repo.CreateUser(ctx, testUser("addr@example.com", "acme"))
	created, err := repo.CreateAddress(ctx, &domain.Address{UserID: u.ID, Street: "1 Main", City: "Springfield", State: "IL", Country: "US"})
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if created.State != "IL" || created.ZipCode != "" {
		t.Fatalf("unexpected optional fields: %+v", created)
	}
}

func TestIdentityRepository_UpdateFirstName(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, _ = repo.CreateUser(ctx, testUser("upd@example.com", "acme"))
	if err := repo.UpdateFirstName(ctx, "upd@example.com", "acme", "Grace"); err != nil {
		t.Fatalf("update: %v", err)
	}
	u, _ := repo.FindUserByEmail(ctx, "upd@example.com", "acme")
	if u.FirstName != "Grace" {
		t.Fatalf("expected renamed user, got %q", u.FirstName)
	}
	if err := repo.UpdateFirstName(ctx, "nobody@example.com", "acme", "X"); !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIdentityRepository_SearchIsLiteralAndScoped(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i, email := range []string{"john_doe@example.com", "johnxdoe@example.com", "JOHN@corp.com"} {
		if _, err := repo.CreateUser(ctx, testUser(email, "acme")); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	_, _ = repo.CreateUser(ctx, testUser("john@example.com", "globex"))

	got, err := repo.SearchByEmail(ctx, "john", "acme")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 case-insensitive matches in acme, got %d", len(got))
	}

	got, _ = repo.SearchByEmail(ctx, "john_", "acme")
	if len(got) != 1 || got[0].Email != "john_doe@example.com" {
		t.Fatalf("underscore must match literally, got %v", emails(got))
	}

	got, _ = repo.SearchByEmail(ctx, "%", "acme")
	if len(got) != 0 {
		t.Fatalf("percent must match literally, got %v", emails(got))
	}
}

func emails(users []domain.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, fmt.Sprintf("%d:%s", u.ID, u.Email))
	}
	return out
}
