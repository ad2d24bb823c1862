package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/99minutos/user-directory/internal/core/domain"
)

var errStoreDown = errors.New("connection refused")

// stubIdentityRepo is an in-memory ports.IdentityRepository. Setting fail
// makes every call return errStoreDown.
type stubIdentityRepo struct {
	mu        sync.Mutex
	users     map[int64]*domain.User
	addresses map[int64][]domain.Address
	nextUser  int64
	nextAddr  int64
	fail      bool
}

func newStubIdentityRepo() *stubIdentityRepo {
	return &stubIdentityRepo{
		users:     make(map[int64]*domain.User),
		addresses: make(map[int64][]domain.Address),
	}
}

func (r *stubIdentityRepo) CreateUser(_ context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errStoreDown
	}
	for _, existing := range r.users {
		if existing.Email == u.Email && existing.Org == u.Org {
			return nil, domain.ErrDuplicateIdentity
		}
	}
	r.nextUser++
	cp := *u
	cp.ID = r.nextUser
	r.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *stubIdentityRepo) FindUserByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errStoreDown
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubIdentityRepo) FindUserByEmail(_ context.Context, email, org string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errStoreDown
	}
	u := r.byEmail(email, org)
	if u == nil {
		return nil, domain.ErrIdentityNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubIdentityRepo) DeleteUserByEmail(_ context.Context, email, org string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errStoreDown
	}
	u := r.byEmail(email, org)
	if u == nil {
		return domain.ErrIdentityNotFound
	}
	delete(r.users, u.ID)
	delete(r.addresses, u.ID)
	return nil
}

func (r *stubIdentityRepo) UpdateFirstName(_ context.Context, email, org, firstName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errStoreDown
	}
	u := r.byEmail(email, org)
	if u == nil {
		return domain.ErrIdentityNotFound
	}
	u.FirstName = firstName
	return nil
}

func (r *stubIdentityRepo) SearchByEmail(_ context.Context, query, org string) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errStoreDown
	}
	var out []domain.User
	for _, u := range r.users {
		if u.Org == org && strings.Contains(strings.ToLower(u.Email), strings.ToLower(query)) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubIdentityRepo) CreateAddress(_ context.Context, a *domain.Address) (*domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errStoreDown
	}
	if _, ok := r.users[a.UserID]; !ok {
		return nil, domain.ErrIdentityNotFound
	}
	r.nextAddr++
	cp := *a
	cp.ID = r.nextAddr
	r.addresses[a.UserID] = append(r.addresses[a.UserID], cp)
	return &cp, nil
}

func (r *stubIdentityRepo) ListAddresses(_ context.Context, userID int64) ([]domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errStoreDown
	}
	return append([]domain.Address(nil), r.addresses[userID]...), nil
}

func (r *stubIdentityRepo) Ping(context.Context) error {
	if r.fail {
		return errStoreDown
	}
	return nil
}

func (r *stubIdentityRepo) byEmail(email, org string) *domain.User {
	for _, u := range r.users {
		if u.Email == email && u.Org == org {
			return u
		}
	}
	return nil
}

// fakeHasher is a reversible ports.CredentialHasher so tests stay fast.
type fakeHasher struct {
	mu        sync.Mutex
	hashed    []string
	equalized int
}

func (h *fakeHasher) Hash(plaintext string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hashed = append(h.hashed, plaintext)
	return "hashed:" + plaintext, nil
}

func (h *fakeHasher) Verify(plaintext, digest string) bool {
	return digest == "hashed:"+plaintext
}

func (h *fakeHasher) Equalize(string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.equalized++
}
