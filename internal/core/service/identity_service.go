package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
	"github.com/99minutos/user-directory/internal/pkg/metrics"
)

// bcrypt ignores everything past 72 bytes, so longer passwords are refused.
const maxPasswordBytes = 72

// IdentityService implements ports.IdentityService. It holds no per-call
// state; every operation is one scoped repository call.
type IdentityService struct {
	repo   ports.IdentityRepository
	hasher ports.CredentialHasher
	log    zerolog.Logger
	now    func() time.Time
}

func NewIdentityService(repo ports.IdentityRepository, hasher ports.CredentialHasher, log zerolog.Logger) *IdentityService {
	return &IdentityService{
		repo:   repo,
		hasher: hasher,
		log:    log.With().Str("component", "identity_service").Logger(),
		now:    time.Now,
	}
}

// CreateUser registers a user, hashing the password once before persisting.
func (s *IdentityService) CreateUser(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	org := normalizeOrg(in.Org)
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)

	if first == "" || last == "" || email == "" || in.Password == "" || len(in.Password) > maxPasswordBytes {
		return nil, domain.ErrInvalidInput
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.log.Error().Err(err).Str("org", org).Msg("failed to hash password")
		return nil, domain.ErrStoreFailure
	}

	now := s.now().UTC()
	created, err := s.repo.CreateUser(ctx, &domain.User{
		FirstName:         first,
		LastName:          last,
		Email:             email,
		Org:               org,
		EncryptedPassword: hash,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			s.log.Info().Str("email", email).Str("org", org).Msg("user already exists")
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, s.storeFailure(err, "create user", email, org)
	}

	metrics.UsersCreatedTotal.Inc()
	s.log.Info().Int64("user_id", created.ID).Str("org", org).Msg("user created")
	return created, nil
}

// GetUserByID looks a user up by its global id. Not tenant scoped.
func (s *IdentityService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			s.log.Info().Int64("user_id", id).Msg("no user found")
			return nil, domain.ErrIdentityNotFound
		}
		return nil, s.storeFailure(err, "get user by id", "", "")
	}
	return u, nil
}

func (s *IdentityService) GetUserByEmail(ctx context.Context, email, org string) (*domain.User, error) {
	email, org = normalizeEmail(email), normalizeOrg(org)
	u, err := s.repo.FindUserByEmail(ctx, email, org)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			s.log.Info().Str("email", email).Str("org", org).Msg("no user found")
			return nil, domain.ErrIdentityNotFound
		}
		return nil, s.storeFailure(err, "get user by email", email, org)
	}
	return u, nil
}

// AuthenticatePassword reports whether password matches the stored digest of
// (email, org). Unknown identities, wrong passwords and store errors are
// indistinguishable to the caller, including in timing.
func (s *IdentityService) AuthenticatePassword(ctx context.Context, email, password, org string) bool {
	email, org = normalizeEmail(email), normalizeOrg(org)

	u, err := s.repo.FindUserByEmail(ctx, email, org)
	if err != nil {
		s.hasher.Equalize(password)
		if errors.Is(err, domain.ErrIdentityNotFound) {
			s.log.Debug().Str("email", email).Str("org", org).Msg("authentication failed: unknown identity")
		} else {
			s.log.Error().Err(err).Str("org", org).Msg("authentication failed: store error")
		}
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return false
	}

	if !s.hasher.Verify(password, u.EncryptedPassword) {
		s.log.Debug().Str("email", email).Str("org", org).Msg("authentication failed: wrong password")
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return false
	}

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	return true
}

// DeleteUser removes (email, org) and its addresses. Returns false when no
// such user exists.
func (s *IdentityService) DeleteUser(ctx context.Context, email, org string) (bool, error) {
	email, org = normalizeEmail(email), normalizeOrg(org)
	if err := s.repo.DeleteUserByEmail(ctx, email, org); err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			s.log.Info().Str("email", email).Str("org", org).Msg("no user to delete")
			return false, nil
		}
		return false, s.storeFailure(err, "delete user", email, org)
	}
	s.log.Info().Str("email", email).Str("org", org).Msg("user deleted")
	return true, nil
}

// RenameUser replaces the first name of (email, org).
func (s *IdentityService) RenameUser(ctx context.Context, email, newFirstName, org string) (bool, error) {
	email, org = normalizeEmail(email), normalizeOrg(org)
	name := strings.TrimSpace(newFirstName)
	if name == "" {
		return false, domain.ErrInvalidInput
	}

	if err := s.repo.UpdateFirstName(ctx, email, org, name); err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			s.log.Info().Str("email", email).Str("org", org).Msg("no user to rename")
			return false, nil
		}
		return false, s.storeFailure(err, "rename user", email, org)
	}
	s.log.Info().Str("email", email).Str("org", org).Msg("user renamed")
	return true, nil
}

func (s *IdentityService) SearchByEmailSubstring(ctx context.Context, query, org string) ([]domain.User, error) {
	org = normalizeOrg(org)
	users, err := s.repo.SearchByEmail(ctx, strings.TrimSpace(query), org)
	if err != nil {
		return nil, s.storeFailure(err, "search users", "", org)
	}
	if users == nil {
		users = []domain.User{}
	}
	s.log.Debug().Str("org", org).Int("matches", len(users)).Msg("user search")
	return users, nil
}

// AddAddress stores a new address for an existing user.
func (s *IdentityService) AddAddress(ctx context.Context, in ports.AddressInput) (*domain.Address, error) {
	if in.UserID <= 0 {
		return nil, domain.ErrIdentityNotFound
	}
	street, city, country := strings.TrimSpace(in.Street), strings.TrimSpace(in.City), strings.TrimSpace(in.Country)
	if street == "" || city == "" || country == "" {
		return nil, domain.ErrInvalidInput
	}

	addr, err := s.repo.CreateAddress(ctx, &domain.Address{
		UserID:  in.UserID,
		Street:  street,
		City:    city,
		State:   strings.TrimSpace(in.State),
		ZipCode: strings.TrimSpace(in.ZipCode),
		Country: country,
	})
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			s.log.Info().Int64("user_id", in.UserID).Msg("no user for address")
			return nil, domain.ErrIdentityNotFound
		}
		return nil, s.storeFailure(err, "add address", "", "")
	}

	s.log.Info().Int64("user_id", in.UserID).Int64("address_id", addr.ID).Msg("address added")
	return addr, nil
}

func (s *IdentityService) ListAddresses(ctx context.Context, userID int64) ([]domain.Address, error) {
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	addrs, err := s.repo.ListAddresses(ctx, userID)
	if err != nil {
		return nil, s.storeFailure(err, "list addresses", "", "")
	}
	if addrs == nil {
		addrs = []domain.Address{}
	}
	return addrs, nil
}

func (s *IdentityService) LookupIDBy(ctx context.Context, email, org string) (int64, error) {
	u, err := s.GetUserByEmail(ctx, email, org)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// AuthorizeOwner resolves the token identity and compares it to the
// resource owner. The resolved id is what callers must write with.
func (s *IdentityService) AuthorizeOwner(ctx context.Context, claims domain.Claims, targetUserID int64) (int64, error) {
	if claims.Subject == "" {
		return 0, domain.ErrInvalidCredentials
	}

	id, err := s.LookupIDBy(ctx, claims.Subject, claims.Org)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			// The token names nobody any more, e.g. the user was deleted.
			return 0, domain.ErrInvalidCredentials
		}
		return 0, err
	}

	if targetUserID != 0 && targetUserID != id {
		s.log.Warn().
			Int64("token_user_id", id).
			Int64("target_user_id", targetUserID).
			Msg("owner mismatch")
		return 0, domain.ErrForbidden
	}
	return id, nil
}

// storeFailure logs the underlying cause and hides it from the caller.
func (s *IdentityService) storeFailure(err error, op, email, org string) error {
	ev := s.log.Error().Err(err).Str("op", op)
	if email != "" {
		ev = ev.Str("email", email)
	}
	if org != "" {
		ev = ev.Str("org", org)
	}
	ev.Msg("store operation failed")
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	return domain.ErrStoreFailure
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeOrg(org string) string {
	return strings.TrimSpace(org)
}
