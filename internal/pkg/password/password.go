// Package password hashes and verifies user credentials with bcrypt.
// Plaintext passwords must never be logged or persisted by callers.
package password

import (
	"crypto/rand"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords using bcrypt.
type Hasher struct {
	cost int

	// dummy is a digest of random bytes at the same cost as real digests.
	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher with the given bcrypt cost. Zero or negative
// selects bcrypt.DefaultCost; out-of-range values are clamped.
func NewHasher(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost reports the bcrypt work factor in use.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns a salted bcrypt digest of plaintext. Each call uses a fresh
// salt, so the same plaintext never hashes to the same digest twice.
func (h *Hasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plaintext matches digest. Malformed digests yield false.
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// Equalize performs a comparison that always fails.
func (h *Hasher) Equalize(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyDigest(), []byte(plaintext))
}

func (h *Hasher) dummyDigest() []byte {
	h.dummyOnce.Do(func() {
		secret := make([]byte, 32)
		_, _ = rand.Read(secret)
		h.dummy, _ = bcrypt.GenerateFromPassword(secret, h.cost)
	})
	return h.dummy
}
