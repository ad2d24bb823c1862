package ports

// CredentialHasher produces and checks one-way password digests.
type CredentialHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
	// Equalize spends the same work as a failed Verify. Used when there is
	// no stored digest to compare against.
	Equalize(plaintext string)
}
