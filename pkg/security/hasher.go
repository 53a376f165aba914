package security

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor new bcrypt hashes are created with
const BcryptCost = 10

// Hasher hashes passwords and checks them against stored hashes.
// Compare returns false with a nil error for a plain mismatch.
type Hasher interface {
	Hash(p string) (string, error)
	Compare(hash, p string) (bool, error)
}

// PasswordHasher creates hashes with the configured algorithm and verifies
// hashes of either kind by their prefix, so switching the algorithm doesn't
// lock out existing users
type PasswordHasher struct {
	algorithm string
	cost      int
	argon     *ArgonHash
}

// NewPasswordHasher returns a hasher for "bcrypt" or "argon2id"
func NewPasswordHasher(algorithm string) (*PasswordHasher, error) {
	switch algorithm {
	case "bcrypt", "argon2id":
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}

	return &PasswordHasher{
		algorithm: algorithm,
		cost:      BcryptCost,
		argon:     NewArgon(),
	}, nil
}

func (h *PasswordHasher) Hash(p string) (string, error) {
	if h.algorithm == "argon2id" {
		return h.argon.Hash(p)
	}

	b, err := bcrypt.GenerateFromPassword([]byte(p), h.cost)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func (h *PasswordHasher) Compare(hash, p string) (bool, error) {
	if strings.HasPrefix(hash, argonPrefix) {
		return h.argon.Compare(hash, p)
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(p))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, err
}
