package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past this length, so longer passwords are refused outright.
const maxPasswordBytes = 72

var (
	// decoyOnce lazily hashes a throwaway password so lookups of unknown users
	// spend the same bcrypt time as real mismatches.
	decoyOnce sync.Once
	decoyHash []byte
)

// hashPassword returns the bcrypt hash stored for a user account.
func hashPassword(password string) (string, error) {
	switch {
	case password == "":
		return "", fmt.Errorf("%w: password is required", ErrInvalidInput)
	case len(password) > maxPasswordBytes:
		return "", fmt.Errorf("%w: password exceeds %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// checkPassword reports ErrUnauthenticated unless password matches the stored hash.
func checkPassword(hash, password string) error {
	if hash == "" {
		return fmt.Errorf("%w: account has no password", ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	}
	return nil
}

// burnPasswordCheck runs a comparison that always fails.
func burnPasswordCheck(password string) {
	decoyOnce.Do(func() {
		decoyHash, _ = bcrypt.GenerateFromPassword([]byte("itroom-decoy"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(password))
}
