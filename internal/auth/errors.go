package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no valid identity was presented.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	// ErrForbidden means the identity is valid but lacks the role or module grant.
	ErrForbidden     = errors.New("auth: forbidden")
	ErrInvalidInput  = errors.New("auth: invalid input")
	ErrNotFound      = errors.New("auth: not found")
	ErrConflict      = errors.New("auth: already exists")
	ErrStorage       = errors.New("auth: storage failure")
	ErrInvalidToken  = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	errMissingSecret = errors.New("auth: token secret is not configured")
)

// storageErr wraps store failures that are not already one of the package sentinels.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
