package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vidunsterling-afk/itroom-sub000/internal/ids"
)

// Authenticator checks credentials against the user store and issues role tokens.
type Authenticator struct {
	users  UserStore
	tokens *TokenIssuer
}

func NewAuthenticator(users UserStore, tokens *TokenIssuer) (*Authenticator, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	return &Authenticator{users: users, tokens: tokens}, nil
}

// Login verifies username and password and returns the principal with a signed token.
// Every credential failure is reported as ErrUnauthenticated without detail.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Principal, string, time.Time, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || password == "" {
		return Principal{}, "", time.Time{}, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	user, err := a.users.FindUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		burnPasswordCheck(password)
		return Principal{}, "", time.Time{}, fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	}
	if err != nil {
		return Principal{}, "", time.Time{}, storageErr("find user", err)
	}
	if err := checkPassword(user.PasswordHash, password); err != nil {
		return Principal{}, "", time.Time{}, err
	}
	if !user.IsActive {
		return Principal{}, "", time.Time{}, fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	}
	p := Principal{UserID: user.ID, Username: user.Username, Role: user.Role}
	token, expiresAt, err := a.tokens.Generate(p)
	if err != nil {
		return Principal{}, "", time.Time{}, err
	}
	return p, token, expiresAt, nil
}

// Authenticate resolves a bearer token into a principal.
func (a *Authenticator) Authenticate(token string) (Principal, error) {
	return a.tokens.Parse(token)
}

// EnsureUser creates the account when it does not exist yet. Existing accounts are left untouched.
func (a *Authenticator) EnsureUser(ctx context.Context, username, password string, role Role) (User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if _, ok := ParseRole(string(role)); !ok {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	existing, err := a.users.FindUserByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, storageErr("find user", err)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return User{}, err
	}
	user, err := a.users.CreateUser(ctx, User{
		ID:           ids.New(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		return User{}, storageErr("create user", err)
	}
	return user, nil
}
