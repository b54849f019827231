package auth

import (
	"context"
	"strings"
	"sync"

	"agrolink.org/internal/ids"
)

const userStatusActive = "active"

// User is a directory record backing real credential exchange.
type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         Role
	Status       string
}

// Directory is the external user store consumed by credential exchange.
// Only lookup is needed here; user management is owned elsewhere.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Login exchanges email/password credentials for a session token. Any
// mismatch fails with ErrUnauthorized without disclosing which check failed.
func Login(ctx context.Context, dir Directory, email, password string) (string, Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", Identity{}, ErrUnauthorized
	}
	user, err := dir.FindByEmail(ctx, email)
	if err != nil {
		return "", Identity{}, ErrUnauthorized
	}
	if user.Status != userStatusActive {
		return "", Identity{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", Identity{}, ErrUnauthorized
	}
	identity := Identity{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
	}
	token, err := IssueToken(identity, DefaultTTL)
	if err != nil {
		return "", Identity{}, err
	}
	return token, identity, nil
}

// InMemoryDirectory is the volatile fallback when no user store is reachable.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]*User // keyed by lower-cased email
}

// NewInMemoryDirectory creates an empty directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{users: make(map[string]*User)}
}

// Seed inserts a user with the given plaintext password, replacing any
// existing record for the same email.
func (d *InMemoryDirectory) Seed(displayName, email, password string, role Role) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           ids.New(),
		DisplayName:  displayName,
		Email:        strings.TrimSpace(strings.ToLower(email)),
		PasswordHash: hash,
		Role:         role,
		Status:       userStatusActive,
	}
	d.mu.Lock()
	d.users[user.Email] = user
	d.mu.Unlock()
	return user, nil
}

func (d *InMemoryDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[strings.TrimSpace(strings.ToLower(email))]
	if !ok {
		return nil, ErrUnauthorized
	}
	out := *user
	return &out, nil
}
