package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bamikavision/crypto"
	"bamikavision/logging"
	"bamikavision/models"
	"bamikavision/store"

	"github.com/rs/zerolog"
)

// MinPasswordLength applies to accounts created through CreateUser.
const MinPasswordLength = 8

var (
	ErrAuthenticationFailed = errors.New("invalid username or password")
	ErrUsernameRequired     = errors.New("username is required")
	ErrPasswordTooShort     = errors.New("password is too short")
	ErrInvalidRole          = errors.New("invalid role")
)

// Credentials owns user accounts and password verification.
type Credentials struct {
	users     store.UserRepository
	dummyHash string
	logger    zerolog.Logger
}

func NewCredentials(users store.UserRepository) (*Credentials, error) {
	// Verified against when the username is unknown so both paths cost the same.
	dummy, err := crypto.HashPassword(crypto.RandomToken(16))
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Credentials{
		users:     users,
		dummyHash: dummy,
		logger:    logging.NewLogger("auth"),
	}, nil
}

func (c *Credentials) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return c.users.GetByID(ctx, id)
}

func (c *Credentials) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return c.users.GetByUsername(ctx, strings.TrimSpace(username))
}

// CreateUser hashes password and stores a new account.
// It returns store.ErrDuplicateUsername when the name is taken.
func (c *Credentials) CreateUser(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if len([]rune(password)) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{Username: username, PasswordHash: hash, Role: role}
	if err := c.users.Create(ctx, u); err != nil {
		return nil, err
	}
	c.logger.Info().Int64("user_id", u.ID).Str("username", u.Username).Str("role", string(u.Role)).Msg("User created")
	return u, nil
}

// Authenticate returns the user whose password matches, or ErrAuthenticationFailed.
// The username is trimmed the same way CreateUser trims it.
func (c *Credentials) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	u, err := c.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash := c.dummyHash
	if u != nil {
		hash = u.PasswordHash
	}
	ok, err := crypto.VerifyPassword(password, hash)
	if err != nil {
		return nil, fmt.Errorf("verify password for %q: %w", username, err)
	}
	if u == nil || !ok {
		return nil, ErrAuthenticationFailed
	}
	return u, nil
}

// EnsureBootstrapAdmin creates the initial admin when no admin account exists.
// It reports whether an account was created.
func (c *Credentials) EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	admins, err := c.users.CountAdmins(ctx)
	if err != nil {
		return false, err
	}
	if admins > 0 {
		return false, nil
	}
	if _, err := c.CreateUser(ctx, username, password, models.RoleAdmin); err != nil {
		return false, fmt.Errorf("create bootstrap admin: %w", err)
	}
	return true, nil
}
