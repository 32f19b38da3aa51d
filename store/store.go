// Package store holds the user and contact message repositories.
package store

import (
	"context"
	"errors"
	"time"

	"bamikavision/models"
)

var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUsername indicates the username is already taken
	ErrDuplicateUsername = errors.New("username already exists")
)

// UserRepository stores user accounts. Usernames are unique and case-sensitive.
type UserRepository interface {
	// Create assigns the next id to u and stores it.
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	CountAdmins(ctx context.Context) (int, error)
}

// MessageRepository is an append-only collection of contact messages.
type MessageRepository interface {
	// Append stores a new message with the next sequential id. It does not validate.
	Append(ctx context.Context, name, email, message string) (*models.ContactMessage, error)
	// ListAll returns every stored message in no particular order.
	ListAll(ctx context.Context) ([]models.ContactMessage, error)
}

// clock hands out timestamps that never go backwards, so that a later id
// never carries an earlier creation time. Callers hold the repository lock.
type clock struct {
	now  func() time.Time
	last time.Time
}

func (c *clock) next() time.Time {
	t := c.now().UTC()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
