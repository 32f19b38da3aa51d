package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"bamikavision/models"

	"github.com/mattn/go-sqlite3"
)

// SQLiteUsers keeps users in the users table created by db.Open.
type SQLiteUsers struct {
	db    *sql.DB
	mu    sync.Mutex
	clock clock
}

func NewSQLiteUsers(db *sql.DB) *SQLiteUsers {
	return &SQLiteUsers{db: db, clock: clock{now: time.Now}}
}

func (s *SQLiteUsers) Create(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.clock.next()
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)",
		u.Username, u.PasswordHash, string(u.Role), u.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return nil
}

func (s *SQLiteUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, role, created_at FROM users WHERE id = ?", id))
}

func (s *SQLiteUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?", username))
}

func (s *SQLiteUsers) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role = ?", string(models.RoleAdmin)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

func (s *SQLiteUsers) scanOne(row *sql.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

// SQLiteMessages keeps contact messages in the contact_messages table.
type SQLiteMessages struct {
	db    *sql.DB
	mu    sync.Mutex
	clock clock
}

func NewSQLiteMessages(db *sql.DB) *SQLiteMessages {
	return &SQLiteMessages{db: db, clock: clock{now: time.Now}}
}

func (s *SQLiteMessages) Append(ctx context.Context, name, email, message string) (*models.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := models.ContactMessage{
		Name:      name,
		Email:     email,
		Message:   message,
		CreatedAt: s.clock.next(),
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO contact_messages (name, email, message, created_at) VALUES (?, ?, ?, ?)",
		msg.Name, msg.Email, msg.Message, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert contact message: %w", err)
	}
	if msg.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("insert contact message: %w", err)
	}
	return &msg, nil
}

func (s *SQLiteMessages) ListAll(ctx context.Context) ([]models.ContactMessage, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, email, message, created_at FROM contact_messages")
	if err != nil {
		return nil, fmt.Errorf("query contact messages: %w", err)
	}
	defer rows.Close()

	messages := []models.ContactMessage{}
	for rows.Next() {
		var m models.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

var (
	_ UserRepository    = (*SQLiteUsers)(nil)
	_ MessageRepository = (*SQLiteMessages)(nil)
)
