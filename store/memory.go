package store

import (
	"context"
	"sync"
	"time"

	"bamikavision/models"
)

type MemoryUsers struct {
	mu         sync.RWMutex
	byID       map[int64]*models.User
	byUsername map[string]int64
	nextID     int64
	clock      clock
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		byID:       make(map[int64]*models.User),
		byUsername: make(map[string]int64),
		nextID:     1,
		clock:      clock{now: time.Now},
	}
}

func (s *MemoryUsers) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[u.Username]; exists {
		return ErrDuplicateUsername
	}

	u.ID = s.nextID
	s.nextID++
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.clock.next()
	}

	stored := *u
	s.byID[u.ID] = &stored
	s.byUsername[u.Username] = u.ID
	return nil
}

func (s *MemoryUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

func (s *MemoryUsers) CountAdmins(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, u := range s.byID {
		if u.Role == models.RoleAdmin {
			count++
		}
	}
	return count, nil
}

type MemoryMessages struct {
	mu       sync.RWMutex
	messages []models.ContactMessage
	clock    clock
}

func NewMemoryMessages() *MemoryMessages {
	return &MemoryMessages{clock: clock{now: time.Now}}
}

func (s *MemoryMessages) Append(_ context.Context, name, email, message string) (*models.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := models.ContactMessage{
		ID:        int64(len(s.messages)) + 1,
		Name:      name,
		Email:     email,
		Message:   message,
		CreatedAt: s.clock.next(),
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *MemoryMessages) ListAll(_ context.Context) ([]models.ContactMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ContactMessage, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

var (
	_ UserRepository    = (*MemoryUsers)(nil)
	_ MessageRepository = (*MemoryMessages)(nil)
)
