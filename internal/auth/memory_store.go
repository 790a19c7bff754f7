package auth

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-memory credential store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*User  // keyed by lowercased email
	admins map[string]*Admin // keyed by lowercased email
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*User),
		admins: make(map[string]*Admin),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := s.users[key]; ok {
		return ErrUserExists
	}
	cp := *u
	s.users[key] = &cp
	return nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) CreateAdmin(ctx context.Context, a *Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(a.Email)
	if _, ok := s.admins[key]; ok {
		return ErrUserExists
	}
	cp := *a
	s.admins[key] = &cp
	return nil
}

func (s *MemoryStore) GetAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.admins[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *a
	return &cp, nil
}
