package account

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory account store for demo/development mode.
type MemoryStore struct {
	accounts map[string]*Account // by ID
	byNumber map[string]string   // accountNumber → ID
	byEmail  map[string]string   // lowercased email → ID
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		byNumber: make(map[string]string),
		byEmail:  make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, acct *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(acct.Email)
	if _, ok := m.byEmail[email]; ok {
		return ErrDuplicateEmail
	}
	if _, ok := m.byNumber[acct.AccountNumber]; ok {
		return ErrDuplicateNumber
	}

	cp := *acct
	m.accounts[acct.ID] = &cp
	m.byNumber[acct.AccountNumber] = acct.ID
	m.byEmail[email] = acct.ID
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acct, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

func (m *MemoryStore) GetByNumber(ctx context.Context, number string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byNumber[number]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *m.accounts[id]
	return &cp, nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *m.accounts[id]
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context, limit int) ([]*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Account, 0, len(m.accounts))
	for _, acct := range m.accounts {
		cp := *acct
		result = append(result, &cp)
	}
	// Newest first, stable order for equal timestamps
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ApplyStatus(ctx context.Context, id string, next Status) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if !CanTransition(acct.Status, next) {
		return nil, ErrInvalidTransition
	}

	acct.Status = next
	acct.UpdatedAt = time.Now()
	cp := *acct
	return &cp, nil
}

func (m *MemoryStore) Debit(ctx context.Context, id string, amount float64) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if acct.Balance < amount {
		return nil, ErrInsufficientBalance
	}

	acct.Balance -= amount
	acct.UpdatedAt = time.Now()
	cp := *acct
	return &cp, nil
}

func (m *MemoryStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[Status]int)
	for _, acct := range m.accounts {
		counts[acct.Status]++
	}
	return counts, nil
}
