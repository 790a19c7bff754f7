package transaction

import (
	"context"
	"sort"
	"sync"

	"github.com/fraudshield/fraudshield/internal/riskeval"
)

// MemoryStore is an in-memory transaction store for demo/development mode.
type MemoryStore struct {
	txs  map[string]*Transaction // by ID
	byID map[string]int          // ID → insertion order
	seq  int
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txs:  make(map[string]*Transaction),
		byID: make(map[string]int),
	}
}

func (m *MemoryStore) Create(ctx context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := copyTx(tx)
	m.txs[tx.ID] = cp
	m.byID[tx.ID] = m.seq
	m.seq++
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.txs[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return copyTx(tx), nil
}

func (m *MemoryStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Transaction
	for _, tx := range m.txs {
		if tx.AccountID == accountID {
			result = append(result, copyTx(tx))
		}
	}
	m.sortNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListRecent(ctx context.Context, limit int) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		result = append(result, copyTx(tx))
	}
	m.sortNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs), nil
}

func (m *MemoryStore) CountByDecision(ctx context.Context) (map[riskeval.Decision]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[riskeval.Decision]int)
	for _, tx := range m.txs {
		counts[tx.Decision]++
	}
	return counts, nil
}

// sortNewestFirst orders by timestamp descending; equal timestamps keep
// insertion order. Caller holds at least a read lock.
func (m *MemoryStore) sortNewestFirst(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return m.byID[txs[i].ID] < m.byID[txs[j].ID]
		}
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})
}

// copyTx deep-copies a transaction so callers can't mutate stored state.
func copyTx(tx *Transaction) *Transaction {
	cp := *tx
	if tx.Explanation != nil {
		cp.Explanation = make([]string, len(tx.Explanation))
		copy(cp.Explanation, tx.Explanation)
	}
	return &cp
}
