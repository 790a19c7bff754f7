// Package alerts derives fraud alerts from transaction history.
//
// There is no separate alert table: an alert is any recorded transaction
// whose verdict was not an approval. The unread counter is session state,
// created at login, bumped on each BLOCK verdict, and cleared when the
// holder opens the alert view.
package alerts

import (
	"sort"
	"sync"

	"github.com/fraudshield/fraudshield/internal/riskeval"
	"github.com/fraudshield/fraudshield/internal/transaction"
)

// From filters transactions down to fraud alerts: every record whose
// decision is not APPROVE, ordered newest first. The sort is stable, so
// records sharing a timestamp keep their input order. Pure function;
// calling it twice on the same input yields the same output.
func From(txs []*transaction.Transaction) []*transaction.Transaction {
	var out []*transaction.Transaction
	for _, tx := range txs {
		if tx.Decision != riskeval.DecisionApprove {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Tracker keeps per-account unread alert counters for active sessions.
type Tracker struct {
	mu     sync.RWMutex
	unread map[string]int // accountID → unread count
}

// NewTracker creates an empty unread-alert tracker.
func NewTracker() *Tracker {
	return &Tracker{unread: make(map[string]int)}
}

// IncrementBlock records one new unread alert for the account.
func (t *Tracker) IncrementBlock(accountID string) {
	t.mu.Lock()
	t.unread[accountID]++
	t.mu.Unlock()
}

// Unread returns the account's current unread alert count.
func (t *Tracker) Unread(accountID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.unread[accountID]
}

// MarkViewed resets the account's unread count to zero.
func (t *Tracker) MarkViewed(accountID string) {
	t.mu.Lock()
	delete(t.unread, accountID)
	t.mu.Unlock()
}

// Drop removes the account's counter entirely (session teardown).
func (t *Tracker) Drop(accountID string) {
	t.mu.Lock()
	delete(t.unread, accountID)
	t.mu.Unlock()
}
