// Package transaction records risk-scored money movements.
//
// A transaction is written exactly once, after the decision engine has a
// verdict for it. The verdict fields (risk score, decision, explanation)
// are immutable from that point on; fraud alerts are derived from the
// stored records rather than kept as separate state.
package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/fraudshield/fraudshield/internal/riskeval"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// Type classifies a transaction for risk scoring.
type Type string

const (
	TypeTransfer        Type = "TRANSFER"
	TypeCashOut         Type = "CASH_OUT"
	TypeMerchantPayment Type = "MERCHANT_PAYMENT"
	TypeDebit           Type = "DEBIT"
	TypeCashIn          Type = "CASH_IN"
)

// typeCodes maps transaction types to the numeric feature codes the
// scoring model was trained on.
var typeCodes = map[Type]int{
	TypeTransfer:        1,
	TypeCashOut:         2,
	TypeMerchantPayment: 3,
	TypeDebit:           4,
	TypeCashIn:          5,
}

// Valid reports whether t is a known transaction type.
func (t Type) Valid() bool {
	_, ok := typeCodes[t]
	return ok
}

// Code returns the numeric feature code for the scorer payload.
func (t Type) Code() int {
	return typeCodes[t]
}

// Status represents the final state of a recorded transaction.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusBlocked   Status = "BLOCKED"
)

// Transaction is a finalized, risk-scored transaction record.
type Transaction struct {
	ID              string            `json:"id"`
	AccountID       string            `json:"accountId"`
	ReceiverAccount string            `json:"receiverAccount"`
	Amount          float64           `json:"amount"`
	Type            Type              `json:"type"`
	Timestamp       time.Time         `json:"timestamp"`
	RiskScore       float64           `json:"riskScore"`
	Decision        riskeval.Decision `json:"decision"`
	Explanation     []string          `json:"explanation"`
	Status          Status            `json:"status"`
	Model           string            `json:"model,omitempty"`
}

// Store persists transaction records.
type Store interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)

	// ListByAccount returns an account's transactions ordered newest first.
	// Ties on timestamp preserve insertion order.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*Transaction, error)

	// ListRecent returns the newest transactions across all accounts.
	ListRecent(ctx context.Context, limit int) ([]*Transaction, error)

	Count(ctx context.Context) (int, error)
	CountByDecision(ctx context.Context) (map[riskeval.Decision]int, error)
}
