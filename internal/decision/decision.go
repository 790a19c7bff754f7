// Package decision implements the transaction risk-decision workflow.
//
// The engine owns the path from a submitted transfer to a finalized,
// risk-scored transaction: local precondition checks, one round trip to
// the risk evaluator, then the verdict's side effects applied as a unit.
// It fails closed: if the evaluator cannot answer, nothing is recorded
// and no balance or status changes.
package decision

import (
	"context"
	"errors"

	"github.com/fraudshield/fraudshield/internal/account"
	"github.com/fraudshield/fraudshield/internal/transaction"
)

var (
	// ErrValidation wraps request shape failures (amount, receiver, type).
	ErrValidation = errors.New("invalid transaction request")

	// ErrAccountRestricted rejects submissions from HOLD or BLOCKED
	// accounts before any evaluator call is made.
	ErrAccountRestricted = errors.New("account is restricted")

	// ErrSubmissionInFlight rejects a second concurrent submission for
	// the same account.
	ErrSubmissionInFlight = errors.New("a submission is already in flight for this account")

	// ErrEngineClosed is returned once the engine has shut down; late
	// evaluator responses are discarded rather than applied.
	ErrEngineClosed = errors.New("decision engine is closed")
)

// SubmitRequest carries a transfer submission into the engine.
type SubmitRequest struct {
	AccountID       string
	ReceiverAccount string
	Amount          float64
	Type            transaction.Type
}

// Result is a finalized submission: the recorded transaction and a fresh
// snapshot of the account after all side effects.
type Result struct {
	Transaction *transaction.Transaction `json:"transaction"`
	Account     *account.Account         `json:"account"`
}

// AlertSink delivers out-of-band fraud notifications. Implementations
// must not block the submission path.
type AlertSink interface {
	FraudAlert(ctx context.Context, acct *account.Account, tx *transaction.Transaction)
}

// EventBroadcaster pushes verdict events to live subscribers.
type EventBroadcaster interface {
	VerdictRecorded(tx *transaction.Transaction)
	FraudAlertRaised(acct *account.Account, tx *transaction.Transaction)
}
