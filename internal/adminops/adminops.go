// Package adminops implements the operations console actions: releasing
// holds, blocking accounts, unblocking them, and fleet-wide statistics.
//
// Every action maps to one account status transition. An action that
// doesn't apply to the account's current status is rejected, not ignored.
package adminops

import (
	"context"
	"errors"
	"fmt"

	"github.com/fraudshield/fraudshield/internal/account"
	"github.com/fraudshield/fraudshield/internal/logging"
	"github.com/fraudshield/fraudshield/internal/metrics"
	"github.com/fraudshield/fraudshield/internal/riskeval"
	"github.com/fraudshield/fraudshield/internal/syncutil"
	"github.com/fraudshield/fraudshield/internal/transaction"
)

// ErrUnknownAction is returned for an action name outside the set below.
var ErrUnknownAction = errors.New("unknown admin action")

// Action is an operations console command.
type Action string

const (
	ActionUnhold  Action = "UNHOLD"
	ActionBlock   Action = "BLOCK"
	ActionUnblock Action = "UNBLOCK"
)

// target maps each action to the status it moves the account into.
var target = map[Action]account.Status{
	ActionUnhold:  account.StatusActive,
	ActionBlock:   account.StatusBlocked,
	ActionUnblock: account.StatusActive,
}

// source maps each action to the statuses it may be applied from.
var source = map[Action][]account.Status{
	ActionUnhold:  {account.StatusHold},
	ActionBlock:   {account.StatusActive, account.StatusHold},
	ActionUnblock: {account.StatusBlocked},
}

// Stats is a point-in-time snapshot of the fleet.
type Stats struct {
	Accounts        map[account.Status]int `json:"accounts"`
	TotalAccounts   int                    `json:"totalAccounts"`
	Transactions    int                    `json:"transactions"`
	FraudBlocked    int                    `json:"fraudBlocked"`
	OTPVerification int                    `json:"otpVerification"`
}

// Dispatcher applies admin actions against the account store.
type Dispatcher struct {
	accounts account.Store
	txs      transaction.Store
	locks    syncutil.ShardedMutex
}

// NewDispatcher creates an admin action dispatcher.
func NewDispatcher(accounts account.Store, txs transaction.Store) *Dispatcher {
	return &Dispatcher{accounts: accounts, txs: txs}
}

// Apply runs one action against one account and returns the updated
// account. The underlying store enforces the transition table; Apply
// additionally pins each action to its legal starting statuses so that,
// for example, UNBLOCK can't be used to release a hold.
func (d *Dispatcher) Apply(ctx context.Context, accountID string, action Action) (*account.Account, error) {
	to, ok := target[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	// Serialize actions per account so the status check and the status
	// change see the same state when two admins race on one account.
	defer d.locks.Lock(accountID)()

	acct, err := d.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !actionAllowed(action, acct.Status) {
		return nil, fmt.Errorf("%w: %s does not apply to status %s",
			account.ErrInvalidTransition, action, acct.Status)
	}

	updated, err := d.accounts.ApplyStatus(ctx, accountID, to)
	if err != nil {
		return nil, err
	}

	d.refreshHoldGauge(ctx)
	logging.L(ctx).Info("admin action applied",
		"accountId", accountID, "action", string(action), "status", string(updated.Status))
	return updated, nil
}

// Snapshot gathers fleet statistics for the operations dashboard.
func (d *Dispatcher) Snapshot(ctx context.Context) (*Stats, error) {
	counts, err := d.accounts.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}

	txCount, err := d.txs.Count(ctx)
	if err != nil {
		return nil, err
	}
	byDecision, err := d.txs.CountByDecision(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Accounts:        counts,
		TotalAccounts:   total,
		Transactions:    txCount,
		FraudBlocked:    byDecision[riskeval.DecisionBlock],
		OTPVerification: byDecision[riskeval.DecisionOTP],
	}, nil
}

func actionAllowed(action Action, from account.Status) bool {
	for _, s := range source[action] {
		if s == from {
			return true
		}
	}
	return false
}

func (d *Dispatcher) refreshHoldGauge(ctx context.Context) {
	counts, err := d.accounts.CountByStatus(ctx)
	if err != nil {
		return
	}
	metrics.AccountsOnHold.Set(float64(counts[account.StatusHold]))
}
