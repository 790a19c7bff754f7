// Package account implements customer account state for FraudShield.
//
// Accounts move through a small lifecycle: ACTIVE accounts transact freely,
// HOLD accounts are frozen pending fraud review, BLOCKED accounts are
// frozen by an administrator. Every status change goes through the
// transition table; anything not listed there is rejected.
package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateEmail      = errors.New("an account with this email already exists")
	ErrDuplicateNumber     = errors.New("an account with this number already exists")
	ErrInvalidTransition   = errors.New("invalid account status transition")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Status represents the lifecycle state of an account.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusHold    Status = "HOLD"
	StatusBlocked Status = "BLOCKED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusHold, StatusBlocked:
		return true
	}
	return false
}

// transitions is the full set of legal status changes.
// ACTIVE→HOLD is triggered by a fraud verdict; the rest are admin actions.
var transitions = map[Status][]Status{
	StatusActive:  {StatusHold, StatusBlocked},
	StatusHold:    {StatusActive, StatusBlocked},
	StatusBlocked: {StatusActive},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Account represents a customer bank account.
type Account struct {
	ID            string    `json:"id"`
	OwnerName     string    `json:"ownerName"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	AccountNumber string    `json:"accountNumber"`
	Balance       float64   `json:"balance"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Restricted reports whether the account may not submit transactions.
func (a *Account) Restricted() bool {
	return a.Status != StatusActive
}

// Store persists account data.
type Store interface {
	Create(ctx context.Context, acct *Account) error
	Get(ctx context.Context, id string) (*Account, error)
	GetByNumber(ctx context.Context, number string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context, limit int) ([]*Account, error)

	// ApplyStatus validates the transition table against the stored status
	// and persists the change. Returns the updated account on success and
	// ErrInvalidTransition (leaving the account untouched) otherwise.
	ApplyStatus(ctx context.Context, id string, next Status) (*Account, error)

	// Debit subtracts amount from the balance, rejecting overdrafts with
	// ErrInsufficientBalance. Returns the updated account.
	Debit(ctx context.Context, id string, amount float64) (*Account, error)

	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// NewNumber generates a random 10-digit account number.
func NewNumber() string {
	// First digit non-zero so the number is always 10 digits long.
	n, err := rand.Int(rand.Reader, big.NewInt(9_000_000_000))
	if err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return fmt.Sprintf("%d", n.Int64()+1_000_000_000)
}
