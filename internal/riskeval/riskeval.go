// Package riskeval defines the risk evaluation boundary for FraudShield.
//
// The scoring model itself is opaque: an Evaluator takes transaction
// features and returns a verdict with a score in [0,1], a decision, and
// a human-readable explanation. Production deployments point at an
// external scorer over HTTP; demo mode uses a local heuristic with the
// same contract. Evaluation failures are never guessed around: the
// caller fails closed.
package riskeval

import (
	"context"
	"errors"
)

// ErrEvaluationUnavailable signals that the scorer could not produce a
// verdict (timeout, transport failure, malformed response). The
// transaction must be left unscored.
var ErrEvaluationUnavailable = errors.New("risk evaluation unavailable")

// Decision is the scorer's verdict on a transaction.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionOTP     Decision = "OTP_VERIFICATION"
	DecisionBlock   Decision = "BLOCK"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionOTP, DecisionBlock:
		return true
	}
	return false
}

// Verdict is the result of evaluating a single transaction.
type Verdict struct {
	Score       float64  `json:"riskScore"`
	Decision    Decision `json:"decision"`
	Explanation []string `json:"explanation"`
	Model       string   `json:"model,omitempty"`
}

// Features carries the inputs the scoring model expects.
type Features struct {
	SenderAccount   string
	ReceiverAccount string
	Amount          float64
	TypeCode        int
}

// Evaluator produces a verdict for a set of transaction features.
type Evaluator interface {
	Evaluate(ctx context.Context, f Features) (*Verdict, error)
}
