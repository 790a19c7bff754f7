package riskeval

import (
	"context"
	"hash/fnv"
	"math"
)

// Compile-time check that HeuristicEvaluator implements Evaluator.
var _ Evaluator = (*HeuristicEvaluator)(nil)

// Decision thresholds. Scores above BlockThreshold are blocked outright;
// scores above the configurable step-up threshold require verification.
const (
	BlockThreshold      = 0.7
	DefaultOTPThreshold = 0.3
)

// Feature weights for the local scoring heuristic.
const (
	weightAmount   = 0.50
	weightType     = 0.30
	weightSender   = 0.10
	weightReceiver = 0.10
)

// Per-type base risk, keyed by the numeric feature code.
var typeRisk = map[int]float64{
	1: 0.2, // standard transfer
	2: 0.8, // external cash out
	3: 0.4, // merchant payment
	4: 0.5, // debit withdrawal
	5: 0.1, // deposit / cash in
}

// Explanation strings mirror the scoring model's feature map.
const (
	explainAmount   = "Transaction amount is unusually high"
	explainSender   = "Sender account behavior looks unusual"
	explainReceiver = "Receiver account appears suspicious"
	explainType     = "Transaction type has elevated fraud risk"
	explainGeneric  = "High risk profile"
)

// HeuristicEvaluator is the demo-mode scorer. It is deterministic for a
// given feature set and stays within the same contract as the external
// model: score in [0,1] and a closed decision set.
type HeuristicEvaluator struct {
	otpThreshold float64
}

// NewHeuristicEvaluator creates a local evaluator with the given step-up
// threshold. A non-positive threshold falls back to the default.
func NewHeuristicEvaluator(otpThreshold float64) *HeuristicEvaluator {
	if otpThreshold <= 0 || otpThreshold >= 1 {
		otpThreshold = DefaultOTPThreshold
	}
	return &HeuristicEvaluator{otpThreshold: otpThreshold}
}

// Evaluate scores the features with a weighted factor model.
func (h *HeuristicEvaluator) Evaluate(ctx context.Context, f Features) (*Verdict, error) {
	amountF := amountFactor(f.Amount)
	typeF := typeRisk[f.TypeCode]
	senderF := identityFactor(f.SenderAccount)
	receiverF := identityFactor(f.ReceiverAccount)

	score := amountF*weightAmount +
		typeF*weightType +
		senderF*weightSender +
		receiverF*weightReceiver
	score = math.Round(score*1000) / 1000
	if score > 1 {
		score = 1
	}

	decision := DecisionApprove
	switch {
	case score > BlockThreshold:
		decision = DecisionBlock
	case score > h.otpThreshold:
		decision = DecisionOTP
	}

	var explanation []string
	if decision != DecisionApprove {
		if amountF >= 0.5 {
			explanation = append(explanation, explainAmount)
		}
		if senderF >= 0.8 {
			explanation = append(explanation, explainSender)
		}
		if receiverF >= 0.8 {
			explanation = append(explanation, explainReceiver)
		}
		if typeF >= 0.5 {
			explanation = append(explanation, explainType)
		}
		if len(explanation) == 0 {
			explanation = []string{explainGeneric}
		}
	}

	return &Verdict{
		Score:       score,
		Decision:    decision,
		Explanation: explanation,
		Model:       "Ensemble AI v1",
	}, nil
}

// amountFactor scales logarithmically: 1,000 and below is 0.0,
// 100,000 and above is 1.0.
func amountFactor(amount float64) float64 {
	if amount <= 1000 {
		return 0
	}
	f := math.Log10(amount/1000) / 2
	if f > 1 {
		return 1
	}
	return f
}

// identityFactor derives a stable pseudo-behavioral score in [0,1] from an
// account identifier. A stand-in for the per-account history features the
// real model consumes.
func identityFactor(id string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return float64(h.Sum32()%1000) / 999
}
