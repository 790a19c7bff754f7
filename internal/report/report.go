// Package report shapes finalized transactions into customer-facing
// fraud report views. Pure presentation: no storage, no network.
package report

import (
	"math"
	"time"

	"github.com/fraudshield/fraudshield/internal/riskeval"
	"github.com/fraudshield/fraudshield/internal/transaction"
)

// FallbackExplanation is shown when a verdict carries no explanation.
const FallbackExplanation = "Transaction pattern appears normal"

// View is the presentation form of a transaction's risk verdict.
type View struct {
	TransactionID string            `json:"transactionId"`
	Label         string            `json:"label"`
	RiskPercent   int               `json:"riskPercent"`
	Decision      riskeval.Decision `json:"decision"`
	Explanation   []string          `json:"explanation"`
	Amount        float64           `json:"amount"`
	Receiver      string            `json:"receiver"`
	Type          transaction.Type  `json:"type"`
	Timestamp     time.Time         `json:"timestamp"`
}

// labels maps decisions to display text.
var labels = map[riskeval.Decision]string{
	riskeval.DecisionApprove: "Approved",
	riskeval.DecisionOTP:     "OTP Verification Required",
	riskeval.DecisionBlock:   "Blocked",
}

// ToView renders a transaction as a report view. Total over all inputs:
// unknown decisions get their raw value as the label, and a missing
// explanation falls back to generic text. The verdict itself is passed
// through verbatim, never recomputed.
func ToView(tx *transaction.Transaction) View {
	label, ok := labels[tx.Decision]
	if !ok {
		label = string(tx.Decision)
	}

	explanation := tx.Explanation
	if len(explanation) == 0 {
		explanation = []string{FallbackExplanation}
	}

	return View{
		TransactionID: tx.ID,
		Label:         label,
		RiskPercent:   int(math.Round(tx.RiskScore * 100)),
		Decision:      tx.Decision,
		Explanation:   explanation,
		Amount:        tx.Amount,
		Receiver:      tx.ReceiverAccount,
		Type:          tx.Type,
		Timestamp:     tx.Timestamp,
	}
}
