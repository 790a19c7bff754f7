package transaction

import (
	"context"
	"testing"
	"time"

	"github.com/fraudshield/fraudshield/internal/riskeval"
)

func TestTypeCodes(t *testing.T) {
	tests := []struct {
		typ  Type
		code int
	}{
		{TypeTransfer, 1},
		{TypeCashOut, 2},
		{TypeMerchantPayment, 3},
		{TypeDebit, 4},
		{TypeCashIn, 5},
	}
	for _, tt := range tests {
		if !tt.typ.Valid() {
			t.Errorf("%s should be valid", tt.typ)
		}
		if got := tt.typ.Code(); got != tt.code {
			t.Errorf("%s code = %d, want %d", tt.typ, got, tt.code)
		}
	}
	if Type("WIRE").Valid() {
		t.Error("unknown type should not be valid")
	}
}

func TestMemoryStoreListByAccountOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*Transaction{
		{ID: "tx_1", AccountID: "acc_1", Timestamp: base, Decision: riskeval.DecisionApprove},
		{ID: "tx_2", AccountID: "acc_1", Timestamp: base.Add(time.Minute), Decision: riskeval.DecisionBlock},
		{ID: "tx_3", AccountID: "acc_1", Timestamp: base.Add(time.Minute), Decision: riskeval.DecisionOTP},
		{ID: "tx_4", AccountID: "acc_2", Timestamp: base.Add(2 * time.Minute), Decision: riskeval.DecisionApprove},
	}
	for _, tx := range records {
		if err := store.Create(ctx, tx); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	txs, err := store.ListByAccount(ctx, "acc_1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}
	// Newest first; tx_2 and tx_3 share a timestamp so insertion order holds.
	want := []string{"tx_2", "tx_3", "tx_1"}
	for i, id := range want {
		if txs[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, txs[i].ID, id)
		}
	}
}

func TestMemoryStoreCountByDecision(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	decisions := []riskeval.Decision{
		riskeval.DecisionApprove, riskeval.DecisionApprove,
		riskeval.DecisionBlock, riskeval.DecisionOTP,
	}
	for i, d := range decisions {
		tx := &Transaction{
			ID:        "tx_" + string(rune('a'+i)),
			AccountID: "acc_1",
			Timestamp: time.Now(),
			Decision:  d,
		}
		if err := store.Create(ctx, tx); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	counts, err := store.CountByDecision(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[riskeval.DecisionApprove] != 2 || counts[riskeval.DecisionBlock] != 1 || counts[riskeval.DecisionOTP] != 1 {
		t.Errorf("counts = %v", counts)
	}

	total, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	tx := &Transaction{
		ID:          "tx_1",
		AccountID:   "acc_1",
		Timestamp:   time.Now(),
		Decision:    riskeval.DecisionBlock,
		Explanation: []string{"velocity anomaly"},
	}
	if err := store.Create(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := store.Get(ctx, "tx_1")
	got.Decision = riskeval.DecisionApprove
	got.Explanation[0] = "edited"

	again, _ := store.Get(ctx, "tx_1")
	if again.Decision != riskeval.DecisionBlock {
		t.Error("verdict decision was mutated through a returned copy")
	}
	if again.Explanation[0] != "velocity anomaly" {
		t.Error("explanation was mutated through a returned copy")
	}
}
