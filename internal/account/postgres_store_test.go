package account_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fraudshield/fraudshield/internal/account"
	"github.com/fraudshield/fraudshield/internal/testutil"
)

func pgAccount(n int) *account.Account {
	now := time.Now()
	return &account.Account{
		ID:            fmt.Sprintf("acc_pg_%d", n),
		OwnerName:     fmt.Sprintf("Customer %d", n),
		Email:         fmt.Sprintf("customer%d@example.com", n),
		AccountNumber: account.NewNumber(),
		Balance:       50_000,
		Status:        account.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestPostgresAccountCreateAndGet(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := account.NewPostgresStore(db)
	ctx := context.Background()

	acct := pgAccount(1)
	acct.Email = "Mixed.Case@Example.com"
	if err := store.Create(ctx, acct); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, acct.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.OwnerName != acct.OwnerName || got.Balance != 50_000 || got.Status != account.StatusActive {
		t.Errorf("Get returned %+v", got)
	}

	// Email lookups are case-insensitive; stored lowercased.
	byEmail, err := store.GetByEmail(ctx, "mixed.case@EXAMPLE.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if byEmail.ID != acct.ID {
		t.Errorf("GetByEmail id = %s, want %s", byEmail.ID, acct.ID)
	}

	byNumber, err := store.GetByNumber(ctx, acct.AccountNumber)
	if err != nil {
		t.Fatalf("GetByNumber failed: %v", err)
	}
	if byNumber.ID != acct.ID {
		t.Errorf("GetByNumber id = %s, want %s", byNumber.ID, acct.ID)
	}

	if _, err := store.Get(ctx, "acc_missing"); !errors.Is(err, account.ErrAccountNotFound) {
		t.Errorf("Get missing = %v, want ErrAccountNotFound", err)
	}
}

func TestPostgresAccountDuplicates(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := account.NewPostgresStore(db)
	ctx := context.Background()

	first := pgAccount(1)
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dupEmail := pgAccount(2)
	dupEmail.Email = first.Email
	if err := store.Create(ctx, dupEmail); !errors.Is(err, account.ErrDuplicateEmail) {
		t.Errorf("duplicate email = %v, want ErrDuplicateEmail", err)
	}

	dupNumber := pgAccount(3)
	dupNumber.AccountNumber = first.AccountNumber
	if err := store.Create(ctx, dupNumber); !errors.Is(err, account.ErrDuplicateNumber) {
		t.Errorf("duplicate number = %v, want ErrDuplicateNumber", err)
	}
}

func TestPostgresAccountApplyStatus(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := account.NewPostgresStore(db)
	ctx := context.Background()

	acct := pgAccount(1)
	if err := store.Create(ctx, acct); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	held, err := store.ApplyStatus(ctx, acct.ID, account.StatusHold)
	if err != nil {
		t.Fatalf("ACTIVE -> HOLD failed: %v", err)
	}
	if held.Status != account.StatusHold {
		t.Errorf("status = %s, want HOLD", held.Status)
	}

	blocked, err := store.ApplyStatus(ctx, acct.ID, account.StatusBlocked)
	if err != nil {
		t.Fatalf("HOLD -> BLOCKED failed: %v", err)
	}
	if blocked.Status != account.StatusBlocked {
		t.Errorf("status = %s, want BLOCKED", blocked.Status)
	}

	// BLOCKED -> HOLD is not in the transition table; the row stays put.
	if _, err := store.ApplyStatus(ctx, acct.ID, account.StatusHold); !errors.Is(err, account.ErrInvalidTransition) {
		t.Errorf("BLOCKED -> HOLD = %v, want ErrInvalidTransition", err)
	}
	got, err := store.Get(ctx, acct.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != account.StatusBlocked {
		t.Errorf("status after rejected transition = %s, want BLOCKED", got.Status)
	}

	if _, err := store.ApplyStatus(ctx, "acc_missing", account.StatusHold); !errors.Is(err, account.ErrAccountNotFound) {
		t.Errorf("missing account = %v, want ErrAccountNotFound", err)
	}
}

func TestPostgresAccountDebit(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := account.NewPostgresStore(db)
	ctx := context.Background()

	acct := pgAccount(1)
	acct.Balance = 100
	if err := store.Create(ctx, acct); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	debited, err := store.Debit(ctx, acct.ID, 60)
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if debited.Balance != 40 {
		t.Errorf("balance = %v, want 40", debited.Balance)
	}

	if _, err := store.Debit(ctx, acct.ID, 100); !errors.Is(err, account.ErrInsufficientBalance) {
		t.Errorf("overdraft = %v, want ErrInsufficientBalance", err)
	}
	if _, err := store.Debit(ctx, "acc_missing", 1); !errors.Is(err, account.ErrAccountNotFound) {
		t.Errorf("missing account = %v, want ErrAccountNotFound", err)
	}
}

func TestPostgresAccountCountByStatus(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := account.NewPostgresStore(db)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := store.Create(ctx, pgAccount(i)); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}
	if _, err := store.ApplyStatus(ctx, "acc_pg_2", account.StatusHold); err != nil {
		t.Fatalf("ApplyStatus failed: %v", err)
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[account.StatusActive] != 2 || counts[account.StatusHold] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
