package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fraudshield/fraudshield/internal/account"
	"github.com/fraudshield/fraudshield/internal/riskeval"
	"github.com/fraudshield/fraudshield/internal/transaction"
)

func sampleAlert() (*account.Account, *transaction.Transaction) {
	now := time.Now()
	acct := &account.Account{
		ID:            "acc_1",
		AccountNumber: "1000000001",
		Status:        account.StatusHold,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tx := &transaction.Transaction{
		ID:              "tx_1",
		AccountID:       "acc_1",
		ReceiverAccount: "ACC-777",
		Amount:          500,
		Type:            transaction.TypeTransfer,
		Status:          transaction.StatusBlocked,
		Timestamp:       now,
		RiskScore:       0.92,
		Decision:        riskeval.DecisionBlock,
		Explanation:     []string{"velocity anomaly"},
	}
	return acct, tx
}

func TestWebhookNotifierDelivers(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodyCh := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- r
		bodyCh <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "hook-secret")
	acct, tx := sampleAlert()
	n.FraudAlert(context.Background(), acct, tx)

	var req *http.Request
	var body []byte
	select {
	case req = <-received:
		body = <-bodyCh
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never called")
	}

	if got := req.Header.Get("X-Fraudshield-Event"); got != string(EventFraudBlocked) {
		t.Errorf("event header = %q, want fraud.blocked", got)
	}

	// Signature covers the exact payload bytes.
	mac := hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if got := req.Header.Get("X-Fraudshield-Signature"); got != want {
		t.Errorf("signature = %q, want %q", got, want)
	}

	var event struct {
		Type EventType      `json:"type"`
		Data FraudAlertData `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if event.Data.TransactionID != "tx_1" || event.Data.RiskScore != 0.92 {
		t.Errorf("payload data = %+v", event.Data)
	}
	if event.Data.AccountStatus != "HOLD" {
		t.Errorf("accountStatus = %q, want HOLD", event.Data.AccountStatus)
	}
}

func TestWebhookNotifierSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "").WithRetry(2, time.Millisecond)
	acct, tx := sampleAlert()

	// Must not panic or block on a failing receiver.
	n.FraudAlert(context.Background(), acct, tx)

	// Unreachable endpoint is also tolerated.
	down := NewWebhookNotifier("http://127.0.0.1:1", "").WithRetry(1, 0)
	down.client.Timeout = 200 * time.Millisecond
	down.FraudAlert(context.Background(), acct, tx)
}

func TestWebhookNotifierRetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "").WithRetry(3, time.Millisecond)
	acct, tx := sampleAlert()
	n.FraudAlert(context.Background(), acct, tx)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("delivery attempts = %d, want 2", got)
	}
}

func TestWebhookNotifierDoesNotRetryRejection(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "").WithRetry(3, time.Millisecond)
	acct, tx := sampleAlert()
	n.FraudAlert(context.Background(), acct, tx)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("delivery attempts = %d, want 1 for a 4xx response", got)
	}
}
