package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fraudshield/fraudshield/internal/account"
	"github.com/fraudshield/fraudshield/internal/alerts"
	"github.com/fraudshield/fraudshield/internal/riskeval"
	"github.com/fraudshield/fraudshield/internal/transaction"
)

func setupSubmitRouter(t *testing.T, eval riskeval.Evaluator, status account.Status, balance float64) (*gin.Engine, *engineFixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFixture(eval)
	now := time.Now()
	acct := &account.Account{
		ID:            "acc_1",
		OwnerName:     "Test Owner",
		Email:         "owner@example.com",
		AccountNumber: "1000000001",
		Balance:       balance,
		Status:        account.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.accounts.Create(context.Background(), acct); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if status != account.StatusActive {
		if _, err := f.accounts.ApplyStatus(context.Background(), "acc_1", status); err != nil {
			t.Fatalf("seed status: %v", err)
		}
	}

	router := gin.New()
	v1 := router.Group("/v1")
	v1.Use(func(c *gin.Context) {
		c.Set("authAccountID", "acc_1")
		c.Next()
	})
	NewHandler(f.engine).RegisterProtectedRoutes(v1)
	return router, f
}

func postSubmit(router *gin.Engine, body map[string]interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/v1/transactions", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitEndpointBlock(t *testing.T) {
	eval := &stubEvaluator{verdict: &riskeval.Verdict{
		Score:       0.92,
		Decision:    riskeval.DecisionBlock,
		Explanation: []string{"velocity anomaly"},
	}}
	router, f := setupSubmitRouter(t, eval, account.StatusActive, 10_000)

	w := postSubmit(router, map[string]interface{}{
		"receiverAccount": "ACC-777",
		"amount":          500,
		"type":            "TRANSFER",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Transaction transaction.Transaction `json:"transaction"`
		Account     account.Account         `json:"account"`
		Report      struct {
			Label       string `json:"label"`
			RiskPercent int    `json:"riskPercent"`
		} `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Account.Status != account.StatusHold {
		t.Errorf("account status = %s, want HOLD", resp.Account.Status)
	}
	if resp.Report.Label != "Blocked" || resp.Report.RiskPercent != 92 {
		t.Errorf("report = %+v, want Blocked / 92", resp.Report)
	}
	if f.tracker.Unread("acc_1") != 1 {
		t.Errorf("unread = %d, want 1", f.tracker.Unread("acc_1"))
	}
}

func TestSubmitEndpointRestricted(t *testing.T) {
	eval := &stubEvaluator{verdict: &riskeval.Verdict{Decision: riskeval.DecisionApprove}}
	router, _ := setupSubmitRouter(t, eval, account.StatusHold, 1_000)

	w := postSubmit(router, map[string]interface{}{
		"receiverAccount": "ACC-001",
		"amount":          100,
		"type":            "TRANSFER",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "account_restricted" {
		t.Errorf("error code = %q, want account_restricted", resp["error"])
	}
}

func TestSubmitEndpointValidation(t *testing.T) {
	eval := &stubEvaluator{verdict: &riskeval.Verdict{Decision: riskeval.DecisionApprove}}
	router, _ := setupSubmitRouter(t, eval, account.StatusActive, 1_000)

	// Missing fields fail binding.
	w := postSubmit(router, map[string]interface{}{"amount": 100})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing fields: status = %d, want 400", w.Code)
	}

	// Negative amount passes binding but fails engine validation.
	w = postSubmit(router, map[string]interface{}{
		"receiverAccount": "ACC-001",
		"amount":          -5,
		"type":            "TRANSFER",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative amount: status = %d, want 400", w.Code)
	}
}

func TestSubmitEndpointEvaluatorDown(t *testing.T) {
	eval := &stubEvaluator{err: riskeval.ErrEvaluationUnavailable}
	router, f := setupSubmitRouter(t, eval, account.StatusActive, 1_000)

	w := postSubmit(router, map[string]interface{}{
		"receiverAccount": "ACC-001",
		"amount":          100,
		"type":            "TRANSFER",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "evaluation_unavailable" {
		t.Errorf("error code = %q, want evaluation_unavailable", resp["error"])
	}

	count, _ := f.txs.Count(context.Background())
	if count != 0 {
		t.Errorf("transaction recorded despite evaluator failure: %d", count)
	}
}

func TestSubmitEndpointUnreadFlow(t *testing.T) {
	eval := &stubEvaluator{verdict: &riskeval.Verdict{
		Score:    0.95,
		Decision: riskeval.DecisionBlock,
	}}
	router, f := setupSubmitRouter(t, eval, account.StatusActive, 10_000)
	alertsHandler := alerts.NewHandler(f.txs, f.tracker)
	v1 := router.Group("/v1")
	v1.Use(func(c *gin.Context) {
		c.Set("authAccountID", "acc_1")
		c.Next()
	})
	alertsHandler.RegisterProtectedRoutes(v1)

	w := postSubmit(router, map[string]interface{}{
		"receiverAccount": "ACC-777",
		"amount":          500,
		"type":            "TRANSFER",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit status = %d", w.Code)
	}

	// Unread shows the new alert.
	req := httptest.NewRequest(http.MethodGet, "/v1/alerts/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var unread map[string]int
	_ = json.Unmarshal(rec.Body.Bytes(), &unread)
	if unread["unread"] != 1 {
		t.Errorf("unread = %d, want 1", unread["unread"])
	}

	// Viewing resets it.
	req = httptest.NewRequest(http.MethodPost, "/v1/alerts/viewed", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark viewed status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/alerts/unread", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	_ = json.Unmarshal(rec.Body.Bytes(), &unread)
	if unread["unread"] != 0 {
		t.Errorf("unread after viewing = %d, want 0", unread["unread"])
	}
}
