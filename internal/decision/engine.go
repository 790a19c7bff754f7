package decision

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fraudshield/fraudshield/internal/account"
	"github.com/fraudshield/fraudshield/internal/alerts"
	"github.com/fraudshield/fraudshield/internal/idgen"
	"github.com/fraudshield/fraudshield/internal/logging"
	"github.com/fraudshield/fraudshield/internal/metrics"
	"github.com/fraudshield/fraudshield/internal/riskeval"
	"github.com/fraudshield/fraudshield/internal/traces"
	"github.com/fraudshield/fraudshield/internal/transaction"
)

// Engine runs the submission workflow. Single writer per account: at most
// one submission is in flight for an account at a time, and every
// evaluator response is matched against its request id before any side
// effect is applied.
type Engine struct {
	accounts  account.Store
	txs       transaction.Store
	evaluator riskeval.Evaluator
	tracker   *alerts.Tracker
	alertSink AlertSink        // optional
	events    EventBroadcaster // optional

	mu       sync.Mutex
	inflight map[string]uint64 // accountID → request id
	nextReq  uint64
	closed   bool
}

// NewEngine creates a decision engine over the given stores and evaluator.
func NewEngine(accounts account.Store, txs transaction.Store, evaluator riskeval.Evaluator, tracker *alerts.Tracker) *Engine {
	return &Engine{
		accounts:  accounts,
		txs:       txs,
		evaluator: evaluator,
		tracker:   tracker,
		inflight:  make(map[string]uint64),
	}
}

// WithAlertSink attaches an out-of-band fraud notifier.
func (e *Engine) WithAlertSink(sink AlertSink) *Engine {
	e.alertSink = sink
	return e
}

// WithEvents attaches a live event broadcaster.
func (e *Engine) WithEvents(events EventBroadcaster) *Engine {
	e.events = events
	return e
}

// Close stops the engine. In-flight submissions finish their evaluator
// call but their responses are discarded without touching shared state.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.inflight = make(map[string]uint64)
	e.mu.Unlock()
}

// Submit runs the full decision workflow for one transfer.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	ctx, span := traces.StartSpan(ctx, "decision.submit",
		traces.AccountID(req.AccountID),
		traces.Amount(req.Amount),
	)
	defer span.End()

	if err := validate(req); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("rejected_validation").Inc()
		return nil, err
	}

	// Local status check happens before any network call.
	acct, err := e.accounts.Get(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if acct.Restricted() {
		metrics.SubmissionsTotal.WithLabelValues("rejected_restricted").Inc()
		return nil, fmt.Errorf("%w: account status is %s", ErrAccountRestricted, acct.Status)
	}
	if acct.Balance < req.Amount {
		metrics.SubmissionsTotal.WithLabelValues("rejected_balance").Inc()
		return nil, account.ErrInsufficientBalance
	}

	reqID, err := e.begin(req.AccountID)
	if err != nil {
		return nil, err
	}
	defer e.finish(req.AccountID, reqID)

	start := time.Now()
	verdict, err := e.evaluator.Evaluate(ctx, riskeval.Features{
		SenderAccount:   acct.AccountNumber,
		ReceiverAccount: req.ReceiverAccount,
		Amount:          req.Amount,
		TypeCode:        req.Type.Code(),
	})
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		// Fail closed: the transaction stays unscored and unrecorded.
		metrics.EvaluationFailuresTotal.Inc()
		metrics.SubmissionsTotal.WithLabelValues("evaluation_failed").Inc()
		return nil, err
	}

	// Discard responses that arrive after shutdown or that no longer
	// match the registered request id.
	if e.stale(req.AccountID, reqID) {
		logging.L(ctx).Warn("discarding stale verdict",
			"accountId", req.AccountID, "requestId", reqID)
		return nil, ErrEngineClosed
	}

	span.SetAttributes(traces.Decision(string(verdict.Decision)), traces.RiskScore(verdict.Score))
	metrics.VerdictsTotal.WithLabelValues(string(verdict.Decision)).Inc()

	return e.apply(ctx, acct, req, verdict)
}

// apply commits the verdict's side effects and records the transaction.
func (e *Engine) apply(ctx context.Context, acct *account.Account, req SubmitRequest, verdict *riskeval.Verdict) (*Result, error) {
	tx := &transaction.Transaction{
		ID:              idgen.WithPrefix("tx_"),
		AccountID:       acct.ID,
		ReceiverAccount: req.ReceiverAccount,
		Amount:          req.Amount,
		Type:            req.Type,
		Timestamp:       time.Now(),
		RiskScore:       verdict.Score,
		Decision:        verdict.Decision,
		Explanation:     verdict.Explanation,
		Model:           verdict.Model,
	}

	switch verdict.Decision {
	case riskeval.DecisionBlock:
		tx.Status = transaction.StatusBlocked
		if err := e.holdAccount(ctx, acct.ID); err != nil {
			return nil, err
		}
		if err := e.txs.Create(ctx, tx); err != nil {
			return nil, fmt.Errorf("record blocked transaction: %w", err)
		}
		e.tracker.IncrementBlock(acct.ID)
		metrics.SubmissionsTotal.WithLabelValues("blocked").Inc()

		fresh, err := e.accounts.Get(ctx, acct.ID)
		if err != nil {
			return nil, err
		}
		e.refreshHoldGauge(ctx)
		if e.alertSink != nil {
			e.alertSink.FraudAlert(ctx, fresh, tx)
		}
		if e.events != nil {
			e.events.FraudAlertRaised(fresh, tx)
			e.events.VerdictRecorded(tx)
		}
		logging.L(ctx).Info("transaction blocked, account on hold",
			"accountId", acct.ID, "transactionId", tx.ID, "riskScore", verdict.Score)
		return &Result{Transaction: tx, Account: fresh}, nil

	default: // APPROVE and OTP_VERIFICATION both complete the transfer
		tx.Status = transaction.StatusCompleted
		fresh, err := e.accounts.Debit(ctx, acct.ID, req.Amount)
		if err != nil {
			return nil, err
		}
		if err := e.txs.Create(ctx, tx); err != nil {
			return nil, fmt.Errorf("record transaction: %w", err)
		}
		metrics.SubmissionsTotal.WithLabelValues("completed").Inc()
		if e.events != nil {
			e.events.VerdictRecorded(tx)
		}
		logging.L(ctx).Info("transaction completed",
			"accountId", acct.ID, "transactionId", tx.ID,
			"decision", verdict.Decision, "riskScore", verdict.Score)
		return &Result{Transaction: tx, Account: fresh}, nil
	}
}

// holdAccount moves the account to HOLD. A concurrent verdict may have
// already done so; that case is treated as success.
func (e *Engine) holdAccount(ctx context.Context, accountID string) error {
	_, err := e.accounts.ApplyStatus(ctx, accountID, account.StatusHold)
	if err == account.ErrInvalidTransition {
		current, getErr := e.accounts.Get(ctx, accountID)
		if getErr == nil && current.Status == account.StatusHold {
			return nil
		}
	}
	return err
}

// refreshHoldGauge re-derives the on-hold gauge from the store.
func (e *Engine) refreshHoldGauge(ctx context.Context) {
	counts, err := e.accounts.CountByStatus(ctx)
	if err != nil {
		return
	}
	metrics.AccountsOnHold.Set(float64(counts[account.StatusHold]))
}

// begin registers a submission, assigning it the next request id.
func (e *Engine) begin(accountID string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, ErrEngineClosed
	}
	if _, ok := e.inflight[accountID]; ok {
		return 0, ErrSubmissionInFlight
	}
	e.nextReq++
	e.inflight[accountID] = e.nextReq
	return e.nextReq, nil
}

// finish releases the account's in-flight slot if this request still owns it.
func (e *Engine) finish(accountID string, reqID uint64) {
	e.mu.Lock()
	if e.inflight[accountID] == reqID {
		delete(e.inflight, accountID)
	}
	e.mu.Unlock()
}

// stale reports whether the response for reqID must be discarded.
func (e *Engine) stale(accountID string, reqID uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed || e.inflight[accountID] != reqID
}

// validate checks request shape before anything touches the network.
func validate(req SubmitRequest) error {
	if strings.TrimSpace(req.ReceiverAccount) == "" {
		return fmt.Errorf("%w: receiver account is required", ErrValidation)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	if !req.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, req.Type)
	}
	return nil
}
