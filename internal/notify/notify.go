// Package notify delivers fraud alert notifications to external services.
//
// Delivery is fire-and-forget: a failed webhook is logged and counted but
// never blocks or fails the submission that raised the alert.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fraudshield/fraudshield/internal/account"
	"github.com/fraudshield/fraudshield/internal/idgen"
	"github.com/fraudshield/fraudshield/internal/logging"
	"github.com/fraudshield/fraudshield/internal/metrics"
	"github.com/fraudshield/fraudshield/internal/retry"
	"github.com/fraudshield/fraudshield/internal/transaction"
)

// EventType represents the type of notification event
type EventType string

const (
	EventFraudBlocked  EventType = "fraud.blocked"
	EventAccountOnHold EventType = "account.hold"
)

// Event is the webhook payload envelope.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// FraudAlertData is the payload for a blocked transaction.
type FraudAlertData struct {
	AccountID       string   `json:"accountId"`
	AccountNumber   string   `json:"accountNumber"`
	AccountStatus   string   `json:"accountStatus"`
	TransactionID   string   `json:"transactionId"`
	ReceiverAccount string   `json:"receiverAccount"`
	Amount          float64  `json:"amount"`
	RiskScore       float64  `json:"riskScore"`
	Explanation     []string `json:"explanation,omitempty"`
}

// Notifier sends out-of-band fraud notifications.
type Notifier interface {
	FraudAlert(ctx context.Context, acct *account.Account, tx *transaction.Transaction)
}

// WebhookNotifier POSTs events to a configured URL, signing the payload
// with HMAC-SHA256 when a secret is set.
//
// Transient failures are retried with exponential backoff. A 4xx response
// is treated as permanent: the receiver rejected the payload and will
// keep rejecting it.
type WebhookNotifier struct {
	url         string
	secret      string
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
}

var _ Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a notifier for the given webhook URL.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
	}
}

// WithRetry overrides the delivery retry policy.
func (n *WebhookNotifier) WithRetry(maxAttempts int, baseDelay time.Duration) *WebhookNotifier {
	n.maxAttempts = maxAttempts
	n.baseDelay = baseDelay
	return n
}

// FraudAlert sends a fraud.blocked event. Errors are logged, not returned.
func (n *WebhookNotifier) FraudAlert(ctx context.Context, acct *account.Account, tx *transaction.Transaction) {
	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      EventFraudBlocked,
		Timestamp: time.Now(),
		Data: FraudAlertData{
			AccountID:       acct.ID,
			AccountNumber:   acct.AccountNumber,
			AccountStatus:   string(acct.Status),
			TransactionID:   tx.ID,
			ReceiverAccount: tx.ReceiverAccount,
			Amount:          tx.Amount,
			RiskScore:       tx.RiskScore,
			Explanation:     tx.Explanation,
		},
	}
	n.send(ctx, event)
}

func (n *WebhookNotifier) send(ctx context.Context, event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.fail(ctx, event, "marshal event", err)
		return
	}

	err = retry.Do(ctx, n.maxAttempts, n.baseDelay, func() error {
		return n.deliver(ctx, event, payload)
	})
	if err != nil {
		n.fail(ctx, event, "deliver webhook", err)
		return
	}
	metrics.AlertsDispatchedTotal.WithLabelValues("delivered").Inc()
}

// deliver makes one delivery attempt.
func (n *WebhookNotifier) deliver(ctx context.Context, event *Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Fraudshield-Event", string(event.Type))
	req.Header.Set("X-Fraudshield-Timestamp", fmt.Sprintf("%d", event.Timestamp.Unix()))
	if n.secret != "" {
		req.Header.Set("X-Fraudshield-Signature", sign(payload, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) fail(ctx context.Context, event *Event, op string, err error) {
	metrics.AlertsDispatchedTotal.WithLabelValues("failed").Inc()
	logging.L(ctx).Warn("alert webhook failed",
		"op", op, "eventId", event.ID, "eventType", string(event.Type), "error", err)
}

func sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// NopNotifier drops all notifications. Used when no webhook is configured.
type NopNotifier struct{}

var _ Notifier = (*NopNotifier)(nil)

func (NopNotifier) FraudAlert(ctx context.Context, acct *account.Account, tx *transaction.Transaction) {
}
