package riskeval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fraudshield/fraudshield/internal/circuitbreaker"
	"github.com/fraudshield/fraudshield/internal/logging"
)

// Compile-time check that HTTPEvaluator implements Evaluator.
var _ Evaluator = (*HTTPEvaluator)(nil)

// breakerKey identifies the scorer in the circuit breaker.
const breakerKey = "scorer"

// HTTPEvaluator calls an external scoring service over HTTP.
//
// A circuit breaker sits in front of the scorer: after repeated failures
// calls short-circuit to ErrEvaluationUnavailable without touching the
// network, so submissions still fail closed but stop hammering a dead
// scorer.
type HTTPEvaluator struct {
	url     string
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewHTTPEvaluator creates an evaluator that POSTs features to url/predict.
func NewHTTPEvaluator(url string, timeout time.Duration) *HTTPEvaluator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPEvaluator{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

// WithBreaker replaces the default circuit breaker.
func (e *HTTPEvaluator) WithBreaker(b *circuitbreaker.Breaker) *HTTPEvaluator {
	e.breaker = b
	return e
}

// predictRequest is the wire payload the scorer expects.
type predictRequest struct {
	Source    string  `json:"Source"`
	Target    string  `json:"Target"`
	Weight    float64 `json:"Weight"`
	TypeTrans int     `json:"typeTrans"`
}

// predictResponse is the scorer's wire response.
type predictResponse struct {
	RiskScore   float64  `json:"risk_score"`
	Decision    string   `json:"decision"`
	Model       string   `json:"model"`
	Explanation []string `json:"explanation"`
}

// Evaluate sends the features to the scorer and returns its verdict.
// Any transport, timeout, or contract failure maps to ErrEvaluationUnavailable.
func (e *HTTPEvaluator) Evaluate(ctx context.Context, f Features) (*Verdict, error) {
	body, err := json.Marshal(predictRequest{
		Source:    f.SenderAccount,
		Target:    f.ReceiverAccount,
		Weight:    f.Amount,
		TypeTrans: f.TypeCode,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrEvaluationUnavailable, err)
	}

	if !e.breaker.Allow(breakerKey) {
		return nil, fmt.Errorf("%w: scorer circuit open", ErrEvaluationUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrEvaluationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.breaker.RecordFailure(breakerKey)
		logging.L(ctx).Warn("scorer request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEvaluationUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.breaker.RecordFailure(breakerKey)
		logging.L(ctx).Warn("scorer returned non-2xx", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: scorer status %d", ErrEvaluationUnavailable, resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		e.breaker.RecordFailure(breakerKey)
		return nil, fmt.Errorf("%w: decode response: %v", ErrEvaluationUnavailable, err)
	}

	// A scorer that answers outside its contract counts as a failure too.
	decision := Decision(out.Decision)
	if !decision.Valid() {
		e.breaker.RecordFailure(breakerKey)
		return nil, fmt.Errorf("%w: unknown decision %q", ErrEvaluationUnavailable, out.Decision)
	}
	if out.RiskScore < 0 || out.RiskScore > 1 {
		e.breaker.RecordFailure(breakerKey)
		return nil, fmt.Errorf("%w: risk score %v out of range", ErrEvaluationUnavailable, out.RiskScore)
	}

	e.breaker.RecordSuccess(breakerKey)
	return &Verdict{
		Score:       out.RiskScore,
		Decision:    decision,
		Explanation: out.Explanation,
		Model:       out.Model,
	}, nil
}
