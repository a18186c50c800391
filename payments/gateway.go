/*
Package payments wraps the external payment gateway.

PURPOSE:
  The gateway is an external collaborator: the engine only needs to execute
  refunds against previously captured charges and learn whether they
  succeeded. Charging happens through the normal checkout path and is out of
  scope here beyond recording the references.

CONTRACT:
  Refund failures are surfaced, never swallowed. The caller records the
  failure on the payment row (status=failed) for manual follow-up; a failed
  refund must not roll back the ledger changes that triggered it.

IMPLEMENTATIONS:
  - Client:   Thin HTTP wrapper around the gateway's refund endpoint
  - Recorder: In-memory fake for tests, records every call

SEE ALSO:
  - ledger/engine.go: Invokes Refund during recalculation
*/
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lancef37/sunday-tan-website-sub000/booking"
)

// =============================================================================
// COORDINATOR - Refund execution interface
// =============================================================================

// RefundResult is the gateway's answer to a refund request.
type RefundResult struct {
	Success   bool
	RefundRef string
}

// Coordinator executes a refund against a previously captured payment.
// A (false, nil) result means the gateway declined; an error means the
// request itself could not be carried out. Both are treated as failures.
//
// idempotencyKey makes the request safe to repeat: the gateway returns the
// original outcome for a key it has already processed, so a caller that
// crashed between the refund and its own bookkeeping can retry blindly.
type Coordinator interface {
	Refund(ctx context.Context, gatewayRef, idempotencyKey string, amount booking.Money, reason string) (RefundResult, error)
}

// =============================================================================
// HTTP CLIENT - Thin wrapper around the gateway's refund endpoint
// =============================================================================

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type refundRequest struct {
	ChargeRef string `json:"charge_ref"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

type refundResponse struct {
	Success   bool   `json:"success"`
	RefundRef string `json:"refund_ref"`
	Error     string `json:"error,omitempty"`
}

func (c *Client) Refund(ctx context.Context, gatewayRef, idempotencyKey string, amount booking.Money, reason string) (RefundResult, error) {
	body, err := json.Marshal(refundRequest{
		ChargeRef: gatewayRef,
		Amount:    amount.String(),
		Reason:    reason,
	})
	if err != nil {
		return RefundResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/refunds", bytes.NewReader(body))
	if err != nil {
		return RefundResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return RefundResult{}, fmt.Errorf("refund request failed: %w", err)
	}
	defer resp.Body.Close()

	var out refundResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RefundResult{}, fmt.Errorf("refund response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return RefundResult{Success: false}, nil
	}
	return RefundResult{Success: true, RefundRef: out.RefundRef}, nil
}

// =============================================================================
// RECORDER - Test fake
// =============================================================================

// RefundCall records one Refund invocation.
type RefundCall struct {
	GatewayRef     string
	IdempotencyKey string
	Amount         booking.Money
	Reason         string
}

// Recorder is an in-memory Coordinator for tests. Every call is recorded;
// FailNext makes the next call report a gateway decline.
type Recorder struct {
	mu       sync.Mutex
	Calls    []RefundCall
	FailNext bool
	seq      int
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Refund(_ context.Context, gatewayRef, idempotencyKey string, amount booking.Money, reason string) (RefundResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Calls = append(r.Calls, RefundCall{
		GatewayRef:     gatewayRef,
		IdempotencyKey: idempotencyKey,
		Amount:         amount,
		Reason:         reason,
	})
	if r.FailNext {
		r.FailNext = false
		return RefundResult{Success: false}, nil
	}
	r.seq++
	return RefundResult{Success: true, RefundRef: fmt.Sprintf("re_%d", r.seq)}, nil
}

// CallCount returns how many refunds were attempted.
func (r *Recorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}
