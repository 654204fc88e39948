package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hookline/hookline/internal/engine"
	"github.com/hookline/hookline/internal/signer"
	"github.com/hookline/hookline/internal/store"
	ws "github.com/hookline/hookline/internal/websocket"
)

// Response bodies are capped before storing to keep delivery rows small.
const maxResponseBytes = 1024

// How far back a rate-limited claim is pushed. Short, because the limit
// window is one second; the attempt is not consumed.
const rateLimitDelay = time.Second

// outcomeStore is the slice of the delivery store the deliverer writes to.
type outcomeStore interface {
	RecordOutcome(ctx context.Context, rec store.OutcomeRecord, breakerThreshold int) (bool, error)
	Reschedule(ctx context.Context, deliveryID string, at time.Time) error
}

// Outcome is the interpreted result of one HTTP attempt.
type Outcome struct {
	Success      bool
	ResponseCode *int
	ResponseBody string
	Err          error
}

// Deliverer performs HTTP delivery attempts and records their outcomes.
type Deliverer struct {
	httpClient       *http.Client
	outcomes         outcomeStore
	rateLimiter      *engine.RateLimiter
	policy           engine.RetryPolicy
	breakerThreshold int
	hub              *ws.Hub
	logger           *slog.Logger
}

// NewDeliverer creates a deliverer with a configured HTTP client. Redirects
// are not followed: a 3xx is a failure like any other non-2xx, and following
// one would deliver a signed payload to a URL the tenant never registered.
func NewDeliverer(pgStore *store.PostgresStore, rl *engine.RateLimiter, hub *ws.Hub, policy engine.RetryPolicy, breakerThreshold int, attemptTimeout time.Duration, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		httpClient: &http.Client{
			Timeout: attemptTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		outcomes:         pgStore,
		rateLimiter:      rl,
		policy:           policy,
		breakerThreshold: breakerThreshold,
		hub:              hub,
		logger:           logger,
	}
}

// Handle runs one delivery attempt end to end: rate limit check, signed HTTP
// POST, retry decision, and the transactional outcome record that also
// updates endpoint health.
func (d *Deliverer) Handle(ctx context.Context, job store.ClaimedDelivery) {
	if d.rateLimiter != nil && !d.rateLimiter.Allow(ctx, job.EndpointID, job.EndpointRateLimit) {
		if err := d.outcomes.Reschedule(ctx, job.ID, time.Now().Add(rateLimitDelay)); err != nil {
			d.logger.Error("failed to reschedule rate-limited delivery",
				"error", err,
				"delivery_id", job.ID,
				"endpoint_id", job.EndpointID,
			)
		}
		return
	}

	start := time.Now()
	outcome, sig := d.Attempt(ctx, job)
	elapsed := time.Since(start)

	now := time.Now()
	attemptCount := job.AttemptCount + 1
	decision := d.policy.Decide(attemptCount, job.MaxAttempts, outcome.Success, now)

	rec := store.OutcomeRecord{
		DeliveryID:    job.ID,
		EndpointID:    job.EndpointID,
		Success:       outcome.Success,
		Status:        decision.Status,
		AttemptCount:  attemptCount,
		NextAttemptAt: decision.NextAttemptAt,
		Signature:     sig,
		ResponseCode:  outcome.ResponseCode,
		ResponseBody:  outcome.ResponseBody,
	}
	if !outcome.Success {
		if outcome.Err != nil {
			rec.ErrorMessage = outcome.Err.Error()
		} else if outcome.ResponseCode != nil {
			rec.ErrorMessage = fmt.Sprintf("HTTP %d", *outcome.ResponseCode)
		}
		statusCode := 0
		if outcome.ResponseCode != nil {
			statusCode = *outcome.ResponseCode
		}
		rec.FailureReason = engine.FailureReason(outcome.Err, statusCode)
	}

	tripped, err := d.outcomes.RecordOutcome(ctx, rec, d.breakerThreshold)
	if err != nil {
		d.logger.Error("failed to record delivery outcome",
			"error", err,
			"delivery_id", job.ID,
			"endpoint_id", job.EndpointID,
		)
		return
	}

	if outcome.Success {
		d.logger.Info("delivery successful",
			"delivery_id", job.ID,
			"event_id", job.EventID,
			"endpoint_id", job.EndpointID,
			"attempt", attemptCount,
			"status_code", outcome.ResponseCode,
			"response_time_ms", elapsed.Milliseconds(),
		)
	} else {
		d.logger.Warn("delivery failed",
			"delivery_id", job.ID,
			"event_id", job.EventID,
			"endpoint_id", job.EndpointID,
			"attempt", attemptCount,
			"next_status", decision.Status,
			"error", rec.ErrorMessage,
			"status_code", outcome.ResponseCode,
			"response_time_ms", elapsed.Milliseconds(),
		)
	}
	if tripped {
		d.logger.Warn("endpoint auto-disabled by circuit breaker",
			"endpoint_id", job.EndpointID,
			"threshold", d.breakerThreshold,
		)
	}

	if d.hub != nil {
		d.hub.Broadcast(ws.DeliveryEvent{
			Type:       "delivery_" + decision.Status,
			DeliveryID: job.ID,
			EventID:    job.EventID,
			TenantID:   job.TenantID,
			EndpointID: job.EndpointID,
			EventType:  job.EventType,
			Attempt:    attemptCount,
			StatusCode: outcome.ResponseCode,
			ResponseMs: elapsed.Milliseconds(),
			Error:      rec.ErrorMessage,
			Timestamp:  now,
		})
	}
}

// Attempt performs a single signed HTTP POST to the endpoint. The signature
// is computed here, at send time, so every retry carries a fresh timestamp.
// Returns the interpreted outcome and the signature that was sent.
func (d *Deliverer) Attempt(ctx context.Context, job store.ClaimedDelivery) (Outcome, string) {
	ts := time.Now().Unix()
	sig := signer.Sign(job.EndpointSecret, job.EventID, job.EventType, job.Payload, ts)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.EndpointURL, bytes.NewReader(job.Payload))
	if err != nil {
		return Outcome{Err: fmt.Errorf("building request: %w", err)}, sig
	}

	// Custom endpoint headers first; the reserved headers always win.
	for k, v := range job.EndpointHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signer.SignatureHeader, sig)
	req.Header.Set(signer.TimestampHeader, strconv.FormatInt(ts, 10))
	req.Header.Set(signer.EventHeader, job.EventType)
	req.Header.Set(signer.DeliveryHeader, job.ID)
	req.Header.Set(signer.AttemptHeader, strconv.Itoa(job.AttemptCount+1))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Outcome{Err: err}, sig
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	return Outcome{
		Success:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		ResponseCode: &resp.StatusCode,
		ResponseBody: string(body),
	}, sig
}

var _ Handler = (*Deliverer)(nil)
