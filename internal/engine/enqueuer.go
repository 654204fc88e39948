package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/signer"
	"github.com/hookline/hookline/internal/store"
)

// fanoutStore is the slice of the store the enqueuer needs.
type fanoutStore interface {
	ActiveEndpoints(ctx context.Context, tenantID string) ([]domain.Endpoint, error)
	CreateEventDeliveries(ctx context.Context, event domain.Event, deliveries []store.NewDelivery) ([]string, error)
}

// Enqueuer fans a published event out into one durable delivery row per
// matching endpoint. No network call happens here; enqueue and delivery are
// decoupled so a slow endpoint never blocks the publisher.
type Enqueuer struct {
	store  fanoutStore
	logger *slog.Logger
}

func NewEnqueuer(pg *store.PostgresStore, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{
		store:  pg,
		logger: logger,
	}
}

// ValidationError marks synchronous input rejection at publish time, as
// opposed to a store-write failure.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Publish validates the event, resolves matching active endpoints within the
// tenant and creates one pending delivery per endpoint. Returns the event id
// (generated when the caller omitted one) and the new delivery ids. Zero
// matches is not an error. Delivery failures never reach this path; only
// validation and store-write errors do.
func (e *Enqueuer) Publish(ctx context.Context, tenantID, eventID, eventType string, payload json.RawMessage) (string, []string, error) {
	if tenantID == "" {
		return "", nil, &ValidationError{msg: "tenant_id is required"}
	}
	if eventType == "" {
		return "", nil, &ValidationError{msg: "event_type is required"}
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return "", nil, &ValidationError{msg: "payload must be valid JSON"}
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	endpoints, err := e.store.ActiveEndpoints(ctx, tenantID)
	if err != nil {
		return "", nil, fmt.Errorf("resolving endpoints: %w", err)
	}

	now := time.Now()
	var fanout []store.NewDelivery
	for _, ep := range endpoints {
		if !MatchesEventType(ep.EventTypes, eventType) {
			continue
		}
		fanout = append(fanout, store.NewDelivery{
			TenantID:    tenantID,
			EndpointID:  ep.ID,
			EventID:     eventID,
			EventType:   eventType,
			Payload:     payload,
			Signature:   signer.Sign(ep.Secret, eventID, eventType, payload, now.Unix()),
			MaxAttempts: ep.MaxRetries,
		})
	}

	// The event row is written even when nothing matches, so the audit log
	// shows what was published, not only what was deliverable.
	event := domain.Event{
		ID:        eventID,
		TenantID:  tenantID,
		EventType: eventType,
		Payload:   payload,
	}

	ids, err := e.store.CreateEventDeliveries(ctx, event, fanout)
	if err != nil {
		return "", nil, fmt.Errorf("creating deliveries: %w", err)
	}

	e.logger.Info("fan-out complete",
		"tenant_id", tenantID,
		"event_id", eventID,
		"event_type", eventType,
		"deliveries_created", len(ids),
	)

	return eventID, ids, nil
}
