package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/store"
)

// fakeFanoutStore serves canned endpoints and records the fan-out it receives.
type fakeFanoutStore struct {
	endpoints  []domain.Endpoint
	lastEvent  domain.Event
	lastFanout []store.NewDelivery
}

func (f *fakeFanoutStore) ActiveEndpoints(ctx context.Context, tenantID string) ([]domain.Endpoint, error) {
	var out []domain.Endpoint
	for _, ep := range f.endpoints {
		if ep.TenantID == tenantID {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (f *fakeFanoutStore) CreateEventDeliveries(ctx context.Context, event domain.Event, deliveries []store.NewDelivery) ([]string, error) {
	f.lastEvent = event
	f.lastFanout = deliveries
	ids := make([]string, len(deliveries))
	for i := range deliveries {
		ids[i] = deliveries[i].EndpointID + "-dlv"
	}
	return ids, nil
}

func testEnqueuer(fake *fakeFanoutStore) *Enqueuer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return &Enqueuer{store: fake, logger: logger}
}

func TestPublish_FansOutToMatchingEndpoints(t *testing.T) {
	fake := &fakeFanoutStore{
		endpoints: []domain.Endpoint{
			{ID: "ep-orders", TenantID: "t1", Secret: "s1", EventTypes: []string{"order.*"}, MaxRetries: 5},
			{ID: "ep-all", TenantID: "t1", Secret: "s2", EventTypes: []string{"*"}, MaxRetries: 3},
			{ID: "ep-invoices", TenantID: "t1", Secret: "s3", EventTypes: []string{"invoice.paid"}, MaxRetries: 5},
		},
	}
	enq := testEnqueuer(fake)

	eventID, ids, err := enq.Publish(context.Background(), "t1", "evt-1", "order.created", json.RawMessage(`{"id":"o-1"}`))
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if eventID != "evt-1" {
		t.Errorf("event id = %q, want the caller's id back", eventID)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(ids))
	}

	if fake.lastFanout[0].EndpointID != "ep-orders" || fake.lastFanout[1].EndpointID != "ep-all" {
		t.Errorf("fan-out hit the wrong endpoints: %s, %s", fake.lastFanout[0].EndpointID, fake.lastFanout[1].EndpointID)
	}
	for _, d := range fake.lastFanout {
		if d.Signature == "" || !strings.HasPrefix(d.Signature, "sha256=") {
			t.Errorf("delivery for %s missing enqueue-time signature", d.EndpointID)
		}
		if d.EventID != "evt-1" || d.EventType != "order.created" {
			t.Errorf("delivery for %s carries wrong event identity", d.EndpointID)
		}
	}
	if fake.lastFanout[0].MaxAttempts != 5 || fake.lastFanout[1].MaxAttempts != 3 {
		t.Error("max attempts should come from each endpoint's own setting")
	}
}

func TestPublish_GeneratesEventID(t *testing.T) {
	fake := &fakeFanoutStore{}
	enq := testEnqueuer(fake)

	eventID, _, err := enq.Publish(context.Background(), "t1", "", "order.created", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if eventID == "" {
		t.Error("an omitted event id should be generated")
	}
	if fake.lastEvent.ID != eventID {
		t.Error("the generated id should be the one persisted")
	}
}

func TestPublish_ZeroMatchesStillPersistsEvent(t *testing.T) {
	fake := &fakeFanoutStore{
		endpoints: []domain.Endpoint{
			{ID: "ep-1", TenantID: "t1", EventTypes: []string{"invoice.paid"}, MaxRetries: 5},
		},
	}
	enq := testEnqueuer(fake)

	_, ids, err := enq.Publish(context.Background(), "t1", "evt-1", "order.created", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("zero matches should not be an error, got %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no deliveries, got %d", len(ids))
	}
	if fake.lastEvent.ID != "evt-1" {
		t.Error("the event row should be written even with no matching endpoints")
	}
}

func TestPublish_TenantIsolation(t *testing.T) {
	fake := &fakeFanoutStore{
		endpoints: []domain.Endpoint{
			{ID: "ep-other", TenantID: "t2", EventTypes: []string{"*"}, MaxRetries: 5},
		},
	}
	enq := testEnqueuer(fake)

	_, ids, err := enq.Publish(context.Background(), "t1", "evt-1", "order.created", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if len(ids) != 0 {
		t.Error("another tenant's endpoints must never receive fan-out")
	}
}

func TestPublish_Validation(t *testing.T) {
	enq := testEnqueuer(&fakeFanoutStore{})
	ctx := context.Background()

	tests := []struct {
		name      string
		tenantID  string
		eventType string
		payload   json.RawMessage
	}{
		{"missing tenant", "", "order.created", json.RawMessage(`{}`)},
		{"missing event type", "t1", "", json.RawMessage(`{}`)},
		{"empty payload", "t1", "order.created", nil},
		{"invalid json", "t1", "order.created", json.RawMessage(`{"broken`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := enq.Publish(ctx, tt.tenantID, "evt-1", tt.eventType, tt.payload)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}
}
