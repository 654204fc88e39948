package domain

import (
	"encoding/json"
	"time"
)

// Delivery statuses. "delivered" and "dead_letter" are terminal.
const (
	StatusPending    = "pending"
	StatusSending    = "sending"
	StatusDelivered  = "delivered"
	StatusRetrying   = "retrying"
	StatusDeadLetter = "dead_letter"
)

// Delivery is one attempted notification of one event to one endpoint.
// The (endpoint_id, event_id) pair is unique: fan-out never creates two
// deliveries for the same endpoint and event.
type Delivery struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	EndpointID string `json:"endpoint_id"`

	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature,omitempty"`

	Status       string `json:"status"`
	AttemptCount int    `json:"attempt_count"`
	MaxAttempts  int    `json:"max_attempts"`

	LastAttemptAt    *time.Time `json:"last_attempt_at,omitempty"`
	NextAttemptAt    *time.Time `json:"next_attempt_at,omitempty"`
	LastResponseCode *int       `json:"last_response_code,omitempty"`
	LastResponseBody *string    `json:"last_response_body,omitempty"`
	LastError        *string    `json:"last_error,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
