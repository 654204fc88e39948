package domain

import (
	"time"
)

// Endpoint is a tenant's webhook subscription target.
type Endpoint struct {
	ID                 string            `json:"id"`
	TenantID           string            `json:"tenant_id"`
	Name               string            `json:"name"`
	URL                string            `json:"url"`
	Secret             string            `json:"secret,omitempty"`
	EventTypes         []string          `json:"event_types"`
	Headers            map[string]string `json:"headers,omitempty"`
	MaxRetries         int               `json:"max_retries"`
	RateLimitPerSecond int               `json:"rate_limit_per_second"`
	IsActive           bool              `json:"is_active"`

	// Health fields, mutated only by the delivery-outcome path.
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastFailureReason   *string    `json:"last_failure_reason,omitempty"`
	AutoDisabledAt      *time.Time `json:"auto_disabled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deliverable reports whether the endpoint should receive new fan-out.
// An auto-disabled endpoint is excluded regardless of the manual flag.
func (e *Endpoint) Deliverable() bool {
	return e.IsActive && e.AutoDisabledAt == nil
}

type CreateEndpointRequest struct {
	TenantID           string            `json:"tenant_id"`
	Name               string            `json:"name"`
	URL                string            `json:"url"`
	EventTypes         []string          `json:"event_types"`
	Headers            map[string]string `json:"headers,omitempty"`
	MaxRetries         int               `json:"max_retries,omitempty"`
	RateLimitPerSecond int               `json:"rate_limit_per_second,omitempty"`
}

type UpdateEndpointRequest struct {
	Name               *string            `json:"name,omitempty"`
	URL                *string            `json:"url,omitempty"`
	EventTypes         *[]string          `json:"event_types,omitempty"`
	Headers            *map[string]string `json:"headers,omitempty"`
	MaxRetries         *int               `json:"max_retries,omitempty"`
	RateLimitPerSecond *int               `json:"rate_limit_per_second,omitempty"`
	IsActive           *bool              `json:"is_active,omitempty"`
}

type CreateEndpointResponse struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Secret   string `json:"secret"`
}
