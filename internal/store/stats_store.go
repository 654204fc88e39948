package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// EndpointStats is the per-endpoint read model: delivery counts by status,
// average time-to-delivery and current breaker state. Derived on read, never
// stored.
type EndpointStats struct {
	EndpointID      string     `json:"endpoint_id"`
	Pending         int        `json:"pending"`
	Sending         int        `json:"sending"`
	Delivered       int        `json:"delivered"`
	Retrying        int        `json:"retrying"`
	DeadLetter      int        `json:"dead_letter"`
	AvgDeliveryMs   float64    `json:"avg_delivery_ms"`
	AutoDisabled    bool       `json:"auto_disabled"`
	AutoDisabledAt  *time.Time `json:"auto_disabled_at,omitempty"`
	ConsecutiveFail int        `json:"consecutive_failures"`
}

// GetEndpointStats aggregates delivery state for one endpoint. Returns nil
// when the endpoint does not exist.
func (s *PostgresStore) GetEndpointStats(ctx context.Context, endpointID string) (*EndpointStats, error) {
	stats := EndpointStats{EndpointID: endpointID}

	err := s.pool.QueryRow(ctx, `
		SELECT consecutive_failures, auto_disabled_at
		FROM endpoints WHERE id = $1
	`, endpointID).Scan(&stats.ConsecutiveFail, &stats.AutoDisabledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying endpoint health: %w", err)
	}
	stats.AutoDisabled = stats.AutoDisabledAt != nil

	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'sending'),
			COUNT(*) FILTER (WHERE status = 'delivered'),
			COUNT(*) FILTER (WHERE status = 'retrying'),
			COUNT(*) FILTER (WHERE status = 'dead_letter'),
			COALESCE(AVG(EXTRACT(EPOCH FROM (delivered_at - created_at)) * 1000)
				FILTER (WHERE delivered_at IS NOT NULL), 0)
		FROM deliveries
		WHERE endpoint_id = $1
	`, endpointID).Scan(
		&stats.Pending, &stats.Sending, &stats.Delivered,
		&stats.Retrying, &stats.DeadLetter, &stats.AvgDeliveryMs,
	)
	if err != nil {
		return nil, fmt.Errorf("querying endpoint delivery stats: %w", err)
	}

	return &stats, nil
}

// OverviewMetrics holds system-wide aggregates for the operator dashboard.
type OverviewMetrics struct {
	TotalDeliveries   int     `json:"total_deliveries"`
	DeliveredCount    int     `json:"delivered_count"`
	DeadLetterCount   int     `json:"dead_letter_count"`
	InFlightCount     int     `json:"in_flight_count"`
	SuccessRate       float64 `json:"success_rate"`
	AvgDeliveryMs     float64 `json:"avg_delivery_ms"`
	ActiveEndpoints   int     `json:"active_endpoints"`
	DisabledEndpoints int     `json:"disabled_endpoints"`
	TotalEvents       int     `json:"total_events"`
}

// GetOverviewMetrics returns aggregated delivery statistics, optionally
// scoped to one tenant.
func (s *PostgresStore) GetOverviewMetrics(ctx context.Context, tenantID string) (*OverviewMetrics, error) {
	var m OverviewMetrics

	deliveryQuery := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'delivered'),
			COUNT(*) FILTER (WHERE status = 'dead_letter'),
			COUNT(*) FILTER (WHERE status IN ('pending', 'sending', 'retrying')),
			COALESCE(AVG(EXTRACT(EPOCH FROM (delivered_at - created_at)) * 1000)
				FILTER (WHERE delivered_at IS NOT NULL), 0)
		FROM deliveries`
	endpointQuery := `
		SELECT
			COUNT(*) FILTER (WHERE is_active = true AND auto_disabled_at IS NULL),
			COUNT(*) FILTER (WHERE auto_disabled_at IS NOT NULL)
		FROM endpoints`
	eventQuery := `SELECT COUNT(*) FROM events`

	args := []interface{}{}
	if tenantID != "" {
		deliveryQuery += ` WHERE tenant_id = $1`
		endpointQuery += ` WHERE tenant_id = $1`
		eventQuery += ` WHERE tenant_id = $1`
		args = append(args, tenantID)
	}

	err := s.pool.QueryRow(ctx, deliveryQuery, args...).Scan(
		&m.TotalDeliveries, &m.DeliveredCount, &m.DeadLetterCount,
		&m.InFlightCount, &m.AvgDeliveryMs,
	)
	if err != nil {
		return nil, fmt.Errorf("querying delivery metrics: %w", err)
	}

	if m.TotalDeliveries > 0 {
		m.SuccessRate = float64(m.DeliveredCount) / float64(m.TotalDeliveries) * 100
	}

	err = s.pool.QueryRow(ctx, endpointQuery, args...).Scan(&m.ActiveEndpoints, &m.DisabledEndpoints)
	if err != nil {
		return nil, fmt.Errorf("querying endpoint counts: %w", err)
	}

	err = s.pool.QueryRow(ctx, eventQuery, args...).Scan(&m.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("querying event count: %w", err)
	}

	return &m, nil
}
