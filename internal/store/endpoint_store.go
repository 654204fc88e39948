package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/hookline/hookline/internal/domain"
	"github.com/jackc/pgx/v5"
)

const endpointColumns = `id, tenant_id, name, url, secret, event_types, headers,
	max_retries, rate_limit_per_second, is_active, consecutive_failures,
	last_success_at, last_failure_at, last_failure_reason, auto_disabled_at,
	created_at, updated_at`

func scanEndpoint(row pgx.Row) (*domain.Endpoint, error) {
	var ep domain.Endpoint
	err := row.Scan(
		&ep.ID, &ep.TenantID, &ep.Name, &ep.URL, &ep.Secret, &ep.EventTypes,
		&ep.Headers, &ep.MaxRetries, &ep.RateLimitPerSecond, &ep.IsActive,
		&ep.ConsecutiveFailures, &ep.LastSuccessAt, &ep.LastFailureAt,
		&ep.LastFailureReason, &ep.AutoDisabledAt, &ep.CreatedAt, &ep.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

func (s *PostgresStore) CreateEndpoint(ctx context.Context, req domain.CreateEndpointRequest, defaultMaxRetries int) (*domain.Endpoint, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generating endpoint secret: %w", err)
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	headers := req.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	ep, err := scanEndpoint(s.pool.QueryRow(ctx, `
		INSERT INTO endpoints (tenant_id, name, url, secret, event_types, headers, max_retries, rate_limit_per_second)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+endpointColumns,
		req.TenantID, req.Name, req.URL, secret, req.EventTypes, headers,
		maxRetries, req.RateLimitPerSecond,
	))
	if err != nil {
		return nil, fmt.Errorf("inserting endpoint: %w", err)
	}
	return ep, nil
}

func (s *PostgresStore) GetEndpoint(ctx context.Context, id string) (*domain.Endpoint, error) {
	ep, err := scanEndpoint(s.pool.QueryRow(ctx,
		`SELECT `+endpointColumns+` FROM endpoints WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying endpoint: %w", err)
	}
	return ep, nil
}

// ListEndpoints returns endpoints, optionally scoped to one tenant.
func (s *PostgresStore) ListEndpoints(ctx context.Context, tenantID string) ([]domain.Endpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM endpoints`
	args := []interface{}{}
	if tenantID != "" {
		query += ` WHERE tenant_id = $1`
		args = append(args, tenantID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []domain.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning endpoint: %w", err)
		}
		endpoints = append(endpoints, *ep)
	}

	if endpoints == nil {
		endpoints = []domain.Endpoint{}
	}

	return endpoints, nil
}

// ActiveEndpoints returns endpoints eligible for new fan-out: manually active
// and not auto-disabled by the circuit breaker.
func (s *PostgresStore) ActiveEndpoints(ctx context.Context, tenantID string) ([]domain.Endpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+endpointColumns+`
		FROM endpoints
		WHERE tenant_id = $1
		  AND is_active = true
		  AND auto_disabled_at IS NULL
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying active endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []domain.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning endpoint: %w", err)
		}
		endpoints = append(endpoints, *ep)
	}

	if endpoints == nil {
		endpoints = []domain.Endpoint{}
	}

	return endpoints, nil
}

func (s *PostgresStore) UpdateEndpoint(ctx context.Context, id string, req domain.UpdateEndpointRequest) (*domain.Endpoint, error) {
	// Build dynamic update query
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	addClause := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if req.Name != nil {
		addClause("name", *req.Name)
	}
	if req.URL != nil {
		addClause("url", *req.URL)
	}
	if req.EventTypes != nil {
		addClause("event_types", *req.EventTypes)
	}
	if req.Headers != nil {
		addClause("headers", *req.Headers)
	}
	if req.MaxRetries != nil {
		addClause("max_retries", *req.MaxRetries)
	}
	if req.RateLimitPerSecond != nil {
		addClause("rate_limit_per_second", *req.RateLimitPerSecond)
	}
	if req.IsActive != nil {
		addClause("is_active", *req.IsActive)
	}

	if len(setClauses) == 0 {
		return s.GetEndpoint(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")

	query := fmt.Sprintf(`
		UPDATE endpoints SET %s
		WHERE id = $%d
		RETURNING `+endpointColumns,
		joinStrings(setClauses, ", "), argIdx)
	args = append(args, id)

	ep, err := scanEndpoint(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("updating endpoint: %w", err)
	}

	return ep, nil
}

// EnableEndpoint is the explicit operator action that clears an auto-disable.
// It resets the consecutive-failure counter so the breaker starts fresh.
func (s *PostgresStore) EnableEndpoint(ctx context.Context, id string) (*domain.Endpoint, error) {
	ep, err := scanEndpoint(s.pool.QueryRow(ctx, `
		UPDATE endpoints
		SET is_active = true,
		    auto_disabled_at = NULL,
		    consecutive_failures = 0,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+endpointColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("enabling endpoint: %w", err)
	}
	return ep, nil
}

func (s *PostgresStore) DeleteEndpoint(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM endpoints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting endpoint: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func generateSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(bytes), nil
}

func joinStrings(strs []string, sep string) string {
	result := ""
	for i, s := range strs {
		if i > 0 {
			result += sep
		}
		result += s
	}
	return result
}
