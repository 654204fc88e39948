package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/hookline/hookline/internal/domain"
	"github.com/jackc/pgx/v5"
)

func (s *PostgresStore) GetEvent(ctx context.Context, tenantID, id string) (*domain.Event, error) {
	var event domain.Event
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, event_type, payload, created_at
		FROM events WHERE tenant_id = $1 AND id = $2
	`, tenantID, id).Scan(
		&event.ID, &event.TenantID, &event.EventType, &event.Payload, &event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return &event, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, tenantID, eventType string, limit int) ([]domain.Event, error) {
	query := `SELECT id, tenant_id, event_type, payload, created_at FROM events`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if tenantID != "" {
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argIdx))
		args = append(args, tenantID)
		argIdx++
	}
	if eventType != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", argIdx))
		args = append(args, eventType)
		argIdx++
	}

	if len(conditions) > 0 {
		query += " WHERE " + joinStrings(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		err := rows.Scan(&e.ID, &e.TenantID, &e.EventType, &e.Payload, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}

	if events == nil {
		events = []domain.Event{}
	}

	return events, nil
}
