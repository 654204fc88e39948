package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hookline/hookline/internal/domain"
	"github.com/jackc/pgx/v5"
)

const deliveryColumns = `id, tenant_id, endpoint_id, event_id, event_type, payload,
	signature, status, attempt_count, max_attempts, last_attempt_at,
	next_attempt_at, last_response_code, last_response_body, last_error,
	delivered_at, created_at`

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	err := row.Scan(
		&d.ID, &d.TenantID, &d.EndpointID, &d.EventID, &d.EventType, &d.Payload,
		&d.Signature, &d.Status, &d.AttemptCount, &d.MaxAttempts, &d.LastAttemptAt,
		&d.NextAttemptAt, &d.LastResponseCode, &d.LastResponseBody, &d.LastError,
		&d.DeliveredAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// NewDelivery is one fan-out row to insert for a published event.
type NewDelivery struct {
	TenantID    string
	EndpointID  string
	EventID     string
	EventType   string
	Payload     []byte
	Signature   string
	MaxAttempts int
}

// CreateEventDeliveries persists the published event and its fan-out rows in
// a single transaction. Every delivery starts pending and due immediately.
// The (endpoint_id, event_id) unique key makes a duplicate fan-out a no-op
// rather than a second delivery.
func (s *PostgresStore) CreateEventDeliveries(ctx context.Context, event domain.Event, deliveries []NewDelivery) ([]string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, tenant_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, id) DO NOTHING
	`, event.ID, event.TenantID, event.EventType, event.Payload)
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}

	ids := make([]string, 0, len(deliveries))
	for _, nd := range deliveries {
		var id *string
		err = tx.QueryRow(ctx, `
			INSERT INTO deliveries (tenant_id, endpoint_id, event_id, event_type, payload, signature, status, attempt_count, max_attempts, next_attempt_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'pending', 0, $7, NOW())
			ON CONFLICT (endpoint_id, event_id) DO NOTHING
			RETURNING id
		`, nd.TenantID, nd.EndpointID, nd.EventID, nd.EventType, nd.Payload, nd.Signature, nd.MaxAttempts).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue // already fanned out to this endpoint
			}
			return nil, fmt.Errorf("inserting delivery for endpoint %s: %w", nd.EndpointID, err)
		}
		if id != nil {
			ids = append(ids, *id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return ids, nil
}

// ClaimedDelivery is a delivery claimed for one attempt, carrying the
// endpoint fields the worker needs to build and sign the request.
type ClaimedDelivery struct {
	ID           string
	TenantID     string
	EndpointID   string
	EventID      string
	EventType    string
	Payload      []byte
	AttemptCount int
	MaxAttempts  int

	EndpointURL       string
	EndpointSecret    string
	EndpointHeaders   map[string]string
	EndpointRateLimit int
}

// ClaimDue atomically claims up to limit due deliveries. Selecting, marking
// sending and stamping last_attempt_at happen in one statement, so two
// schedulers polling concurrently can never claim the same row: the inner
// select takes row locks and SKIP LOCKED makes the loser simply see fewer
// rows.
func (s *PostgresStore) ClaimDue(ctx context.Context, limit int) ([]ClaimedDelivery, error) {
	rows, err := s.pool.Query(ctx, `
		WITH due AS (
			SELECT id FROM deliveries
			WHERE status IN ('pending', 'retrying')
			  AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		), claimed AS (
			UPDATE deliveries d
			SET status = 'sending', last_attempt_at = NOW()
			FROM due
			WHERE d.id = due.id
			RETURNING d.id, d.tenant_id, d.endpoint_id, d.event_id, d.event_type,
			          d.payload, d.attempt_count, d.max_attempts
		)
		SELECT c.id, c.tenant_id, c.endpoint_id, c.event_id, c.event_type,
		       c.payload, c.attempt_count, c.max_attempts,
		       e.url, e.secret, e.headers, e.rate_limit_per_second
		FROM claimed c
		JOIN endpoints e ON e.id = c.endpoint_id
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claiming due deliveries: %w", err)
	}
	defer rows.Close()

	var claimed []ClaimedDelivery
	for rows.Next() {
		var cd ClaimedDelivery
		err := rows.Scan(
			&cd.ID, &cd.TenantID, &cd.EndpointID, &cd.EventID, &cd.EventType,
			&cd.Payload, &cd.AttemptCount, &cd.MaxAttempts,
			&cd.EndpointURL, &cd.EndpointSecret, &cd.EndpointHeaders, &cd.EndpointRateLimit,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning claimed delivery: %w", err)
		}
		claimed = append(claimed, cd)
	}

	return claimed, rows.Err()
}

// OutcomeRecord carries the result of one attempt plus the retry decision
// already made by the policy.
type OutcomeRecord struct {
	DeliveryID string
	EndpointID string

	Success       bool
	Status        string // delivered, retrying or dead_letter
	AttemptCount  int
	NextAttemptAt *time.Time
	Signature     string

	ResponseCode  *int
	ResponseBody  string
	ErrorMessage  string
	FailureReason string // short summary stored on the endpoint
}

// RecordOutcome applies an attempt outcome to the delivery row and the
// endpoint health counters in one transaction, so concurrent workers across
// processes always see a consistent consecutive-failure count. Returns true
// when this outcome crossed the breaker threshold and auto-disabled the
// endpoint.
func (s *PostgresStore) RecordOutcome(ctx context.Context, rec OutcomeRecord, breakerThreshold int) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if rec.Success {
		_, err = tx.Exec(ctx, `
			UPDATE deliveries
			SET status = 'delivered', delivered_at = NOW(), attempt_count = $2,
			    next_attempt_at = NULL, signature = $3,
			    last_response_code = $4, last_response_body = $5, last_error = NULL
			WHERE id = $1
		`, rec.DeliveryID, rec.AttemptCount, rec.Signature, rec.ResponseCode, nullable(rec.ResponseBody))
		if err != nil {
			return false, fmt.Errorf("updating delivered row: %w", err)
		}

		// A late success never clears auto_disabled_at; re-enabling is an
		// explicit operator action.
		_, err = tx.Exec(ctx, `
			UPDATE endpoints
			SET consecutive_failures = 0, last_success_at = NOW(), updated_at = NOW()
			WHERE id = $1
		`, rec.EndpointID)
		if err != nil {
			return false, fmt.Errorf("resetting endpoint health: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("committing transaction: %w", err)
		}
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE deliveries
		SET status = $2, attempt_count = $3, next_attempt_at = $4, signature = $5,
		    last_response_code = $6, last_response_body = $7, last_error = $8
		WHERE id = $1
	`, rec.DeliveryID, rec.Status, rec.AttemptCount, rec.NextAttemptAt, rec.Signature,
		rec.ResponseCode, nullable(rec.ResponseBody), nullable(rec.ErrorMessage))
	if err != nil {
		return false, fmt.Errorf("updating failed row: %w", err)
	}

	var failures int
	var autoDisabledAt *time.Time
	err = tx.QueryRow(ctx, `
		UPDATE endpoints
		SET consecutive_failures = consecutive_failures + 1,
		    last_failure_at = NOW(),
		    last_failure_reason = $2,
		    auto_disabled_at = CASE
		        WHEN auto_disabled_at IS NULL AND consecutive_failures + 1 >= $3 THEN NOW()
		        ELSE auto_disabled_at
		    END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING consecutive_failures, auto_disabled_at
	`, rec.EndpointID, rec.FailureReason, breakerThreshold).Scan(&failures, &autoDisabledAt)
	if err != nil {
		return false, fmt.Errorf("updating endpoint health: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}

	tripped := autoDisabledAt != nil && failures == breakerThreshold
	return tripped, nil
}

// Reschedule returns a claimed delivery to retrying without consuming an
// attempt. Used when the endpoint's rate limit pushed the attempt back.
func (s *PostgresStore) Reschedule(ctx context.Context, deliveryID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = 'retrying', next_attempt_at = $2
		WHERE id = $1 AND status = 'sending'
	`, deliveryID, at)
	if err != nil {
		return fmt.Errorf("rescheduling delivery: %w", err)
	}
	return nil
}

// Requeue puts a dead-lettered delivery back in line for a full new round of
// attempts. History fields are preserved for audit and the endpoint's breaker
// counters are deliberately untouched.
func (s *PostgresStore) Requeue(ctx context.Context, deliveryID string) error {
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM deliveries WHERE id = $1`, deliveryID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("querying delivery status: %w", err)
	}
	if status != domain.StatusDeadLetter {
		return fmt.Errorf("%w: delivery is %s, not dead_letter", ErrInvalidState, status)
	}

	// Status re-checked in the update so a concurrent requeue stays safe.
	result, err := s.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = 'pending', attempt_count = 0, next_attempt_at = NOW()
		WHERE id = $1 AND status = 'dead_letter'
	`, deliveryID)
	if err != nil {
		return fmt.Errorf("requeueing delivery: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// ReleaseStale returns deliveries stuck in sending past the timeout back to
// retrying, due immediately. Recovers work stranded by a crashed worker.
func (s *PostgresStore) ReleaseStale(ctx context.Context, timeout time.Duration) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = 'retrying', next_attempt_at = NOW()
		WHERE status = 'sending'
		  AND last_attempt_at < NOW() - make_interval(secs => $1)
	`, timeout.Seconds())
	if err != nil {
		return 0, fmt.Errorf("releasing stale deliveries: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeliveryFilter narrows ListDeliveries. Zero values mean no filter.
type DeliveryFilter struct {
	TenantID   string
	EndpointID string
	EventID    string
	Status     string
	Limit      int
}

func (s *PostgresStore) ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	addCondition := func(column, value string) {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if filter.TenantID != "" {
		addCondition("tenant_id", filter.TenantID)
	}
	if filter.EndpointID != "" {
		addCondition("endpoint_id", filter.EndpointID)
	}
	if filter.EventID != "" {
		addCondition("event_id", filter.EventID)
	}
	if filter.Status != "" {
		addCondition("status", filter.Status)
	}

	if len(conditions) > 0 {
		query += " WHERE " + joinStrings(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}

	if deliveries == nil {
		deliveries = []domain.Delivery{}
	}

	return deliveries, nil
}

func (s *PostgresStore) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	d, err := scanDelivery(s.pool.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying delivery: %w", err)
	}
	return d, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
