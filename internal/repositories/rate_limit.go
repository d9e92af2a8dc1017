package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spotkit/internal/api"
	"github.com/desertthunder/spotkit/internal/shared"
)

// RateLimitEvent is a stored [api.RateLimitEvent].
type RateLimitEvent struct {
	ID string
	api.RateLimitEvent
}

// RateLimitEventRepository records 429 diagnostics.
type RateLimitEventRepository struct {
	db *sql.DB
}

// NewRateLimitEventRepository creates a new [RateLimitEventRepository] with the given database connection
func NewRateLimitEventRepository(db *sql.DB) *RateLimitEventRepository {
	return &RateLimitEventRepository{db: db}
}

// Record inserts ev and returns its generated ID.
func (r *RateLimitEventRepository) Record(ctx context.Context, ev api.RateLimitEvent) (string, error) {
	id := shared.GenerateID()

	var retryAfter sql.NullInt64
	if ev.HasRetryAfter {
		retryAfter = sql.NullInt64{Int64: ev.RetryAfter.Milliseconds(), Valid: true}
	}
	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	query := `
		INSERT INTO rate_limit_events (id, request_id, method, path, retry_after_ms, attempt, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, id, ev.RequestID, ev.Method, ev.Path, retryAfter, ev.Attempt, occurredAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert rate limit event: %w", err)
	}
	return id, nil
}

// Recorder returns a callback for [api.RetryPolicy.OnRateLimited]. Failures are reported to onError.
func (r *RateLimitEventRepository) Recorder(onError func(error)) func(api.RateLimitEvent) {
	return func(ev api.RateLimitEvent) {
		if _, err := r.Record(context.Background(), ev); err != nil && onError != nil {
			onError(err)
		}
	}
}

// List retrieves events newest first. A limit of zero or less returns all of them.
func (r *RateLimitEventRepository) List(ctx context.Context, limit int) ([]RateLimitEvent, error) {
	query := `
		SELECT id, request_id, method, path, retry_after_ms, attempt, occurred_at
		FROM rate_limit_events
		ORDER BY occurred_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate limit events: %w", err)
	}
	defer rows.Close()

	var events []RateLimitEvent
	for rows.Next() {
		var (
			ev         RateLimitEvent
			retryAfter sql.NullInt64
			occurredAt time.Time
		)
		if err := rows.Scan(&ev.ID, &ev.RequestID, &ev.Method, &ev.Path, &retryAfter, &ev.Attempt, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan rate limit event: %w", err)
		}
		if retryAfter.Valid {
			ev.RetryAfter = time.Duration(retryAfter.Int64) * time.Millisecond
			ev.HasRetryAfter = true
		}
		ev.OccurredAt = occurredAt.UTC()
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

// Count returns how many events occurred at or after since.
func (r *RateLimitEventRepository) Count(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rate_limit_events WHERE occurred_at >= ?`, since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limit events: %w", err)
	}
	return n, nil
}

// Prune deletes events older than before and returns how many were removed.
func (r *RateLimitEventRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rate_limit_events WHERE occurred_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune rate limit events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// DeleteEvent removes one event by ID.
func (r *RateLimitEventRepository) DeleteEvent(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rate_limit_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rate limit event: %w", err)
	}
	return requireAffected(result, fmt.Errorf("rate limit event not found: %s", id))
}
