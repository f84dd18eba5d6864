package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/convtrack/convtrack/internal/model"
)

// ForwardLogRepository provides database access for conversion forwarding
// attempts. The log is append-only; retention is enforced by purge.
type ForwardLogRepository struct {
	repo *Repository
}

// NewForwardLogRepository creates a new ForwardLogRepository.
func NewForwardLogRepository(repo *Repository) *ForwardLogRepository {
	return &ForwardLogRepository{repo: repo}
}

// Append records one forwarding attempt.
func (r *ForwardLogRepository) Append(ctx context.Context, a *model.ForwardAttempt) error {
	query := `
		INSERT INTO forward_attempts (
			id, transaction_id, event_id, status, http_status, error,
			confidence, signals, currency, value, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.repo.pool.Exec(ctx, query,
		a.ID,
		a.TransactionID,
		a.EventID,
		string(a.Status),
		a.HTTPStatus,
		nullableString(a.Error),
		a.Confidence,
		pq.Array(a.Signals),
		nullableString(a.Currency),
		a.Value,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append forward attempt %s: %w", a.ID, err)
	}
	return nil
}

// ListRecent returns the latest attempts, newest first.
func (r *ForwardLogRepository) ListRecent(ctx context.Context, limit int) ([]*model.ForwardAttempt, error) {
	query := `
		SELECT id, transaction_id, event_id, status, http_status,
			COALESCE(error, ''), confidence, signals, COALESCE(currency, ''),
			value, created_at
		FROM forward_attempts
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.repo.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query forward attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*model.ForwardAttempt
	for rows.Next() {
		var a model.ForwardAttempt
		var status string
		var signals []string
		err := rows.Scan(
			&a.ID,
			&a.TransactionID,
			&a.EventID,
			&status,
			&a.HTTPStatus,
			&a.Error,
			&a.Confidence,
			pq.Array(&signals),
			&a.Currency,
			&a.Value,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan forward attempt: %w", err)
		}
		a.Status = model.ForwardStatus(status)
		a.Signals = signals
		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}

// Stats returns success/failure counters for the operational surface.
func (r *ForwardLogRepository) Stats(ctx context.Context) (*model.ForwardStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'success'),
			COUNT(*) FILTER (WHERE status = 'error'),
			MAX(created_at) FILTER (WHERE status = 'success')
		FROM forward_attempts
	`

	var stats model.ForwardStats
	var lastSent *time.Time
	err := r.repo.pool.QueryRow(ctx, query).Scan(
		&stats.Total,
		&stats.Successful,
		&stats.Failed,
		&lastSent,
	)
	if err != nil {
		return nil, fmt.Errorf("query forward stats: %w", err)
	}
	stats.LastSentAt = lastSent

	return &stats, nil
}

// PurgeOlderThan deletes attempts older than the retention cutoff and
// returns the number of rows removed.
func (r *ForwardLogRepository) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := r.repo.pool.Exec(ctx,
		`DELETE FROM forward_attempts WHERE created_at < $1`,
		time.Now().Add(-retention),
	)
	if err != nil {
		return 0, fmt.Errorf("purge forward attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
