package webhooklog

import (
	"context"
	"fmt"
	"time"

	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists webhook log rows. Rows are append-only; only the
// retention sweeper removes them.
type Repository interface {
	// Append inserts l, keeping l.ID when set, and fills ReceivedAt
	Append(ctx context.Context, l *models.WebhookLog) error
	// ListRecent returns up to limit rows for the endpoint, newest first
	ListRecent(ctx context.Context, endpointID uuid.UUID, limit int) ([]models.WebhookLog, error)
	// DeleteOlderThan removes rows received before cutoff and returns the count
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresRepository is the pgx-backed Repository
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new webhook log repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts a log row
func (r *PostgresRepository) Append(ctx context.Context, l *models.WebhookLog) error {
	start := time.Now()
	defer func() { monitoring.RecordDBQuery("webhook_log_append", time.Since(start)) }()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}

	// NULL when the payload lives in a keyed backend
	var payload any
	if len(l.Payload) > 0 {
		payload = []byte(l.Payload)
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO webhook_logs (id, endpoint_id, method, payload, log_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING received_at
	`, l.ID, l.EndpointID, l.Method, payload, l.LogKey).Scan(&l.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to append webhook log: %w", err)
	}
	return nil
}

// ListRecent returns the most recent rows for an endpoint
func (r *PostgresRepository) ListRecent(ctx context.Context, endpointID uuid.UUID, limit int) ([]models.WebhookLog, error) {
	start := time.Now()
	defer func() { monitoring.RecordDBQuery("webhook_log_list", time.Since(start)) }()

	rows, err := r.db.Query(ctx, `
		SELECT id, endpoint_id, method, payload, log_key, received_at
		FROM webhook_logs
		WHERE endpoint_id = $1
		ORDER BY received_at DESC
		LIMIT $2
	`, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.WebhookLog, 0, limit)
	for rows.Next() {
		var l models.WebhookLog
		var payload []byte
		if err := rows.Scan(&l.ID, &l.EndpointID, &l.Method, &payload, &l.LogKey, &l.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook log: %w", err)
		}
		l.Payload = payload
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhook logs: %w", err)
	}
	return logs, nil
}

// DeleteOlderThan bulk-deletes rows older than cutoff
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	defer func() { monitoring.RecordDBQuery("webhook_log_expire", time.Since(start)) }()

	tag, err := r.db.Exec(ctx, `DELETE FROM webhook_logs WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete webhook logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
