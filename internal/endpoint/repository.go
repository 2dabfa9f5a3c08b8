package endpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/LineHook/internal/database"
	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pathIndex = "idx_webhook_endpoints_path"

// Repository persists endpoints
type Repository interface {
	// Insert stores ep and fills its generated columns. Returns ErrPathTaken
	// when ep.Path collides with an existing endpoint.
	Insert(ctx context.Context, ep *models.Endpoint) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Endpoint, error)
	// FindActiveByPath returns nil, nil when no active endpoint has path
	FindActiveByPath(ctx context.Context, path string) (*models.Endpoint, error)
	// Delete removes the endpoint only if ownerID owns it
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}

// PostgresRepository is the pgx-backed Repository
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new endpoint repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const endpointColumns = `id, user_id, path, line_channel_secret, description, is_active, created_at`

func scanEndpoint(row pgx.Row, ep *models.Endpoint) error {
	return row.Scan(
		&ep.ID, &ep.UserID, &ep.Path, &ep.ChannelSecret,
		&ep.Description, &ep.IsActive, &ep.CreatedAt,
	)
}

// Insert stores a new endpoint
func (r *PostgresRepository) Insert(ctx context.Context, ep *models.Endpoint) error {
	start := time.Now()
	defer func() { monitoring.RecordDBQuery("endpoint_insert", time.Since(start)) }()

	err := scanEndpoint(r.db.QueryRow(ctx, `
		INSERT INTO webhook_endpoints (user_id, path, line_channel_secret, description)
		VALUES ($1, $2, $3, $4)
		RETURNING `+endpointColumns,
		ep.UserID, ep.Path, ep.ChannelSecret, ep.Description,
	), ep)
	if err != nil {
		if database.IsUniqueViolation(err, pathIndex) {
			return ErrPathTaken
		}
		return fmt.Errorf("failed to insert endpoint: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's endpoints, newest first
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Endpoint, error) {
	start := time.Now()
	defer func() { monitoring.RecordDBQuery("endpoint_list", time.Since(start)) }()

	rows, err := r.db.Query(ctx, `
		SELECT `+endpointColumns+`
		FROM webhook_endpoints
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()

	endpoints := make([]models.Endpoint, 0)
	for rows.Next() {
		var ep models.Endpoint
		if err := scanEndpoint(rows, &ep); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		endpoints = append(endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate endpoints: %w", err)
	}
	return endpoints, nil
}

// FindActiveByPath looks up an active endpoint by exact path
func (r *PostgresRepository) FindActiveByPath(ctx context.Context, path string) (*models.Endpoint, error) {
	start := time.Now()
	defer func() { monitoring.RecordDBQuery("endpoint_find_by_path", time.Since(start)) }()

	var ep models.Endpoint
	err := scanEndpoint(r.db.QueryRow(ctx, `
		SELECT `+endpointColumns+`
		FROM webhook_endpoints
		WHERE path = $1 AND is_active = TRUE
	`, path), &ep)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find endpoint: %w", err)
	}
	return &ep, nil
}

// Delete removes an endpoint owned by ownerID. Deleting another user's
// endpoint affects no rows and is not reported.
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	start := time.Now()
	defer func() { monitoring.RecordDBQuery("endpoint_delete", time.Since(start)) }()

	_, err := r.db.Exec(ctx, `DELETE FROM webhook_endpoints WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete endpoint: %w", err)
	}
	return nil
}
