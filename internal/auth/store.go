package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/LineHook/internal/database"
	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore persists user accounts
type UserStore interface {
	// Create inserts a user and returns ErrUsernameExists on a duplicate name
	Create(ctx context.Context, username, passwordHash string) (*models.User, error)
	// FindByUsername returns ErrUserNotFound when no such user exists
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// PostgresUserStore is the pgx-backed UserStore
type PostgresUserStore struct {
	db *pgxpool.Pool
}

// NewPostgresUserStore creates a new user store
func NewPostgresUserStore(db *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// Create inserts a new user
func (s *PostgresUserStore) Create(ctx context.Context, username, passwordHash string) (*models.User, error) {
	start := time.Now()
	defer func() { monitoring.RecordDBQuery("user_create", time.Since(start)) }()

	var user models.User
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, username, password_hash, created_at
	`, username, passwordHash).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// FindByUsername looks up a user by exact username
func (s *PostgresUserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	start := time.Now()
	defer func() { monitoring.RecordDBQuery("user_find", time.Since(start)) }()

	var user models.User
	err := s.db.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}
