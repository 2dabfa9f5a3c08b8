package endpoint

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test database connection for repository tests
var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pool, err := pgxpool.New(ctx, dbURL)
		if err == nil {
			err = pool.Ping(ctx)
		}
		cancel()
		if err != nil {
			fmt.Printf("Warning: test database unavailable: %v\n", err)
		} else {
			testDB = pool
		}
	}

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}

func createTestUser(t *testing.T) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := testDB.QueryRow(context.Background(),
		`INSERT INTO users (username, password_hash) VALUES ($1, 'x') RETURNING id`,
		"endpoint-test-"+uuid.NewString(),
	).Scan(&id)
	require.NoError(t, err)
	t.Cleanup(func() {
		testDB.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func TestPostgresRepository(t *testing.T) {
	if testDB == nil {
		t.Skip("Test database not available")
	}
	ctx := context.Background()
	repo := NewPostgresRepository(testDB)
	owner := createTestUser(t)
	other := createTestUser(t)

	path, err := NewPath()
	require.NoError(t, err)

	ep := &models.Endpoint{UserID: owner, Path: path, ChannelSecret: "topsecret"}
	require.NoError(t, repo.Insert(ctx, ep))
	assert.NotEqual(t, uuid.Nil, ep.ID)
	assert.True(t, ep.IsActive)
	assert.Equal(t, "", ep.Description)

	t.Run("duplicate path", func(t *testing.T) {
		dup := &models.Endpoint{UserID: other, Path: path, ChannelSecret: "x"}
		assert.ErrorIs(t, repo.Insert(ctx, dup), ErrPathTaken)
	})

	t.Run("find active", func(t *testing.T) {
		found, err := repo.FindActiveByPath(ctx, path)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "topsecret", found.ChannelSecret)

		_, err = testDB.Exec(ctx, `UPDATE webhook_endpoints SET is_active = FALSE WHERE id = $1`, ep.ID)
		require.NoError(t, err)
		found, err = repo.FindActiveByPath(ctx, path)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("non-owner delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, ep.ID, other))
		list, err := repo.ListByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, repo.Delete(ctx, ep.ID, owner))
		list, err = repo.ListByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
