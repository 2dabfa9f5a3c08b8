package endpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aimerfeng/LineHook/internal/logging"
	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxPathAttempts bounds retries after a path collision
const maxPathAttempts = 3

// Registry manages webhook endpoints
type Registry struct {
	repo    Repository
	newPath func() (string, error)
	logger  zerolog.Logger
}

// NewRegistry creates a new endpoint registry
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:    repo,
		newPath: NewPath,
		logger:  logging.NewLogger("endpoint"),
	}
}

// Create provisions a new endpoint for ownerID bound to channelSecret
func (r *Registry) Create(ctx context.Context, ownerID uuid.UUID, channelSecret, description string) (*models.Endpoint, error) {
	if strings.TrimSpace(channelSecret) == "" {
		return nil, ErrChannelSecretRequired
	}

	for attempt := 1; attempt <= maxPathAttempts; attempt++ {
		path, err := r.newPath()
		if err != nil {
			return nil, err
		}

		ep := &models.Endpoint{
			UserID:        ownerID,
			Path:          path,
			ChannelSecret: channelSecret,
			Description:   description,
			IsActive:      true,
		}
		err = r.repo.Insert(ctx, ep)
		if err == nil {
			monitoring.RecordEndpointCreated()
			return ep, nil
		}
		if !errors.Is(err, ErrPathTaken) {
			return nil, err
		}

		r.logger.Warn().
			Int("attempt", attempt).
			Str("user_id", ownerID.String()).
			Msg("Endpoint path collision, regenerating")
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrPathExhausted, maxPathAttempts)
}

// ListByOwner returns the owner's endpoints, newest first
func (r *Registry) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Endpoint, error) {
	return r.repo.ListByOwner(ctx, ownerID)
}

// FindOwned returns the owner's endpoint with the given id, or nil when the
// endpoint does not exist or belongs to someone else
func (r *Registry) FindOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.Endpoint, error) {
	endpoints, err := r.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range endpoints {
		if endpoints[i].ID == id {
			return &endpoints[i], nil
		}
	}
	return nil, nil
}

// FindByPath returns the active endpoint at path, or nil
func (r *Registry) FindByPath(ctx context.Context, path string) (*models.Endpoint, error) {
	if path == "" {
		return nil, nil
	}
	return r.repo.FindActiveByPath(ctx, path)
}

// Delete removes the endpoint when ownerID owns it; otherwise nothing happens
func (r *Registry) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	return r.repo.Delete(ctx, id, ownerID)
}
