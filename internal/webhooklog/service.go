package webhooklog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/aimerfeng/LineHook/internal/payload"
	"github.com/google/uuid"
)

// MaxEntries is the number of log entries returned per request
const MaxEntries = 50

// ErrForbidden is returned when the caller does not own the endpoint
var ErrForbidden = errors.New("access denied")

// EndpointOwnership resolves an endpoint only for its owner
type EndpointOwnership interface {
	FindOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.Endpoint, error)
}

// Entry is one log row with its payload resolved
type Entry struct {
	ID         uuid.UUID              `json:"id"`
	Method     string                 `json:"method"`
	ReceivedAt time.Time              `json:"received_at"`
	Data       *models.WebhookPayload `json:"data"`
}

// Service serves webhook logs to endpoint owners
type Service struct {
	endpoints EndpointOwnership
	logs      Repository
	payloads  payload.Store
}

// NewService creates a new log retrieval service
func NewService(endpoints EndpointOwnership, logs Repository, payloads payload.Store) *Service {
	return &Service{
		endpoints: endpoints,
		logs:      logs,
		payloads:  payloads,
	}
}

// List returns the most recent entries of endpointID. Ownership is checked
// before any log row is read.
func (s *Service) List(ctx context.Context, endpointID, callerID uuid.UUID) ([]Entry, error) {
	ep, err := s.endpoints.FindOwned(ctx, endpointID, callerID)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, ErrForbidden
	}

	rows, err := s.logs.ListRecent(ctx, ep.ID, MaxEntries)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		ref := payload.Ref{Inline: row.Payload}
		if row.LogKey != nil {
			ref.Key = *row.LogKey
		}

		data, err := s.payloads.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to load payload for log %s: %w", row.ID, err)
		}

		entries = append(entries, Entry{
			ID:         row.ID,
			Method:     row.Method,
			ReceivedAt: row.ReceivedAt,
			Data:       data,
		})
	}
	return entries, nil
}
