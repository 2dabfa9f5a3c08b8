// Package payload stores captured webhook payloads.
//
// The inline strategy keeps the snapshot in the webhook_logs row itself. The
// split strategies write it to a keyed backend (Redis or S3) with a fixed
// retention and keep only the key in the row.
package payload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by backends when a key is absent or expired
	ErrNotFound = errors.New("payload not found")
	// ErrBackendUnavailable wraps any failure of a keyed backend
	ErrBackendUnavailable = errors.New("payload backend unavailable")
)

// Ref points at a stored payload. Exactly one field is set.
type Ref struct {
	Inline json.RawMessage
	Key    string
}

// IsZero reports whether the ref points at nothing
func (r Ref) IsZero() bool {
	return len(r.Inline) == 0 && r.Key == ""
}

// Store persists and resolves webhook payload snapshots
type Store interface {
	// Strategy names the storage strategy ("inline", "redis", "s3")
	Strategy() string
	// Save stores p for the log row logID and returns the reference to record
	Save(ctx context.Context, logID uuid.UUID, p *models.WebhookPayload) (Ref, error)
	// Load resolves ref. A missing or expired payload yields nil, nil.
	Load(ctx context.Context, ref Ref) (*models.WebhookPayload, error)
}

func decodeSnapshot(data []byte) (*models.WebhookPayload, error) {
	var p models.WebhookPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return &p, nil
}
