package payload

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aimerfeng/LineHook/internal/config"
	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// InlineStore keeps payloads in the log row
type InlineStore struct{}

// NewInlineStore creates an inline payload store
func NewInlineStore() *InlineStore {
	return &InlineStore{}
}

// Strategy returns "inline"
func (s *InlineStore) Strategy() string {
	return config.PayloadStrategyInline
}

// Save encodes p into the returned ref
func (s *InlineStore) Save(_ context.Context, _ uuid.UUID, p *models.WebhookPayload) (Ref, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Ref{}, fmt.Errorf("failed to encode payload: %w", err)
	}
	return Ref{Inline: data}, nil
}

// Load decodes an inline ref. Keyed refs written under a split strategy cannot
// be resolved here and yield nil.
func (s *InlineStore) Load(_ context.Context, ref Ref) (*models.WebhookPayload, error) {
	if len(ref.Inline) == 0 {
		return nil, nil
	}
	p, err := decodeSnapshot(ref.Inline)
	if err != nil {
		log.Warn().Err(err).Msg("Discarding undecodable inline payload")
		return nil, nil
	}
	return p, nil
}
