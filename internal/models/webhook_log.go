package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookLog is the durable record of one accepted webhook call.
// Exactly one of Payload or LogKey is set.
type WebhookLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	EndpointID uuid.UUID       `json:"endpoint_id" db:"endpoint_id"`
	Method     string          `json:"method" db:"method"`
	Payload    json.RawMessage `json:"payload,omitempty" db:"payload"`
	LogKey     *string         `json:"log_key,omitempty" db:"log_key"`
	ReceivedAt time.Time       `json:"received_at" db:"received_at"`
}

// WebhookPayload is the captured inbound request
type WebhookPayload struct {
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Body      json.RawMessage   `json:"body"`
	Query     map[string]string `json:"query"`
	Timestamp string            `json:"timestamp"`
}
