package models

import (
	"time"

	"github.com/google/uuid"
)

// Endpoint is a user-owned inbound webhook address bound to one LINE channel secret.
// The channel secret is write-only and never serialized.
type Endpoint struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	Path          string    `json:"path" db:"path"`
	ChannelSecret string    `json:"-" db:"line_channel_secret"`
	Description   string    `json:"description" db:"description"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
