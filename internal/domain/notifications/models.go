package notifications

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("notification not found")
	ErrInvalidSender = errors.New("email sender is not a valid address")
)

type Notification struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Settings controls whether a tenant's notifications are also mailed.
type Settings struct {
	EmailEnabled bool   `json:"emailEnabled"`
	EmailFrom    string `json:"emailFrom"`
}
