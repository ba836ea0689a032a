// Package gateway bridges Telegram bots to the dialog store. Each connected
// bot runs its own adapter; inbound customer messages flow through the
// dialog package, staff replies flow back out through Send.
package gateway

import (
	"context"
	"time"
)

// Inbound is a customer message as received from the chat platform, before
// it is attached to a dialog.
type Inbound struct {
	ChatID      int64
	Name        string // customer display name
	Username    string
	UserID      int64 // platform user id, used for profile photo lookup
	Text        string
	MessageType string // models.Message* constant
	FileURL     string
	FileName    string
	FileSize    int64
	MimeType    string
	Timestamp   time.Time
}

// Adapter is the platform-specific side of one connected bot.
type Adapter interface {
	// Connect validates credentials and learns the bot identity.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound customer messages. The channel
	// is closed when the context is cancelled or the adapter is closed.
	// Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan Inbound, error)

	// SendText delivers a staff reply to the customer chat.
	SendText(ctx context.Context, chatID int64, text string) error

	// ProfilePhotoURL resolves the customer's current profile photo URL,
	// or empty if none.
	ProfilePhotoURL(ctx context.Context, userID int64) (string, error)

	// Username returns the bot's platform username after Connect.
	Username() string

	// Close shuts down the adapter connection.
	Close() error
}

// Factory builds an Adapter for a bot token. Injected so tests can supply
// mock adapters.
type Factory func(token string) (Adapter, error)
