package models

import "time"

// Dialog statuses.
const (
	DialogNew    = "NEW"
	DialogActive = "ACTIVE"
	DialogClosed = "CLOSED"
)

// Close reasons, set only on CLOSED dialogs.
const (
	CloseDeal      = "DEAL"
	CloseCancelled = "CANCELLED"
)

// Dialog is a single customer conversation thread tied to one bot.
//
// Invariants: at most one assignee at a time; CloseReason is set iff
// Status is CLOSED; AssignedAt is non-null iff AssignedToID is non-null.
// Dialogs are never hard-deleted.
type Dialog struct {
	ID               string  `gorm:"primaryKey;size:36"`
	BotID            string  `gorm:"size:36;not null;index:idx_dialogs_bot_chat,unique"`
	TelegramChatID   int64   `gorm:"not null;index:idx_dialogs_bot_chat,unique"`
	CustomerName     string  `gorm:"size:128"`
	CustomerUsername string  `gorm:"size:64"`
	CustomerPhotoURL string  `gorm:"size:512"`
	Status           string  `gorm:"size:16;default:NEW;index"`
	CloseReason      *string `gorm:"size:16"`
	AssignedToID     *string `gorm:"size:36;index"`
	AssignedAt       *time.Time
	ClosedAt         *time.Time
	LastMessageAt    time.Time `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Bot        *Bot      `gorm:"foreignKey:BotID"`
	AssignedTo *User     `gorm:"foreignKey:AssignedToID"`
	Messages   []Message `gorm:"foreignKey:DialogID"`
}
