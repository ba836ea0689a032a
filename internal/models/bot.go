package models

import "time"

// Bot is a connected Telegram bot. One bot per shop; it is the tenant
// partition key for dialogs and managers.
type Bot struct {
	ID        string `gorm:"primaryKey;size:36"`
	Title     string `gorm:"size:128;not null"`
	Username  string `gorm:"size:64"` // Telegram bot username, filled on first connect
	Token     string `gorm:"size:128;not null"`
	OwnerID   string `gorm:"size:36;not null;index"`
	IsActive  bool   `gorm:"default:true;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Owner *User `gorm:"foreignKey:OwnerID"`
}
