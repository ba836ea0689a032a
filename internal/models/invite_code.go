package models

import "time"

// InviteCode grants registration rights with a pre-set role. Manager codes
// are bound to a bot; owner codes are tenant-free until a bot is registered.
type InviteCode struct {
	ID            string  `gorm:"primaryKey;size:36"`
	Code          string  `gorm:"size:64;uniqueIndex;not null"`
	Role          string  `gorm:"size:16;not null"`
	BotID         string  `gorm:"size:36;index"`
	HasFullAccess bool    `gorm:"default:false"`
	CreatedByID   string  `gorm:"size:36;not null"`
	UsedByID      *string `gorm:"size:36"`
	UsedAt        *time.Time
	ExpiresAt     time.Time
	Revoked       bool `gorm:"default:false"`
	CreatedAt     time.Time
}
