package models

import "time"

// User roles.
const (
	RoleAdmin   = "ADMIN"
	RoleOwner   = "OWNER"
	RoleManager = "MANAGER"
)

// User is a staff account: platform admin, shop owner, or manager.
type User struct {
	ID            string `gorm:"primaryKey;size:36"`
	Username      string `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash  string `gorm:"size:256"`
	Role          string `gorm:"size:16;not null;index"`
	TelegramID    int64  `gorm:"index"`
	BotID         string `gorm:"size:36;index"` // managers belong to one bot
	HasFullAccess bool   `gorm:"default:false"` // owner-only: trusted vs moderated
	IsActive      bool   `gorm:"default:true;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsStaff reports whether the role is one of the three staff roles.
func IsStaff(role string) bool {
	return role == RoleAdmin || role == RoleOwner || role == RoleManager
}
