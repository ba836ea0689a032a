package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gramchat/gramchat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Bot{},
		&models.InviteCode{},
		&models.Dialog{},
		&models.Message{},
		&models.OutboxEvent{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedAdmin upserts the platform admin account. The password hash must be
// produced by the auth package before calling.
func SeedAdmin(db *gorm.DB, username, passwordHash string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("db: admin username is required")
	}
	admin := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "is_active"}),
	}).Create(&admin)
	if result.Error != nil {
		return nil, fmt.Errorf("db: seed admin %q: %w", username, result.Error)
	}
	return &admin, nil
}
