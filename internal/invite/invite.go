// Package invite manages invite-code based staff registration.
package invite

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gramchat/gramchat/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrInviteInvalid is returned for unknown or revoked codes.
	ErrInviteInvalid = errors.New("invite code invalid")
	// ErrInviteExpired is returned for codes past their expiry.
	ErrInviteExpired = errors.New("invite code expired")
	// ErrInviteUsed is returned for codes that were already redeemed.
	ErrInviteUsed = errors.New("invite code already used")
)

// CreateOpts holds parameters for creating an invite code.
type CreateOpts struct {
	Role          string
	BotID         string // required for manager invites
	HasFullAccess bool   // owner invites only
	TTL           time.Duration
}

// Create generates a new invite code. Only owners may invite managers to
// their own bots; admins may invite anyone.
func Create(db *gorm.DB, creator *models.User, opts CreateOpts) (*models.InviteCode, error) {
	if creator == nil {
		return nil, fmt.Errorf("invite: creator is required")
	}
	switch opts.Role {
	case models.RoleOwner:
		if creator.Role != models.RoleAdmin {
			return nil, fmt.Errorf("invite: only admins may invite owners")
		}
	case models.RoleManager:
		if opts.BotID == "" {
			return nil, fmt.Errorf("invite: manager invites require a bot")
		}
		if creator.Role == models.RoleOwner {
			var count int64
			if err := db.Model(&models.Bot{}).
				Where("id = ? AND owner_id = ?", opts.BotID, creator.ID).
				Count(&count).Error; err != nil {
				return nil, fmt.Errorf("invite: check bot owner: %w", err)
			}
			if count == 0 {
				return nil, fmt.Errorf("invite: bot does not belong to creator")
			}
		} else if creator.Role != models.RoleAdmin {
			return nil, fmt.Errorf("invite: only owners and admins may invite managers")
		}
	default:
		return nil, fmt.Errorf("invite: unsupported role %q", opts.Role)
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = 72 * time.Hour
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	ic := models.InviteCode{
		ID:            uuid.NewString(),
		Code:          code,
		Role:          opts.Role,
		BotID:         opts.BotID,
		HasFullAccess: opts.HasFullAccess,
		CreatedByID:   creator.ID,
		ExpiresAt:     time.Now().Add(ttl),
		CreatedAt:     time.Now(),
	}
	if err := db.Create(&ic).Error; err != nil {
		return nil, fmt.Errorf("invite: create: %w", err)
	}
	return &ic, nil
}

// Redeem consumes an invite code and creates the staff account. The code is
// marked used inside the same transaction, so a code redeems at most once.
func Redeem(db *gorm.DB, code, username, passwordHash string) (*models.User, error) {
	if code == "" {
		return nil, fmt.Errorf("invite: code is required")
	}
	if username == "" {
		return nil, fmt.Errorf("invite: username is required")
	}

	var user *models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		var ic models.InviteCode
		if err := tx.Where("code = ?", code).First(&ic).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInviteInvalid
			}
			return fmt.Errorf("invite: lookup: %w", err)
		}
		if ic.Revoked {
			return ErrInviteInvalid
		}
		if ic.UsedByID != nil {
			return ErrInviteUsed
		}
		if time.Now().After(ic.ExpiresAt) {
			return ErrInviteExpired
		}

		u := models.User{
			ID:            uuid.NewString(),
			Username:      username,
			PasswordHash:  passwordHash,
			Role:          ic.Role,
			BotID:         ic.BotID,
			HasFullAccess: ic.HasFullAccess,
			IsActive:      true,
			CreatedAt:     time.Now(),
		}
		if err := tx.Create(&u).Error; err != nil {
			return fmt.Errorf("invite: create user: %w", err)
		}

		now := time.Now()
		result := tx.Model(&models.InviteCode{}).
			Where("id = ? AND used_by_id IS NULL", ic.ID).
			Updates(map[string]interface{}{"used_by_id": u.ID, "used_at": now})
		if result.Error != nil {
			return fmt.Errorf("invite: mark used: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInviteUsed
		}

		user = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Revoke invalidates an unused invite code.
func Revoke(db *gorm.DB, actor *models.User, codeID string) error {
	if actor == nil {
		return fmt.Errorf("invite: actor is required")
	}
	q := db.Model(&models.InviteCode{}).Where("id = ? AND used_by_id IS NULL", codeID)
	if actor.Role != models.RoleAdmin {
		q = q.Where("created_by_id = ?", actor.ID)
	}
	result := q.Update("revoked", true)
	if result.Error != nil {
		return fmt.Errorf("invite: revoke %s: %w", codeID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInviteInvalid
	}
	return nil
}

// List returns invite codes created by the actor (all codes for admins),
// newest first.
func List(db *gorm.DB, actor *models.User) ([]models.InviteCode, error) {
	if actor == nil {
		return nil, fmt.Errorf("invite: actor is required")
	}
	q := db.Model(&models.InviteCode{})
	if actor.Role != models.RoleAdmin {
		q = q.Where("created_by_id = ?", actor.ID)
	}
	var codes []models.InviteCode
	if err := q.Order("created_at DESC").Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("invite: list: %w", err)
	}
	return codes, nil
}

// generateCode returns a URL-safe random code.
func generateCode() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("invite: generate code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
