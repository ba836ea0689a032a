package dialog

import (
	"errors"
	"fmt"

	"github.com/gramchat/gramchat/internal/models"
	"gorm.io/gorm"
)

// canAccess reports whether the actor may operate on dialogs of the given
// bot. Admins act everywhere, owners on bots they own, managers on the bot
// they belong to.
func canAccess(db *gorm.DB, actor *models.User, botID string) (bool, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleManager:
		return actor.BotID == botID, nil
	case models.RoleOwner:
		var count int64
		err := db.Model(&models.Bot{}).
			Where("id = ? AND owner_id = ?", botID, actor.ID).
			Count(&count).Error
		if err != nil {
			return false, fmt.Errorf("dialog: check bot owner: %w", err)
		}
		return count > 0, nil
	}
	return false, nil
}

// isOwnerOf reports whether the actor has owner-level rights over the bot.
// Admins count as owners for transfer and override purposes.
func isOwnerOf(db *gorm.DB, actor *models.User, botID string) (bool, error) {
	if actor.Role == models.RoleAdmin {
		return true, nil
	}
	if actor.Role != models.RoleOwner {
		return false, nil
	}
	return canAccess(db, actor, botID)
}

// getDialog loads a dialog row, mapping gorm's not-found to ErrNotFound.
func getDialog(db *gorm.DB, dialogID string) (*models.Dialog, error) {
	var d models.Dialog
	if err := db.Where("id = ?", dialogID).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("dialog: load %s: %w", dialogID, err)
	}
	return &d, nil
}
