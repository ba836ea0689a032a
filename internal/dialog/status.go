package dialog

import (
	"fmt"
	"time"

	"github.com/gramchat/gramchat/internal/models"
	"gorm.io/gorm"
)

// ChangeStatus moves a dialog between ACTIVE and CLOSED. Closing requires a
// reason (DEAL or CANCELLED); reopening clears the reason and close time.
// Only the current assignee or an owner of the tenant may change status.
// Repeating a transition that already holds returns the row unchanged.
func ChangeStatus(db *gorm.DB, dialogID string, actor *models.User, newStatus string, closeReason string) (*models.Dialog, error) {
	if dialogID == "" {
		return nil, fmt.Errorf("dialog: dialogID is required")
	}
	if actor == nil {
		return nil, fmt.Errorf("dialog: actor is required")
	}

	switch newStatus {
	case models.DialogActive:
		if closeReason != "" {
			return nil, ErrBadTransition
		}
	case models.DialogClosed:
		if closeReason != models.CloseDeal && closeReason != models.CloseCancelled {
			return nil, ErrBadTransition
		}
	default:
		return nil, ErrBadTransition
	}

	var updated *models.Dialog
	err := db.Transaction(func(tx *gorm.DB) error {
		d, err := getDialog(tx, dialogID)
		if err != nil {
			return err
		}

		allowed, err := isOwnerOf(tx, actor, d.BotID)
		if err != nil {
			return err
		}
		if !allowed {
			if d.AssignedToID == nil || *d.AssignedToID != actor.ID {
				return ErrNotPermitted
			}
		}

		// Idempotent: same status with same reason is a no-op.
		if d.Status == newStatus {
			if newStatus != models.DialogClosed || (d.CloseReason != nil && *d.CloseReason == closeReason) {
				updated = d
				return nil
			}
		}

		updates := map[string]interface{}{"status": newStatus}
		if newStatus == models.DialogClosed {
			updates["close_reason"] = closeReason
			updates["closed_at"] = time.Now()
		} else {
			updates["close_reason"] = nil
			updates["closed_at"] = nil
		}

		if err := tx.Model(&models.Dialog{}).Where("id = ?", dialogID).Updates(updates).Error; err != nil {
			return fmt.Errorf("dialog: change status %s: %w", dialogID, err)
		}

		updated, err = getDialog(tx, dialogID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
