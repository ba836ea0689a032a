package dialog

import (
	"fmt"
	"time"

	"github.com/gramchat/gramchat/internal/models"
	"gorm.io/gorm"
)

// Claim assigns an unclaimed dialog to the actor. A NEW dialog becomes
// ACTIVE. The assignment is a single guarded UPDATE: if another actor
// claimed first, zero rows match and ErrAlreadyAssigned is returned.
func Claim(db *gorm.DB, dialogID string, actor *models.User) (*models.Dialog, error) {
	if dialogID == "" {
		return nil, fmt.Errorf("dialog: dialogID is required")
	}
	if actor == nil {
		return nil, fmt.Errorf("dialog: actor is required")
	}

	var claimed *models.Dialog
	err := db.Transaction(func(tx *gorm.DB) error {
		d, err := getDialog(tx, dialogID)
		if err != nil {
			return err
		}
		ok, err := canAccess(tx, actor, d.BotID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotPermitted
		}
		if d.Status == models.DialogClosed {
			return ErrDialogClosed
		}

		now := time.Now()
		updates := map[string]interface{}{
			"assigned_to_id": actor.ID,
			"assigned_at":    now,
		}
		if d.Status == models.DialogNew {
			updates["status"] = models.DialogActive
		}

		result := tx.Model(&models.Dialog{}).
			Where("id = ? AND assigned_to_id IS NULL AND status <> ?", dialogID, models.DialogClosed).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("dialog: claim %s: %w", dialogID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyAssigned
		}

		claimed, err = getDialog(tx, dialogID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Release returns a dialog to the unassigned pool. Only the current
// assignee may release; the dialog keeps its status.
func Release(db *gorm.DB, dialogID string, actor *models.User) (*models.Dialog, error) {
	if dialogID == "" {
		return nil, fmt.Errorf("dialog: dialogID is required")
	}
	if actor == nil {
		return nil, fmt.Errorf("dialog: actor is required")
	}

	var released *models.Dialog
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := getDialog(tx, dialogID); err != nil {
			return err
		}

		result := tx.Model(&models.Dialog{}).
			Where("id = ? AND assigned_to_id = ?", dialogID, actor.ID).
			Updates(map[string]interface{}{
				"assigned_to_id": nil,
				"assigned_at":    nil,
			})
		if result.Error != nil {
			return fmt.Errorf("dialog: release %s: %w", dialogID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotAssignee
		}

		var err error
		released, err = getDialog(tx, dialogID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// Transfer reassigns a dialog to another manager in one step so readers
// never observe an unassigned window. Only an owner of the dialog's bot
// (or an admin) may transfer; the target must be active staff of the same
// tenant and not already the assignee.
func Transfer(db *gorm.DB, dialogID string, actor *models.User, targetID string) (*models.Dialog, error) {
	if dialogID == "" {
		return nil, fmt.Errorf("dialog: dialogID is required")
	}
	if actor == nil {
		return nil, fmt.Errorf("dialog: actor is required")
	}
	if targetID == "" {
		return nil, fmt.Errorf("dialog: targetID is required")
	}

	var transferred *models.Dialog
	err := db.Transaction(func(tx *gorm.DB) error {
		d, err := getDialog(tx, dialogID)
		if err != nil {
			return err
		}
		owner, err := isOwnerOf(tx, actor, d.BotID)
		if err != nil {
			return err
		}
		if !owner {
			return ErrNotPermitted
		}
		if d.Status == models.DialogClosed {
			return ErrDialogClosed
		}
		if d.AssignedToID != nil && *d.AssignedToID == targetID {
			return ErrAlreadyAssigned
		}

		var target models.User
		if err := tx.Where("id = ? AND is_active = ?", targetID, true).First(&target).Error; err != nil {
			return fmt.Errorf("dialog: target %s: %w", targetID, ErrNotPermitted)
		}
		ok, err := canAccess(tx, &target, d.BotID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotPermitted
		}

		// Guard on the previously observed assignee so a concurrent claim
		// or transfer invalidates this one instead of being overwritten.
		q := tx.Model(&models.Dialog{}).Where("id = ?", dialogID)
		if d.AssignedToID == nil {
			q = q.Where("assigned_to_id IS NULL")
		} else {
			q = q.Where("assigned_to_id = ?", *d.AssignedToID)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"assigned_to_id": targetID,
			"assigned_at":    now,
		}
		if d.Status == models.DialogNew {
			updates["status"] = models.DialogActive
		}

		result := q.Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("dialog: transfer %s: %w", dialogID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyAssigned
		}

		transferred, err = getDialog(tx, dialogID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return transferred, nil
}
