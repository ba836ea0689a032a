package dialog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gramchat/gramchat/internal/models"
	"gorm.io/gorm"
)

// Attachment describes an optional file carried by an outbound message.
type Attachment struct {
	Type     string // PHOTO, VIDEO, DOCUMENT, VOICE
	FileURL  string
	FileName string
	FileSize int64
	MimeType string
}

// SendMessage appends an outbound staff message to a dialog. Closed dialogs
// reject the message without creating a row. Managers may only send into
// their own assigned dialogs or unassigned ones; owners and admins may send
// into any dialog of their tenant.
func SendMessage(db *gorm.DB, dialogID string, actor *models.User, text string, att *Attachment) (*models.Message, error) {
	if dialogID == "" {
		return nil, fmt.Errorf("dialog: dialogID is required")
	}
	if actor == nil {
		return nil, fmt.Errorf("dialog: actor is required")
	}
	if text == "" && att == nil {
		return nil, fmt.Errorf("dialog: message text or attachment is required")
	}

	var msg *models.Message
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
		if actor.Role == models.RoleManager && d.AssignedToID != nil && *d.AssignedToID != actor.ID {
			return ErrNotPermitted
		}

		now := time.Now()
		m := models.Message{
			ID:          uuid.NewString(),
			DialogID:    dialogID,
			Text:        text,
			FromUser:    false,
			SenderID:    actor.ID,
			MessageType: models.MessageText,
			CreatedAt:   now,
		}
		if att != nil {
			m.MessageType = att.Type
			m.FileURL = att.FileURL
			m.FileName = att.FileName
			m.FileSize = att.FileSize
			m.MimeType = att.MimeType
		}
		if err := tx.Create(&m).Error; err != nil {
			return fmt.Errorf("dialog: append message: %w", err)
		}

		if err := tx.Model(&models.Dialog{}).Where("id = ?", dialogID).
			Update("last_message_at", now).Error; err != nil {
			return fmt.Errorf("dialog: bump last_message_at: %w", err)
		}

		msg = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}
