package dialog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gramchat/gramchat/internal/models"
	"gorm.io/gorm"
)

// InboundMessage is a customer message arriving from the messaging gateway.
type InboundMessage struct {
	BotID            string
	TelegramChatID   int64
	CustomerName     string
	CustomerUsername string
	CustomerPhotoURL string
	Text             string
	MessageType      string
	FileURL          string
	FileName         string
	FileSize         int64
	MimeType         string
}

// RecordInbound finds or creates the dialog for an inbound customer message
// and appends the message. A reopened conversation on a CLOSED dialog flips
// it back to NEW so it reenters the unassigned pool. The customer profile
// snapshot is refreshed on every message.
func RecordInbound(db *gorm.DB, in InboundMessage) (*models.Dialog, *models.Message, error) {
	if in.BotID == "" {
		return nil, nil, fmt.Errorf("dialog: botID is required")
	}
	if in.TelegramChatID == 0 {
		return nil, nil, fmt.Errorf("dialog: telegramChatID is required")
	}
	if in.MessageType == "" {
		in.MessageType = models.MessageText
	}

	var (
		d   models.Dialog
		msg models.Message
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		err := tx.Where("bot_id = ? AND telegram_chat_id = ?", in.BotID, in.TelegramChatID).First(&d).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			d = models.Dialog{
				ID:               uuid.NewString(),
				BotID:            in.BotID,
				TelegramChatID:   in.TelegramChatID,
				CustomerName:     in.CustomerName,
				CustomerUsername: in.CustomerUsername,
				CustomerPhotoURL: in.CustomerPhotoURL,
				Status:           models.DialogNew,
				LastMessageAt:    now,
				CreatedAt:        now,
			}
			if err := tx.Create(&d).Error; err != nil {
				return fmt.Errorf("dialog: create: %w", err)
			}
		case err != nil:
			return fmt.Errorf("dialog: lookup bot=%s chat=%d: %w", in.BotID, in.TelegramChatID, err)
		default:
			updates := map[string]interface{}{
				"customer_name":     in.CustomerName,
				"customer_username": in.CustomerUsername,
				"last_message_at":   now,
			}
			if in.CustomerPhotoURL != "" {
				updates["customer_photo_url"] = in.CustomerPhotoURL
			}
			if d.Status == models.DialogClosed {
				updates["status"] = models.DialogNew
				updates["close_reason"] = nil
				updates["closed_at"] = nil
				updates["assigned_to_id"] = nil
				updates["assigned_at"] = nil
			}
			if err := tx.Model(&models.Dialog{}).Where("id = ?", d.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("dialog: refresh %s: %w", d.ID, err)
			}
		}

		msg = models.Message{
			ID:          uuid.NewString(),
			DialogID:    d.ID,
			Text:        in.Text,
			FromUser:    true,
			MessageType: in.MessageType,
			FileURL:     in.FileURL,
			FileName:    in.FileName,
			FileSize:    in.FileSize,
			MimeType:    in.MimeType,
			CreatedAt:   now,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("dialog: append inbound message: %w", err)
		}

		// Reload so callers see the post-update row.
		return tx.Where("id = ?", d.ID).First(&d).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &d, &msg, nil
}
