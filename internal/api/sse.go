package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gramchat/gramchat/internal/auth"
	"github.com/gramchat/gramchat/internal/models"
	"gorm.io/gorm"
)

// newMessageEvent is the payload of an SSE new-message event.
type newMessageEvent struct {
	DialogID    string    `json:"dialogId"`
	MessageID   string    `json:"messageId"`
	BotID       string    `json:"botId"`
	FromUser    bool      `json:"fromUser"`
	Text        string    `json:"text"`
	MessageType string    `json:"messageType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// handleSSE streams new messages for dialogs visible to the actor. The
// stream polls the store, so events arrive with up to one poll interval of
// delay; heartbeats keep proxies from closing idle connections.
func handleSSE(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		botFilter := c.Query("botId")
		lastSeen := time.Now()

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				msgs, err := newMessagesSince(d.db, actor, botFilter, lastSeen)
				if err != nil || len(msgs) == 0 {
					continue
				}
				lastSeen = msgs[len(msgs)-1].CreatedAt

				for i := range msgs {
					m := &msgs[i]
					botID := ""
					if m.Dialog != nil {
						botID = m.Dialog.BotID
					}
					writeSSE(c.Writer, "new-message", newMessageEvent{
						DialogID:    m.DialogID,
						MessageID:   m.ID,
						BotID:       botID,
						FromUser:    m.FromUser,
						Text:        m.Text,
						MessageType: m.MessageType,
						CreatedAt:   m.CreatedAt,
					})
				}
				c.Writer.Flush()
			}
		}
	}
}

// newMessagesSince returns messages created after the cutoff in dialogs the
// actor may see, oldest first.
func newMessagesSince(db *gorm.DB, actor *models.User, botFilter string, since time.Time) ([]models.Message, error) {
	q := db.Model(&models.Message{}).
		Joins("JOIN dialogs ON dialogs.id = messages.dialog_id").
		Where("messages.created_at > ?", since).
		Preload("Dialog")

	switch actor.Role {
	case models.RoleAdmin:
		// Unrestricted.
	case models.RoleOwner:
		q = q.Where("dialogs.bot_id IN (?)",
			db.Model(&models.Bot{}).Select("id").Where("owner_id = ?", actor.ID))
	default:
		q = q.Where("dialogs.bot_id = ?", actor.BotID)
	}
	if botFilter != "" {
		q = q.Where("dialogs.bot_id = ?", botFilter)
	}

	var msgs []models.Message
	if err := q.Order("messages.created_at ASC").Limit(100).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
