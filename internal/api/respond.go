package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gramchat/gramchat/internal/dialog"
	"github.com/gramchat/gramchat/internal/models"
	"go.uber.org/zap"
)

// dialogView is the JSON shape of a dialog.
type dialogView struct {
	ID               string       `json:"id"`
	BotID            string       `json:"botId"`
	CustomerName     string       `json:"customerName"`
	CustomerUsername string       `json:"customerUsername,omitempty"`
	Status           string       `json:"status"`
	CloseReason      *string      `json:"closeReason,omitempty"`
	AssignedToID     *string      `json:"assignedToId,omitempty"`
	AssignedAt       *time.Time   `json:"assignedAt,omitempty"`
	ClosedAt         *time.Time   `json:"closedAt,omitempty"`
	LastMessageAt    time.Time    `json:"lastMessageAt"`
	CreatedAt        time.Time    `json:"createdAt"`
	LastMessage      *messageView `json:"lastMessage,omitempty"`
}

// messageView is the JSON shape of a message.
type messageView struct {
	ID          string    `json:"id"`
	DialogID    string    `json:"dialogId"`
	Text        string    `json:"text"`
	FromUser    bool      `json:"fromUser"`
	SenderID    string    `json:"senderId,omitempty"`
	MessageType string    `json:"messageType"`
	FileURL     string    `json:"fileUrl,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	FileSize    int64     `json:"fileSize,omitempty"`
	MimeType    string    `json:"mimeType,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// userView is the JSON shape of a staff account. The password hash never
// leaves the server.
type userView struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	BotID         string `json:"botId,omitempty"`
	HasFullAccess bool   `json:"hasFullAccess"`
	IsActive      bool   `json:"isActive"`
}

func toDialogView(d *models.Dialog) dialogView {
	v := dialogView{
		ID:               d.ID,
		BotID:            d.BotID,
		CustomerName:     d.CustomerName,
		CustomerUsername: d.CustomerUsername,
		Status:           d.Status,
		CloseReason:      d.CloseReason,
		AssignedToID:     d.AssignedToID,
		AssignedAt:       d.AssignedAt,
		ClosedAt:         d.ClosedAt,
		LastMessageAt:    d.LastMessageAt,
		CreatedAt:        d.CreatedAt,
	}
	if len(d.Messages) > 0 {
		mv := toMessageView(&d.Messages[0])
		v.LastMessage = &mv
	}
	return v
}

func toMessageView(m *models.Message) messageView {
	return messageView{
		ID:          m.ID,
		DialogID:    m.DialogID,
		Text:        m.Text,
		FromUser:    m.FromUser,
		SenderID:    m.SenderID,
		MessageType: m.MessageType,
		FileURL:     m.FileURL,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		MimeType:    m.MimeType,
		CreatedAt:   m.CreatedAt,
	}
}

func toUserView(u *models.User) userView {
	return userView{
		ID:            u.ID,
		Username:      u.Username,
		Role:          u.Role,
		BotID:         u.BotID,
		HasFullAccess: u.HasFullAccess,
		IsActive:      u.IsActive,
	}
}

// writeDialogError maps dialog package sentinels to HTTP statuses.
func writeDialogError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, dialog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "dialog not found"})
	case errors.Is(err, dialog.ErrNotPermitted):
		c.JSON(http.StatusForbidden, gin.H{"error": "operation not permitted"})
	case errors.Is(err, dialog.ErrAlreadyAssigned):
		c.JSON(http.StatusConflict, gin.H{"error": "dialog already assigned"})
	case errors.Is(err, dialog.ErrNotAssignee):
		c.JSON(http.StatusConflict, gin.H{"error": "not the current assignee"})
	case errors.Is(err, dialog.ErrDialogClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "dialog is closed"})
	case errors.Is(err, dialog.ErrBadTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status transition"})
	default:
		logger.Error("dialog operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
