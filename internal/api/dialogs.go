package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gramchat/gramchat/internal/auth"
	"github.com/gramchat/gramchat/internal/dialog"
	"github.com/gramchat/gramchat/internal/events"
	"github.com/gramchat/gramchat/internal/models"
	"go.uber.org/zap"
)

func handleDialogList(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		dialogs, err := dialog.List(d.db, actor, dialog.ListOpts{
			BotID:  c.Query("botId"),
			Status: c.Query("status"),
			Filter: c.Query("filter"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			writeDialogError(c, d.logger, err)
			return
		}

		views := make([]dialogView, 0, len(dialogs))
		for i := range dialogs {
			views = append(views, toDialogView(&dialogs[i]))
		}
		c.JSON(http.StatusOK, gin.H{"dialogs": views})
	}
}

func handleDialogMessages(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		dlg, msgs, err := dialog.GetWithMessages(d.db, c.Param("id"), actor)
		if err != nil {
			writeDialogError(c, d.logger, err)
			return
		}

		views := make([]messageView, 0, len(msgs))
		for i := range msgs {
			views = append(views, toMessageView(&msgs[i]))
		}
		c.JSON(http.StatusOK, gin.H{
			"dialog":   toDialogView(dlg),
			"messages": views,
		})
	}
}

type sendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

func handleSendMessage(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}

		dialogID := c.Param("id")
		msg, err := dialog.SendMessage(d.db, dialogID, actor, req.Text, nil)
		if err != nil {
			writeDialogError(c, d.logger, err)
			return
		}

		d.deliverToCustomer(c, dialogID, req.Text)
		d.publishMessage(c, dialogID, msg)

		c.JSON(http.StatusCreated, toMessageView(msg))
	}
}

func handleClaim(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		dlg, err := dialog.Claim(d.db, c.Param("id"), actor)
		if err != nil {
			writeDialogError(c, d.logger, err)
			return
		}

		d.publishAssignment(c, dlg)
		c.JSON(http.StatusOK, toDialogView(dlg))
	}
}

func handleRelease(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		dlg, err := dialog.Release(d.db, c.Param("id"), actor)
		if err != nil {
			writeDialogError(c, d.logger, err)
			return
		}

		d.publishAssignment(c, dlg)
		c.JSON(http.StatusOK, toDialogView(dlg))
	}
}

type transferRequest struct {
	TargetID string `json:"targetId" binding:"required"`
}

func handleTransfer(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		var req transferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "targetId is required"})
			return
		}

		dlg, err := dialog.Transfer(d.db, c.Param("id"), actor, req.TargetID)
		if err != nil {
			writeDialogError(c, d.logger, err)
			return
		}

		d.publishAssignment(c, dlg)
		c.JSON(http.StatusOK, toDialogView(dlg))
	}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func handleChangeStatus(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}

		dlg, err := dialog.ChangeStatus(d.db, c.Param("id"), actor, req.Status, req.Reason)
		if err != nil {
			writeDialogError(c, d.logger, err)
			return
		}

		if err := d.pub.Publish(c.Request.Context(), events.KeyStatusChanged, events.StatusChanged{
			DialogID:    dlg.ID,
			BotID:       dlg.BotID,
			Status:      dlg.Status,
			CloseReason: dlg.CloseReason,
		}); err != nil {
			d.logger.Warn("event publish failed", zap.String("dialog_id", dlg.ID), zap.Error(err))
		}
		c.JSON(http.StatusOK, toDialogView(dlg))
	}
}

func handleAvatar(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		dlg, _, err := dialog.GetWithMessages(d.db, c.Param("id"), actor)
		if err != nil {
			writeDialogError(c, d.logger, err)
			return
		}
		if d.avatars == nil || dlg.CustomerPhotoURL == "" {
			c.JSON(http.StatusOK, gin.H{"avatar": ""})
			return
		}

		dataURL, err := d.avatars.Resolve(c.Request.Context(), dlg.ID, dlg.CustomerPhotoURL)
		if err != nil {
			d.logger.Debug("avatar fetch failed", zap.String("dialog_id", dlg.ID), zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"avatar": ""})
			return
		}
		c.JSON(http.StatusOK, gin.H{"avatar": dataURL})
	}
}

// deliverToCustomer pushes a staff reply out through the gateway. Delivery
// failures are logged but do not fail the request: the message row is
// already committed.
func (d *deps) deliverToCustomer(c *gin.Context, dialogID, text string) {
	if d.gw == nil {
		return
	}
	var dlg models.Dialog
	if err := d.db.Where("id = ?", dialogID).First(&dlg).Error; err != nil {
		return
	}
	var bot models.Bot
	if err := d.db.Where("id = ?", dlg.BotID).First(&bot).Error; err != nil {
		return
	}
	if err := d.gw.Send(c.Request.Context(), bot, dlg.TelegramChatID, text); err != nil {
		d.logger.Warn("telegram delivery failed",
			zap.String("dialog_id", dialogID),
			zap.Error(err))
	}
}

func (d *deps) publishMessage(c *gin.Context, dialogID string, msg *models.Message) {
	var dlg models.Dialog
	if err := d.db.Where("id = ?", dialogID).First(&dlg).Error; err != nil {
		return
	}
	if err := d.pub.Publish(c.Request.Context(), events.KeyMessageCreated, events.MessageCreated{
		DialogID:  dialogID,
		BotID:     dlg.BotID,
		MessageID: msg.ID,
		FromUser:  false,
	}); err != nil {
		d.logger.Warn("event publish failed", zap.String("dialog_id", dialogID), zap.Error(err))
	}
}

func (d *deps) publishAssignment(c *gin.Context, dlg *models.Dialog) {
	evt := events.AssignmentChanged{
		DialogID:   dlg.ID,
		BotID:      dlg.BotID,
		AssignedTo: dlg.AssignedToID,
	}
	if err := d.pub.Publish(c.Request.Context(), events.KeyAssignmentChanged, evt); err != nil {
		d.logger.Warn("event publish failed", zap.String("dialog_id", dlg.ID), zap.Error(err))
	}
}
