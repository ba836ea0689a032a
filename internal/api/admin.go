package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gramchat/gramchat/internal/auth"
	"github.com/gramchat/gramchat/internal/invite"
	"github.com/gramchat/gramchat/internal/models"
	"go.uber.org/zap"
)

type inviteCreateRequest struct {
	Role          string `json:"role" binding:"required"`
	BotID         string `json:"botId"`
	HasFullAccess bool   `json:"hasFullAccess"`
	TTLHours      int    `json:"ttlHours"`
}

type inviteView struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Role      string     `json:"role"`
	BotID     string     `json:"botId,omitempty"`
	UsedByID  *string    `json:"usedById,omitempty"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Revoked   bool       `json:"revoked"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toInviteView(ic *models.InviteCode) inviteView {
	return inviteView{
		ID:        ic.ID,
		Code:      ic.Code,
		Role:      ic.Role,
		BotID:     ic.BotID,
		UsedByID:  ic.UsedByID,
		UsedAt:    ic.UsedAt,
		ExpiresAt: ic.ExpiresAt,
		Revoked:   ic.Revoked,
		CreatedAt: ic.CreatedAt,
	}
}

func handleInviteCreate(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		var req inviteCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
			return
		}

		ic, err := invite.Create(d.db, actor, invite.CreateOpts{
			Role:          req.Role,
			BotID:         req.BotID,
			HasFullAccess: req.HasFullAccess,
			TTL:           time.Duration(req.TTLHours) * time.Hour,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, toInviteView(ic))
	}
}

func handleInviteList(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		codes, err := invite.List(d.db, actor)
		if err != nil {
			d.logger.Error("invite list failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		views := make([]inviteView, 0, len(codes))
		for i := range codes {
			views = append(views, toInviteView(&codes[i]))
		}
		c.JSON(http.StatusOK, gin.H{"invites": views})
	}
}

func handleInviteRevoke(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		if err := invite.Revoke(d.db, actor, c.Param("id")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "invite not found or already used"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"revoked": true})
	}
}

type botCreateRequest struct {
	Title   string `json:"title" binding:"required"`
	Token   string `json:"token" binding:"required"`
	OwnerID string `json:"ownerId"` // admin only; owners always create their own
}

type botView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Username string `json:"username,omitempty"`
	OwnerID  string `json:"ownerId"`
	IsActive bool   `json:"isActive"`
}

func toBotView(b *models.Bot) botView {
	// The bot token is write-only through the API.
	return botView{
		ID:       b.ID,
		Title:    b.Title,
		Username: b.Username,
		OwnerID:  b.OwnerID,
		IsActive: b.IsActive,
	}
}

func handleBotList(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		q := d.db.Model(&models.Bot{})
		if actor.Role != models.RoleAdmin {
			q = q.Where("owner_id = ?", actor.ID)
		}
		var bots []models.Bot
		if err := q.Order("created_at ASC").Find(&bots).Error; err != nil {
			d.logger.Error("bot list failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		views := make([]botView, 0, len(bots))
		for i := range bots {
			views = append(views, toBotView(&bots[i]))
		}
		c.JSON(http.StatusOK, gin.H{"bots": views})
	}
}

func handleBotCreate(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		var req botCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title and token are required"})
			return
		}

		ownerID := actor.ID
		if req.OwnerID != "" && actor.Role == models.RoleAdmin {
			ownerID = req.OwnerID
		}

		bot := models.Bot{
			ID:       uuid.NewString(),
			Title:    req.Title,
			Token:    req.Token,
			OwnerID:  ownerID,
			IsActive: true,
		}
		if err := d.db.Create(&bot).Error; err != nil {
			d.logger.Error("bot create failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusCreated, toBotView(&bot))
	}
}

func handleUserList(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)

		q := d.db.Model(&models.User{})
		if actor.Role != models.RoleAdmin {
			// Owners see managers of their bots plus themselves.
			q = q.Where("id = ? OR bot_id IN (?)", actor.ID,
				d.db.Model(&models.Bot{}).Select("id").Where("owner_id = ?", actor.ID))
		}
		var users []models.User
		if err := q.Order("created_at ASC").Find(&users).Error; err != nil {
			d.logger.Error("user list failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		views := make([]userView, 0, len(users))
		for i := range users {
			views = append(views, toUserView(&users[i]))
		}
		c.JSON(http.StatusOK, gin.H{"users": views})
	}
}

func handleUserDeactivate(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)
		targetID := c.Param("id")

		if targetID == actor.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot deactivate yourself"})
			return
		}

		q := d.db.Model(&models.User{}).Where("id = ? AND is_active = ?", targetID, true)
		if actor.Role != models.RoleAdmin {
			// Owners may only deactivate managers of their own bots.
			q = q.Where("role = ? AND bot_id IN (?)", models.RoleManager,
				d.db.Model(&models.Bot{}).Select("id").Where("owner_id = ?", actor.ID))
		}
		result := q.Update("is_active", false)
		if result.Error != nil {
			d.logger.Error("user deactivate failed", zap.Error(result.Error))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found or not yours to deactivate"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deactivated": true})
	}
}
