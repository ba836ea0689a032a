package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gramchat/gramchat/internal/auth"
	"github.com/gramchat/gramchat/internal/invite"
	"github.com/gramchat/gramchat/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Code     string `json:"code" binding:"required"`
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userView  `json:"user"`
}

func (d *deps) tokenTTL() time.Duration {
	return time.Duration(d.cfg.Auth.TokenTTLHours) * time.Hour
}

func handleLogin(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		var user models.User
		err := d.db.Where("username = ? AND is_active = ?", req.Username, true).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			d.logger.Error("login lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
		if err != nil || !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		issueAndRespond(c, d, &user)
	}
}

func handleRegister(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code, username, and password (8+ chars) are required"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			d.logger.Error("password hash failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		user, err := invite.Redeem(d.db, req.Code, req.Username, hash)
		switch {
		case errors.Is(err, invite.ErrInviteInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invite code invalid"})
			return
		case errors.Is(err, invite.ErrInviteExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invite code expired"})
			return
		case errors.Is(err, invite.ErrInviteUsed):
			c.JSON(http.StatusConflict, gin.H{"error": "invite code already used"})
			return
		case err != nil:
			// Unique index on username surfaces here.
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}

		issueAndRespond(c, d, user)
	}
}

func issueAndRespond(c *gin.Context, d *deps, user *models.User) {
	token, expiresAt, err := auth.IssueToken([]byte(d.cfg.Auth.JWTSecret), user.ID, user.Role, d.tokenTTL())
	if err != nil {
		d.logger.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      toUserView(user),
	})
}
