package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gramchat/gramchat/internal/auth"
	"github.com/gramchat/gramchat/internal/models"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, d *deps) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Uploaded files are served straight from disk.
	if d.cfg.Upload.Dir != "" {
		router.Static("/files", d.cfg.Upload.Dir)
	}

	api := router.Group("/api")

	api.POST("/auth/login", handleLogin(d))
	api.POST("/auth/register", handleRegister(d))

	secret := []byte(d.cfg.Auth.JWTSecret)
	authed := api.Group("", auth.Middleware(d.db, secret, d.logger))

	authed.GET("/dialogs", handleDialogList(d))
	authed.GET("/dialogs/:id/messages", handleDialogMessages(d))
	authed.POST("/dialogs/:id/messages", handleSendMessage(d))
	authed.POST("/dialogs/:id/claim", handleClaim(d))
	authed.POST("/dialogs/:id/release", handleRelease(d))
	authed.POST("/dialogs/:id/transfer", handleTransfer(d))
	authed.PATCH("/dialogs/:id/status", handleChangeStatus(d))
	authed.GET("/dialogs/:id/avatar", handleAvatar(d))
	authed.POST("/upload/dialog/:id", handleUpload(d))
	authed.GET("/events", handleSSE(d))

	staff := authed.Group("", auth.RequireRole(models.RoleAdmin, models.RoleOwner))
	staff.POST("/invites", handleInviteCreate(d))
	staff.GET("/invites", handleInviteList(d))
	staff.DELETE("/invites/:id", handleInviteRevoke(d))
	staff.GET("/bots", handleBotList(d))
	staff.POST("/bots", handleBotCreate(d))
	staff.GET("/users", handleUserList(d))
	staff.POST("/users/:id/deactivate", handleUserDeactivate(d))
}
