package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gramchat/gramchat/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContextUserKey is the gin context key holding the authenticated *models.User.
const ContextUserKey = "auth.user"

// Middleware returns a gin middleware that validates the Bearer token and
// loads the staff account into the request context. Deactivated accounts are
// rejected even with a valid token.
func Middleware(db *gorm.DB, secret []byte, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be Bearer <token>"})
			return
		}

		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
				return
			}
			logger.Debug("rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if err := db.Where("id = ? AND is_active = ?", claims.UserID, true).First(&user).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account not found or deactivated"})
			return
		}

		c.Set(ContextUserKey, &user)
		c.Next()
	}
}

// RequireRole returns a middleware allowing only the listed roles. It must
// run after Middleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		user := UserFrom(c)
		if user == nil || !allowed[user.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// UserFrom returns the authenticated user from the gin context, or nil.
func UserFrom(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
