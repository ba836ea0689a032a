package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gramchat/gramchat/internal/auth"
	"github.com/gramchat/gramchat/internal/dialog"
	"github.com/gramchat/gramchat/internal/models"
	"go.uber.org/zap"
)

// allowedMimeTypes is the upload allowlist: images, video, common audio,
// and document formats.
var allowedMimeTypes = map[string]bool{
	"image/jpeg":               true,
	"image/png":                true,
	"image/gif":                true,
	"image/webp":               true,
	"video/mp4":                true,
	"video/quicktime":          true,
	"video/webm":               true,
	"audio/mpeg":               true,
	"audio/ogg":                true,
	"audio/mp4":                true,
	"audio/wav":                true,
	"application/pdf":          true,
	"application/msword":       true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"text/plain": true,
}

// messageTypeFor maps an upload MIME type to the stored message type.
func messageTypeFor(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return models.MessagePhoto
	case strings.HasPrefix(mime, "video/"):
		return models.MessageVideo
	case strings.HasPrefix(mime, "audio/"):
		return models.MessageVoice
	default:
		return models.MessageDocument
	}
}

func handleUpload(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auth.UserFrom(c)
		dialogID := c.Param("id")

		header, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart file field is required"})
			return
		}
		if header.Size > d.cfg.Upload.MaxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("file exceeds %d byte limit", d.cfg.Upload.MaxBytes),
			})
			return
		}

		mime := header.Header.Get("Content-Type")
		if !allowedMimeTypes[mime] {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": fmt.Sprintf("type %q not allowed", mime)})
			return
		}

		// Stored name is random; the original name survives on the message.
		stored := uuid.NewString() + filepath.Ext(header.Filename)
		dst := filepath.Join(d.cfg.Upload.Dir, stored)
		if err := c.SaveUploadedFile(header, dst); err != nil {
			d.logger.Error("upload save failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		msg, err := dialog.SendMessage(d.db, dialogID, actor, c.PostForm("text"), &dialog.Attachment{
			Type:     messageTypeFor(mime),
			FileURL:  "/files/" + stored,
			FileName: filepath.Base(header.Filename),
			FileSize: header.Size,
			MimeType: mime,
		})
		if err != nil {
			// The dialog layer rejected the message, so the stored file is
			// unreachable from any message row. Remove it.
			if rmErr := os.Remove(dst); rmErr != nil {
				d.logger.Warn("upload cleanup failed", zap.String("path", dst), zap.Error(rmErr))
			}
			writeDialogError(c, d.logger, err)
			return
		}

		d.publishMessage(c, dialogID, msg)
		c.JSON(http.StatusCreated, toMessageView(msg))
	}
}
