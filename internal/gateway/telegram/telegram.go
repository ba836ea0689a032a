// Package telegram implements the gateway Adapter over the Telegram Bot API
// using long polling.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gramchat/gramchat/internal/gateway"
	"github.com/gramchat/gramchat/internal/models"
)

// botAPI abstracts the tgbotapi methods we use, enabling test mocks.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUserProfilePhotos(config tgbotapi.UserProfilePhotosConfig) (tgbotapi.UserProfilePhotos, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Adapter implements gateway.Adapter for one Telegram bot token.
type Adapter struct {
	token    string
	api      botAPI
	username string

	mu     sync.Mutex
	closed bool
}

// Opts holds parameters for creating a Telegram Adapter.
type Opts struct {
	Token string
	// For testing: inject a mock API and identity instead of dialing Telegram.
	API      botAPI
	Username string
}

// New creates a Telegram Adapter. The connection is established in Connect.
func New(opts Opts) (*Adapter, error) {
	if opts.API == nil && opts.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	return &Adapter{token: opts.Token, api: opts.API, username: opts.Username}, nil
}

// Factory returns a gateway.Factory producing Telegram adapters.
func Factory() gateway.Factory {
	return func(token string) (gateway.Adapter, error) {
		return New(Opts{Token: token})
	}
}

// Connect authorizes against the Bot API and learns the bot username.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("telegram: adapter already closed")
	}
	if a.api != nil {
		return nil
	}
	api, err := tgbotapi.NewBotAPI(a.token)
	if err != nil {
		return fmt.Errorf("telegram: authorize: %w", err)
	}
	a.api = api
	a.username = api.Self.UserName
	return nil
}

// Username returns the bot username learned at connect time.
func (a *Adapter) Username() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.username
}

// Listen starts long polling and converts updates to inbound messages.
func (a *Adapter) Listen(ctx context.Context) (<-chan gateway.Inbound, error) {
	a.mu.Lock()
	api := a.api
	a.mu.Unlock()
	if api == nil {
		return nil, fmt.Errorf("telegram: Listen before Connect")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	out := make(chan gateway.Inbound, 100)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil || update.Message.From == nil || update.Message.From.IsBot {
					continue
				}
				in := a.convert(update.Message)
				select {
				case out <- in:
				case <-ctx.Done():
					api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out, nil
}

// convert maps one Telegram message to a gateway Inbound.
func (a *Adapter) convert(msg *tgbotapi.Message) gateway.Inbound {
	in := gateway.Inbound{
		ChatID:      msg.Chat.ID,
		UserID:      msg.From.ID,
		Username:    msg.From.UserName,
		Name:        strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
		Text:        msg.Text,
		MessageType: models.MessageText,
		Timestamp:   msg.Time(),
	}

	switch {
	case len(msg.Photo) > 0:
		in.MessageType = models.MessagePhoto
		best := msg.Photo[len(msg.Photo)-1]
		in.FileSize = int64(best.FileSize)
		in.FileURL = a.fileURL(best.FileID)
		in.Text = msg.Caption
	case msg.Video != nil:
		in.MessageType = models.MessageVideo
		in.FileName = msg.Video.FileName
		in.FileSize = int64(msg.Video.FileSize)
		in.MimeType = msg.Video.MimeType
		in.FileURL = a.fileURL(msg.Video.FileID)
		in.Text = msg.Caption
	case msg.Document != nil:
		in.MessageType = models.MessageDocument
		in.FileName = msg.Document.FileName
		in.FileSize = int64(msg.Document.FileSize)
		in.MimeType = msg.Document.MimeType
		in.FileURL = a.fileURL(msg.Document.FileID)
		in.Text = msg.Caption
	case msg.Voice != nil:
		in.MessageType = models.MessageVoice
		in.FileSize = int64(msg.Voice.FileSize)
		in.MimeType = msg.Voice.MimeType
		in.FileURL = a.fileURL(msg.Voice.FileID)
	case msg.Sticker != nil:
		in.MessageType = models.MessageSticker
		in.FileURL = a.fileURL(msg.Sticker.FileID)
		in.Text = msg.Sticker.Emoji
	case msg.Location != nil:
		in.MessageType = models.MessageLocation
		in.Text = fmt.Sprintf("%f,%f", msg.Location.Latitude, msg.Location.Longitude)
	}
	return in
}

// fileURL resolves a Telegram file id to a direct download URL, or empty on
// failure: attachment metadata is best-effort.
func (a *Adapter) fileURL(fileID string) string {
	url, err := a.api.GetFileDirectURL(fileID)
	if err != nil {
		return ""
	}
	return url
}

// SendText delivers a staff reply to the customer chat.
func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	a.mu.Lock()
	api := a.api
	a.mu.Unlock()
	if api == nil {
		return fmt.Errorf("telegram: SendText before Connect")
	}
	if _, err := api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

// ProfilePhotoURL returns a direct URL to the user's newest profile photo.
func (a *Adapter) ProfilePhotoURL(ctx context.Context, userID int64) (string, error) {
	a.mu.Lock()
	api := a.api
	a.mu.Unlock()
	if api == nil {
		return "", fmt.Errorf("telegram: ProfilePhotoURL before Connect")
	}

	cfg := tgbotapi.NewUserProfilePhotos(userID)
	cfg.Limit = 1
	photos, err := api.GetUserProfilePhotos(cfg)
	if err != nil {
		return "", fmt.Errorf("telegram: profile photos: %w", err)
	}
	if len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return "", nil
	}
	sizes := photos.Photos[0]
	return api.GetFileDirectURL(sizes[len(sizes)-1].FileID)
}

// Close stops polling.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.api != nil {
		a.api.StopReceivingUpdates()
	}
	return nil
}
