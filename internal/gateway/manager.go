package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/gramchat/gramchat/internal/dialog"
	"github.com/gramchat/gramchat/internal/events"
	"github.com/gramchat/gramchat/internal/models"
	"github.com/gramchat/gramchat/internal/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager runs one adapter per active bot and routes traffic between the
// platform and the dialog store.
type Manager struct {
	db      *gorm.DB
	factory Factory
	fanout  *notify.Fanout
	pub     *events.Publisher
	logger  *zap.Logger

	mu       sync.Mutex
	adapters map[string]Adapter // keyed by bot id
}

// ManagerOpts holds parameters for creating a Manager.
type ManagerOpts struct {
	DB      *gorm.DB
	Factory Factory
	Fanout  *notify.Fanout    // optional
	Pub     *events.Publisher // optional
	Logger  *zap.Logger
}

// NewManager creates a Manager.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("gateway: db is required")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("gateway: adapter factory is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		db:       opts.DB,
		factory:  opts.Factory,
		fanout:   opts.Fanout,
		pub:      opts.Pub,
		logger:   logger,
		adapters: make(map[string]Adapter),
	}, nil
}

// Run starts adapters for all active bots and blocks until the context is
// cancelled. Bots that fail to connect are logged and skipped.
func (m *Manager) Run(ctx context.Context) error {
	var bots []models.Bot
	if err := m.db.Where("is_active = ?", true).Find(&bots).Error; err != nil {
		return fmt.Errorf("gateway: load bots: %w", err)
	}

	var wg sync.WaitGroup
	for _, bot := range bots {
		wg.Add(1)
		go func(bot models.Bot) {
			defer wg.Done()
			if err := m.runBot(ctx, bot); err != nil && ctx.Err() == nil {
				m.logger.Error("bot loop exited", zap.String("bot_id", bot.ID), zap.Error(err))
			}
		}(bot)
	}
	wg.Wait()
	return nil
}

// runBot connects one bot and pumps its inbound messages until ctx ends.
func (m *Manager) runBot(ctx context.Context, bot models.Bot) error {
	adapter, err := m.adapterFor(ctx, bot)
	if err != nil {
		return err
	}
	defer m.closeAdapter(bot.ID)

	inbound, err := adapter.Listen(ctx)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", bot.ID, err)
	}
	m.logger.Info("bot connected", zap.String("bot_id", bot.ID), zap.String("username", adapter.Username()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case in, ok := <-inbound:
			if !ok {
				return nil
			}
			if err := m.HandleInbound(ctx, bot, in); err != nil {
				m.logger.Error("inbound message dropped",
					zap.String("bot_id", bot.ID),
					zap.Int64("chat_id", in.ChatID),
					zap.Error(err))
			}
		}
	}
}

// HandleInbound records a customer message, notifies staff about unclaimed
// dialogs, and publishes the lifecycle event.
func (m *Manager) HandleInbound(ctx context.Context, bot models.Bot, in Inbound) error {
	photoURL := ""
	if in.UserID != 0 {
		if adapter := m.getAdapter(bot.ID); adapter != nil {
			url, err := adapter.ProfilePhotoURL(ctx, in.UserID)
			if err != nil {
				m.logger.Debug("profile photo lookup failed", zap.Int64("user_id", in.UserID), zap.Error(err))
			} else {
				photoURL = url
			}
		}
	}

	d, msg, err := dialog.RecordInbound(m.db, dialog.InboundMessage{
		BotID:            bot.ID,
		TelegramChatID:   in.ChatID,
		CustomerName:     in.Name,
		CustomerUsername: in.Username,
		CustomerPhotoURL: photoURL,
		Text:             in.Text,
		MessageType:      in.MessageType,
		FileURL:          in.FileURL,
		FileName:         in.FileName,
		FileSize:         in.FileSize,
		MimeType:         in.MimeType,
	})
	if err != nil {
		return err
	}

	if d.AssignedToID == nil {
		m.fanout.Post(ctx, notify.Event{
			Title:    fmt.Sprintf("New message in unclaimed dialog (%s)", bot.Title),
			Body:     fmt.Sprintf("%s: %s", d.CustomerName, in.Text),
			Severity: notify.SeverityInfo,
		})
	}

	if err := m.pub.Publish(ctx, events.KeyMessageCreated, events.MessageCreated{
		DialogID:  d.ID,
		BotID:     bot.ID,
		MessageID: msg.ID,
		FromUser:  true,
	}); err != nil {
		m.logger.Warn("event publish failed", zap.String("dialog_id", d.ID), zap.Error(err))
	}
	return nil
}

// Send delivers a staff reply to the customer chat of the given bot.
func (m *Manager) Send(ctx context.Context, bot models.Bot, chatID int64, text string) error {
	adapter, err := m.adapterFor(ctx, bot)
	if err != nil {
		return err
	}
	if err := adapter.SendText(ctx, chatID, text); err != nil {
		return fmt.Errorf("gateway: send to chat %d: %w", chatID, err)
	}
	return nil
}

// adapterFor returns the connected adapter for a bot, creating it on demand.
func (m *Manager) adapterFor(ctx context.Context, bot models.Bot) (Adapter, error) {
	m.mu.Lock()
	if a, ok := m.adapters[bot.ID]; ok {
		m.mu.Unlock()
		return a, nil
	}
	m.mu.Unlock()

	a, err := m.factory(bot.Token)
	if err != nil {
		return nil, fmt.Errorf("gateway: adapter for %s: %w", bot.ID, err)
	}
	if err := a.Connect(ctx); err != nil {
		return nil, fmt.Errorf("gateway: connect %s: %w", bot.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.adapters[bot.ID]; ok {
		a.Close()
		return existing, nil
	}
	m.adapters[bot.ID] = a

	// Record the bot username learned at connect time.
	if u := a.Username(); u != "" && u != bot.Username {
		m.db.Model(&models.Bot{}).Where("id = ?", bot.ID).Update("username", u)
	}
	return a, nil
}

func (m *Manager) getAdapter(botID string) Adapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adapters[botID]
}

func (m *Manager) closeAdapter(botID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.adapters[botID]; ok {
		a.Close()
		delete(m.adapters, botID)
	}
}
