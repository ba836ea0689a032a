package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gramchat/gramchat/internal/api"
	"github.com/gramchat/gramchat/internal/avatar"
	"github.com/gramchat/gramchat/internal/config"
	"github.com/gramchat/gramchat/internal/db"
	"github.com/gramchat/gramchat/internal/events"
	"github.com/gramchat/gramchat/internal/gateway"
	"github.com/gramchat/gramchat/internal/gateway/telegram"
	"github.com/gramchat/gramchat/internal/janitor"
	"github.com/gramchat/gramchat/internal/notify"
	"github.com/gramchat/gramchat/internal/notify/discord"
	"github.com/gramchat/gramchat/internal/notify/slack"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the helpdesk: API server, Telegram gateway, and janitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gramchat.yaml", "path to config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	if cfg.Upload.Dir != "" {
		if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
			return fmt.Errorf("create upload dir: %w", err)
		}
	}

	fanout := buildFanout(cfg, logger)

	var pub *events.Publisher
	if cfg.Events.AMQPURL != "" {
		pub, err = events.New(cfg.Events.AMQPURL, cfg.Events.Exchange, gormDB, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
	}

	gw, err := gateway.NewManager(gateway.ManagerOpts{
		DB:      gormDB,
		Factory: telegram.Factory(),
		Fanout:  fanout,
		Pub:     pub,
		Logger:  logger.Named("gateway"),
	})
	if err != nil {
		return err
	}

	jan, err := janitor.New(janitor.Opts{
		DB:         gormDB,
		Schedule:   cfg.Janitor.Schedule,
		StaleAfter: time.Duration(cfg.Janitor.StaleAfterMinutes) * time.Minute,
		Fanout:     fanout,
		Pub:        pub,
		Logger:     logger.Named("janitor"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := gw.Run(ctx); err != nil {
			logger.Error("gateway stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := jan.Run(ctx); err != nil {
			logger.Error("janitor stopped", zap.Error(err))
		}
	}()

	err = api.Start(ctx, api.Opts{
		DB:      gormDB,
		Config:  cfg,
		Gateway: gw,
		Avatars: avatar.New(avatar.Opts{}),
		Pub:     pub,
		Logger:  logger.Named("api"),
	})
	cancel()
	wg.Wait()
	return err
}

// newLogger builds a zap logger for the configured level.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// buildFanout wires the configured staff notification channels.
func buildFanout(cfg *config.Config, logger *zap.Logger) *notify.Fanout {
	var notifiers []notify.Notifier

	if cfg.Notify.Slack.BotToken != "" {
		n, err := slack.New(slack.Opts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.ChannelID,
		})
		if err != nil {
			logger.Warn("slack notifier disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, n)
		}
	}
	if cfg.Notify.Discord.BotToken != "" {
		n, err := discord.New(discord.Opts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			logger.Warn("discord notifier disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, n)
		}
	}

	if len(notifiers) == 0 {
		return nil
	}
	return notify.NewFanout(logger, notifiers...)
}
