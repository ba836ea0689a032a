package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gramchat/gramchat/internal/models"
)

func newBotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Manage connected Telegram bots",
	}

	cmd.AddCommand(newBotAddCmd())
	cmd.AddCommand(newBotListCmd())
	return cmd
}

func newBotAddCmd() *cobra.Command {
	var (
		configPath string
		title      string
		token      string
		owner      string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a Telegram bot for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			actor, err := loadActor(gormDB, owner)
			if err != nil {
				return err
			}
			if actor.Role != models.RoleOwner && actor.Role != models.RoleAdmin {
				return fmt.Errorf("account %q cannot own bots", owner)
			}

			bot := models.Bot{
				ID:       uuid.NewString(),
				Title:    title,
				Token:    token,
				OwnerID:  actor.ID,
				IsActive: true,
			}
			if err := gormDB.Create(&bot).Error; err != nil {
				return fmt.Errorf("create bot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bot %q registered (id %s)\n", bot.Title, bot.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gramchat.yaml", "path to config file")
	cmd.Flags().StringVar(&title, "title", "", "display title for the bot")
	cmd.Flags().StringVar(&token, "token", "", "Telegram bot token from BotFather")
	cmd.Flags().StringVar(&owner, "owner", "", "owner username")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("token")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func newBotListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered bots",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			var bots []models.Bot
			if err := gormDB.Order("created_at ASC").Find(&bots).Error; err != nil {
				return fmt.Errorf("list bots: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, b := range bots {
				state := "active"
				if !b.IsActive {
					state = "inactive"
				}
				username := b.Username
				if username == "" {
					username = "(not connected yet)"
				}
				fmt.Fprintf(out, "%-20s @%-20s %-8s %s\n", b.Title, username, state, b.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gramchat.yaml", "path to config file")
	return cmd
}
