package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/gramchat/gramchat/internal/invite"
	"github.com/gramchat/gramchat/internal/models"
)

func newInviteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Manage invite codes",
	}

	cmd.AddCommand(newInviteCreateCmd())
	cmd.AddCommand(newInviteListCmd())
	cmd.AddCommand(newInviteRevokeCmd())
	return cmd
}

func newInviteCreateCmd() *cobra.Command {
	var (
		configPath string
		byUsername string
		role       string
		botID      string
		fullAccess bool
		ttlHours   int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an invite code",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			actor, err := loadActor(gormDB, byUsername)
			if err != nil {
				return err
			}
			ic, err := invite.Create(gormDB, actor, invite.CreateOpts{
				Role:          role,
				BotID:         botID,
				HasFullAccess: fullAccess,
				TTL:           time.Duration(ttlHours) * time.Hour,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invite code: %s (role %s, expires %s)\n",
				ic.Code, ic.Role, ic.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gramchat.yaml", "path to config file")
	cmd.Flags().StringVar(&byUsername, "by", "admin", "acting staff username")
	cmd.Flags().StringVar(&role, "role", models.RoleManager, "role granted by the code (OWNER or MANAGER)")
	cmd.Flags().StringVar(&botID, "bot", "", "bot id for manager invites")
	cmd.Flags().BoolVar(&fullAccess, "full-access", false, "grant full access (owner invites)")
	cmd.Flags().IntVar(&ttlHours, "ttl", 0, "code lifetime in hours (default 72)")
	return cmd
}

func newInviteListCmd() *cobra.Command {
	var (
		configPath string
		byUsername string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invite codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			actor, err := loadActor(gormDB, byUsername)
			if err != nil {
				return err
			}
			codes, err := invite.List(gormDB, actor)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(codes) == 0 {
				fmt.Fprintln(out, "No invite codes")
				return nil
			}
			for _, ic := range codes {
				state := "open"
				switch {
				case ic.Revoked:
					state = "revoked"
				case ic.UsedByID != nil:
					state = "used"
				case time.Now().After(ic.ExpiresAt):
					state = "expired"
				}
				fmt.Fprintf(out, "%s  %-8s %-8s expires %s\n",
					ic.Code, ic.Role, state, ic.ExpiresAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gramchat.yaml", "path to config file")
	cmd.Flags().StringVar(&byUsername, "by", "admin", "acting staff username")
	return cmd
}

func newInviteRevokeCmd() *cobra.Command {
	var (
		configPath string
		byUsername string
	)

	cmd := &cobra.Command{
		Use:   "revoke <code-id>",
		Short: "Revoke an unused invite code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			actor, err := loadActor(gormDB, byUsername)
			if err != nil {
				return err
			}
			if err := invite.Revoke(gormDB, actor, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Invite revoked")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gramchat.yaml", "path to config file")
	cmd.Flags().StringVar(&byUsername, "by", "admin", "acting staff username")
	return cmd
}

// loadActor resolves the acting staff account for management commands.
func loadActor(gormDB *gorm.DB, username string) (*models.User, error) {
	var u models.User
	if err := gormDB.Where("username = ? AND is_active = ?", username, true).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no active account %q", username)
		}
		return nil, fmt.Errorf("load account %q: %w", username, err)
	}
	return &u, nil
}
