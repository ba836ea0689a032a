package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gramchat/gramchat/internal/auth"
	"github.com/gramchat/gramchat/internal/models"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserDeactivateCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var (
		configPath string
		username   string
		password   string
		role       string
		botID      string
		fullAccess bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.IsStaff(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			if role == models.RoleManager && botID == "" {
				return fmt.Errorf("managers require --bot")
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			u := models.User{
				ID:            uuid.NewString(),
				Username:      username,
				PasswordHash:  hash,
				Role:          role,
				BotID:         botID,
				HasFullAccess: fullAccess,
				IsActive:      true,
			}
			if err := gormDB.Create(&u).Error; err != nil {
				return fmt.Errorf("create user %q: %w", username, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s) %s\n", u.Username, u.Role, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gramchat.yaml", "path to config file")
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", models.RoleManager, "ADMIN, OWNER, or MANAGER")
	cmd.Flags().StringVar(&botID, "bot", "", "bot id (required for managers)")
	cmd.Flags().BoolVar(&fullAccess, "full-access", false, "grant full access (owners)")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newUserListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List staff accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			var users []models.User
			if err := gormDB.Order("created_at ASC").Find(&users).Error; err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, u := range users {
				state := "active"
				if !u.IsActive {
					state = "inactive"
				}
				fmt.Fprintf(out, "%-20s %-8s %-8s %s\n", u.Username, u.Role, state, u.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gramchat.yaml", "path to config file")
	return cmd
}

func newUserDeactivateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "deactivate <username>",
		Short: "Deactivate a staff account",
		Long:  "Deactivated accounts cannot log in; the janitor returns their assigned dialogs to the pool.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			result := gormDB.Model(&models.User{}).
				Where("username = ? AND is_active = ?", args[0], true).
				Update("is_active", false)
			if result.Error != nil {
				return fmt.Errorf("deactivate %q: %w", args[0], result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("no active account %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gramchat.yaml", "path to config file")
	return cmd
}
