package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gramchat/gramchat/internal/auth"
	"github.com/gramchat/gramchat/internal/config"
	"github.com/gramchat/gramchat/internal/db"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var (
		configPath    string
		adminUser     string
		adminPassword string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Migrate the database and seed the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath, adminUser, adminPassword)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gramchat.yaml", "path to config file")
	cmd.Flags().StringVar(&adminUser, "admin-user", "admin", "username for the seeded admin account")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password for the seeded admin account")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath, adminUser, adminPassword string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if adminPassword == "" {
		fmt.Fprintln(out, "No --admin-password given, skipping admin seed")
		return nil
	}

	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	admin, err := db.SeedAdmin(gormDB, adminUser, hash)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Admin account %q ready (id %s)\n", admin.Username, admin.ID)
	return nil
}

// connectFromConfig loads the config and opens the database. Shared by the
// management subcommands.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}
