// Package db provides GORM connection and schema management.
package db

import (
	"fmt"

	"github.com/gramchat/gramchat/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN from database settings.
func DSN(cfg config.DatabaseConfig) string {
	cred := cfg.User
	if cfg.Password != "" {
		cred += ":" + cfg.Password
	}
	if cred == "" {
		cred = "root"
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4", cred, cfg.Host, cfg.Port, cfg.Name)
}

// Connect opens a GORM connection using the configured driver.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var dial gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dial = mysql.Open(DSN(cfg))
	case "sqlite":
		dial = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dial, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("db: connect (%s): %w", cfg.Driver, err)
	}
	return db, nil
}
