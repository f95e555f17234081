// Package database opens the gorm connection for the configured backend.
package database

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/config"
)

// Open connects to the configured database. SQLite serves development and
// tests; MySQL is the production backend.
func Open(cfg config.Database) (*gorm.DB, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "clickgate.db"
		}
		return gorm.Open(sqlite.Open(path), &gorm.Config{})
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
