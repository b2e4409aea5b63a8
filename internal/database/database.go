package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fluhartyml/NightGardDDNS/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// registers the cgo-free "sqlite" driver used by the sqlite-pure type
	_ "modernc.org/sqlite"
)

var DB *gorm.DB

// DefaultDatabaseConfig returns the fallback used when the configured database cannot be opened.
func DefaultDatabaseConfig() types.DatabaseConfig {
	return types.DatabaseConfig{
		Type:             "sqlite",
		Database:         "nightgard.db",
		LogRetentionDays: 30,
	}
}

// Open connects to the configured database without touching the package globals.
func Open(config types.DatabaseConfig) (*gorm.DB, error) {
	dsn := config.Database
	if dsn == "" {
		dsn = "nightgard.db"
	}
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	var dialector gorm.Dialector
	switch config.Type {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "sqlite-pure":
		dialector = sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	logLevel := logger.Error
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// InitDatabase opens the database and stores it in DB.
func InitDatabase(config types.DatabaseConfig) error {
	db, err := Open(config)
	if err != nil {
		return err
	}
	DB = db
	log.Printf("Database connected successfully (type: %s)", config.Type)
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// Migrate creates or updates every table on db.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	if err := db.AutoMigrate(&Setting{}, &UpdateLog{}, &UserActivity{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// AutoMigrate migrates the global DB.
func AutoMigrate() error {
	if err := Migrate(DB); err != nil {
		return err
	}
	log.Println("Database migration completed successfully")
	return nil
}

func CloseDB() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
