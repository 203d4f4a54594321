package database

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/tcg-portfolio/internal/models"
)

var DB *gorm.DB

// IsPostgresDSN reports whether dsn should be opened with the postgres driver.
// Anything else is treated as a sqlite file path.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// Open connects to dsn and migrates the schema without touching the global DB
func Open(dsn string, level logger.LogLevel) (*gorm.DB, error) {
	dialector := sqlite.Open(dsn)
	driver := "sqlite"
	if IsPostgresDSN(dsn) {
		dialector = postgres.Open(dsn)
		driver = "postgres"
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	log.Printf("Database connected successfully (%s)", driver)

	if err := cleanupDuplicatePriceRecords(db); err != nil {
		return nil, fmt.Errorf("cleanup duplicate price records: %w", err)
	}

	err = db.AutoMigrate(
		&models.Card{},
		&models.CardPriceRecord{},
		&models.CollectionItem{},
		&models.CollectionValueSnapshot{},
	)
	if err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("data migrations: %w", err)
	}

	log.Println("Database migration completed")
	return db, nil
}

// Initialize opens dsn and stores the connection in the package-level DB
func Initialize(dsn string, level logger.LogLevel) error {
	db, err := Open(dsn, level)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// ParseLogLevel maps a config string to a gorm log level, defaulting to warn
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func GetDB() *gorm.DB {
	return DB
}
