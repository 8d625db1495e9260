package store

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config holds the MySQL connection parameters the worker, healer and
// room coordinator binaries all build the same way from environment
// variables.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// Open connects to MySQL and auto-migrates the judge schema. It is the
// production counterpart to OpenSQLite, used by tests.
func Open(cfg Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	log.Printf("[STORE] Connecting to MySQL at %s:%s...", cfg.Host, cfg.Port)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := migrate(db); err != nil {
		return nil, err
	}

	log.Printf("[STORE] ✓ Connected to MySQL and migrated schema")
	return db, nil
}

// OpenSQLite opens an in-memory (or file-backed, for path != ":memory:")
// sqlite database. Used by package tests so the claim/conditional-update
// logic can be exercised without a running MySQL server.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Submission{},
		&Match{},
		&MatchParticipant{},
		&Tournament{},
		&TournamentParticipant{},
		&Room{},
		&RoomPlayer{},
		&Event{},
	)
}
