package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/miro2468/MoodTracker-Bot/internal/config"
	"github.com/miro2468/MoodTracker-Bot/internal/model"
)

// NewDB opens a SQLite database, runs migrations and seeds the
// predefined tags.
func NewDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "mood_tracker.db"
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&model.User{}, &model.Tag{}, &model.MoodEntry{}, &model.UserSettings{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	if err := seedPredefinedTags(db); err != nil {
		return nil, fmt.Errorf("seed tags: %w", err)
	}

	return db, nil
}

// seedPredefinedTags inserts the built-in tag set, skipping names that
// already exist so restarts are harmless.
func seedPredefinedTags(db *gorm.DB) error {
	for category, names := range config.PredefinedTags {
		for _, name := range names {
			tag := model.Tag{Name: name, Category: category, IsPredefined: true}
			err := db.Where("name = ?", name).FirstOrCreate(&tag).Error
			if err != nil {
				return fmt.Errorf("seed tag %q: %w", name, err)
			}
		}
	}
	return nil
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	// Ignore DSNs with explicit mode=memory or network.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	// Strip file: prefix if present.
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
