package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/miro2468/MoodTracker-Bot/internal/config"
	"github.com/miro2468/MoodTracker-Bot/internal/model"
)

// SettingsRepository persists per-user reminder preferences. It is the
// scheduler's SettingsSource.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the user's settings, falling back to defaults when the
// row is missing.
func (r *SettingsRepository) Get(ctx context.Context, userID uint) (*model.UserSettings, error) {
	var settings model.UserSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	switch {
	case err == nil:
		return &settings, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &model.UserSettings{
			UserID:        userID,
			DailyReminder: true,
			ReminderTime:  config.DefaultReminderTime,
			TZOffsetMin:   config.DefaultTZOffsetMinutes,
			Language:      "ru",
		}, nil
	default:
		return nil, fmt.Errorf("find settings: %w", err)
	}
}

// Save upserts the user's settings row.
func (r *SettingsRepository) Save(ctx context.Context, settings *model.UserSettings) error {
	if err := r.db.WithContext(ctx).Save(settings).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// ListReminderEnabled returns the settings of every user with the
// daily reminder on, for scheduler reload at startup.
func (r *SettingsRepository) ListReminderEnabled(ctx context.Context) ([]model.UserSettings, error) {
	var all []model.UserSettings
	err := r.db.WithContext(ctx).Where("daily_reminder = ?", true).Find(&all).Error
	if err != nil {
		return nil, fmt.Errorf("list reminder settings: %w", err)
	}
	return all, nil
}
