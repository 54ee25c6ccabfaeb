package model

import "time"

// UserSettings keeps per-user reminder preferences. ReminderTime is a
// local "HH:MM" string interpreted against TZOffsetMin, a fixed UTC
// offset in minutes (e.g. 180 for UTC+3).
type UserSettings struct {
	UserID           uint   `gorm:"primaryKey"`
	DailyReminder    bool   `gorm:"default:true"`
	ReminderTime     string `gorm:"default:'21:00'"`
	AdaptiveReminder bool   `gorm:"default:false"`
	TZOffsetMin      int    `gorm:"default:180"`
	Language         string `gorm:"default:'ru'"`
	UpdatedAt        time.Time
}
