package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	// NotifyTimeout bounds a single reminder delivery so a slow
	// transport cannot stall the trigger loop.
	NotifyTimeout time.Duration
	// AdaptiveThresholdDays is how many silent days trigger an
	// adaptive reminder.
	AdaptiveThresholdDays int
}

// Limits and defaults shared across the bot.
const (
	DiaryTextLimit      = 500
	MaxCustomTags       = 50
	DefaultReminderTime = "21:00"
	// Moscow time, the original audience default.
	DefaultTZOffsetMinutes = 3 * 60
)

// MoodNames maps a score to its Russian label.
var MoodNames = map[int]string{
	1: "Очень плохо",
	2: "Плохо",
	3: "Нейтрально",
	4: "Хорошо",
	5: "Отлично",
}

// MoodEmojis maps a score to its emoji.
var MoodEmojis = map[int]string{
	1: "😢",
	2: "😕",
	3: "😐",
	4: "🙂",
	5: "😊",
}

// PredefinedTags are seeded into the database on first start, grouped
// by category.
var PredefinedTags = map[string][]string{
	"Работа/Учеба": {"💼 работа", "📚 учеба", "🎯 проект", "⏰ дедлайн"},
	"Отношения":    {"❤️ семья", "👫 друзья", "💕 любовь", "😤 конфликт"},
	"Здоровье":     {"💊 болезнь", "🏃 спорт", "😴 сон", "🍎 питание"},
	"Досуг":        {"🎬 кино", "📖 чтение", "🎵 музыка", "🎮 игры"},
	"Погода":       {"☀️ солнце", "🌧️ дождь", "❄️ снег", "🌈 радуга"},
	"События":      {"🎉 праздник", "🎂 день рождения", "✈️ путешествие"},
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:         strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		NotifyTimeout:         parseSeconds(strings.TrimSpace(os.Getenv("NOTIFY_TIMEOUT_SECONDS"))),
		AdaptiveThresholdDays: parsePositiveInt(strings.TrimSpace(os.Getenv("ADAPTIVE_THRESHOLD_DAYS"))),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "mood_tracker.db"
	}

	if cfg.NotifyTimeout == 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}

	if cfg.AdaptiveThresholdDays == 0 {
		cfg.AdaptiveThresholdDays = 3
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func parseSeconds(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func parsePositiveInt(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}
