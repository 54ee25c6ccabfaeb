package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/miro2468/MoodTracker-Bot/internal/analytics"
	"github.com/miro2468/MoodTracker-Bot/internal/repository"
)

// ReminderService builds the texts the scheduler sends. It is the
// scheduler's MessageSource.
type ReminderService struct {
	entryRepo    *repository.EntryRepository
	settingsRepo *repository.SettingsRepository
}

func NewReminderService(entryRepo *repository.EntryRepository, settingsRepo *repository.SettingsRepository) *ReminderService {
	return &ReminderService{entryRepo: entryRepo, settingsRepo: settingsRepo}
}

// DailyReminderText is the message for the regular evening reminder;
// users with an unbroken streak get it acknowledged.
func (s *ReminderService) DailyReminderText(ctx context.Context, userID uint) string {
	streak := 0
	entries, err := s.entryRepo.ListByUser(ctx, userID, time.Time{}, time.Time{}, 0)
	if err != nil {
		log.Printf("load entries for reminder text user=%d: %v", userID, err)
	} else {
		// The reminder fires before today's entry exists, so the
		// streak that matters ends on the user's local yesterday.
		streak = analytics.ComputeStreak(entries, s.localYesterday(ctx, userID))
	}
	return motivationalText(streak)
}

func (s *ReminderService) localYesterday(ctx context.Context, userID uint) time.Time {
	now := time.Now().UTC()
	if settings, err := s.settingsRepo.Get(ctx, userID); err == nil {
		now = localTime(now, settings.TZOffsetMin)
	} else {
		log.Printf("settings for reminder text user=%d: %v", userID, err)
	}
	return now.AddDate(0, 0, -1)
}

// AdaptiveReminderText is the message for users who went quiet.
// idleDays 0 means the user never logged at all.
func (s *ReminderService) AdaptiveReminderText(_ context.Context, _ uint, idleDays int) string {
	if idleDays == 0 {
		return "🌟 Добро пожаловать! Запишите своё первое настроение командой /mood."
	}
	return fmt.Sprintf("💭 Вы не записывали настроение уже %d дн. Как ваши дела? Загляните: /mood", idleDays)
}

// motivationalText picks a nudge matched to the current streak.
func motivationalText(streak int) string {
	switch {
	case streak == 0:
		return "🌟 Не забудьте записать своё настроение сегодня! /mood"
	case streak < 3:
		return fmt.Sprintf("🔥 У вас уже %d дн. подряд! Продолжайте: /mood", streak)
	case streak < 7:
		return fmt.Sprintf("🚀 %d дн. подряд! Вы на правильном пути. Запишите сегодняшнее настроение: /mood", streak)
	default:
		return fmt.Sprintf("🏆 Серия из %d дн.! Не прерывайте её — запишите настроение: /mood", streak)
	}
}
