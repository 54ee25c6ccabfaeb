package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/miro2468/MoodTracker-Bot/internal/bot"
	"github.com/miro2468/MoodTracker-Bot/internal/config"
	"github.com/miro2468/MoodTracker-Bot/internal/repository"
	"github.com/miro2468/MoodTracker-Bot/internal/scheduler"
	"github.com/miro2468/MoodTracker-Bot/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	entryRepo := repository.NewEntryRepository(db)
	tagRepo := repository.NewTagRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	moodSvc := service.NewMoodService(entryRepo, tagRepo, settingsRepo)
	analyticsSvc := service.NewAnalyticsService(entryRepo, settingsRepo)
	reminderSvc := service.NewReminderService(entryRepo, settingsRepo)
	exportSvc := service.NewExportService(entryRepo)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, settingsRepo, moodSvc, analyticsSvc, exportSvc)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	reminders := scheduler.New(settingsRepo, entryRepo, reminderSvc, telegramBot, cfg.NotifyTimeout, cfg.AdaptiveThresholdDays)
	telegramBot.AttachScheduler(reminders)

	if err := reminders.LoadAll(ctx); err != nil {
		log.Printf("load reminders: %v", err)
	}
	reminders.Start()
	defer reminders.Stop()

	log.Println("MoodTracker bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
