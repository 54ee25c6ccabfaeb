package service

import (
	"context"
	"log"
	"time"

	"github.com/miro2468/MoodTracker-Bot/internal/analytics"
	"github.com/miro2468/MoodTracker-Bot/internal/model"
	"github.com/miro2468/MoodTracker-Bot/internal/repository"
)

// AnalyticsService is the read-only facade over the analytics engine:
// it queries the store and hands ordered slices to the pure functions.
// "Today" is always the owner's local calendar day, the same rule
// entries are dated by.
type AnalyticsService struct {
	entryRepo    *repository.EntryRepository
	settingsRepo *repository.SettingsRepository
	now          func() time.Time
}

func NewAnalyticsService(entryRepo *repository.EntryRepository, settingsRepo *repository.SettingsRepository) *AnalyticsService {
	return &AnalyticsService{entryRepo: entryRepo, settingsRepo: settingsRepo, now: time.Now}
}

// PeriodRange maps a period keyword to an inclusive date range ending
// on the user's local today. Unknown periods default to a week.
func (s *AnalyticsService) PeriodRange(ctx context.Context, user *model.User, period string) (start, end time.Time) {
	end = s.userNow(ctx, user.ID)
	days := 7
	switch period {
	case "month":
		days = 30
	case "quarter":
		days = 90
	case "year":
		days = 365
	}
	return end.AddDate(0, 0, -days), end
}

// Stats aggregates the user's mood over [start, end].
func (s *AnalyticsService) Stats(ctx context.Context, user *model.User, start, end time.Time) (analytics.Stats, error) {
	entries, err := s.entryRepo.ListByUser(ctx, user.ID, start, end, 0)
	if err != nil {
		return analytics.Stats{}, err
	}
	tagged, err := s.entryRepo.ListTagged(ctx, user.ID, start, end)
	if err != nil {
		return analytics.Stats{}, err
	}
	return analytics.ComputeStats(entries, tagged, start, end)
}

// Streak counts consecutive trailing days with at least one entry.
func (s *AnalyticsService) Streak(ctx context.Context, user *model.User) (int, error) {
	entries, err := s.entryRepo.ListByUser(ctx, user.ID, time.Time{}, time.Time{}, 0)
	if err != nil {
		return 0, err
	}
	return analytics.ComputeStreak(entries, s.userNow(ctx, user.ID)), nil
}

// Patterns surfaces tag/mood correlations over the user's full history.
func (s *AnalyticsService) Patterns(ctx context.Context, user *model.User, minEntries int) ([]analytics.Pattern, error) {
	entries, err := s.entryRepo.ListByUser(ctx, user.ID, time.Time{}, time.Time{}, 0)
	if err != nil {
		return nil, err
	}
	tagged, err := s.entryRepo.ListTagged(ctx, user.ID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return analytics.ComputePatterns(entries, tagged, minEntries), nil
}

// WeekdayStats groups the user's history by weekday, Monday first.
func (s *AnalyticsService) WeekdayStats(ctx context.Context, user *model.User) ([7]analytics.WeekdayStat, error) {
	entries, err := s.entryRepo.ListByUser(ctx, user.ID, time.Time{}, time.Time{}, 0)
	if err != nil {
		return [7]analytics.WeekdayStat{}, err
	}
	return analytics.ComputeWeekdayStats(entries), nil
}

// Insights bundles trend, best weekday, streak and totals; callers get
// analytics.ErrInsufficientData under 7 entries.
func (s *AnalyticsService) Insights(ctx context.Context, user *model.User) (analytics.Insights, error) {
	entries, err := s.entryRepo.ListByUser(ctx, user.ID, time.Time{}, time.Time{}, 0)
	if err != nil {
		return analytics.Insights{}, err
	}
	return analytics.GenerateInsights(entries, s.userNow(ctx, user.ID))
}

// userNow is the current wall clock shifted into the user's offset.
func (s *AnalyticsService) userNow(ctx context.Context, userID uint) time.Time {
	settings, err := s.settingsRepo.Get(ctx, userID)
	if err != nil {
		log.Printf("settings for analytics user=%d: %v", userID, err)
		return s.now().UTC()
	}
	return localTime(s.now(), settings.TZOffsetMin)
}
