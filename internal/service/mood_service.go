package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/miro2468/MoodTracker-Bot/internal/config"
	"github.com/miro2468/MoodTracker-Bot/internal/model"
	"github.com/miro2468/MoodTracker-Bot/internal/repository"
)

// MoodInput represents data required to record a mood entry.
type MoodInput struct {
	Score     int
	DiaryText string
	TagIDs    []uint
	EntryDate time.Time // zero means today
}

// MoodService wraps mood logging and tag management.
type MoodService struct {
	entryRepo    *repository.EntryRepository
	tagRepo      *repository.TagRepository
	settingsRepo *repository.SettingsRepository
	now          func() time.Time
}

func NewMoodService(entryRepo *repository.EntryRepository, tagRepo *repository.TagRepository, settingsRepo *repository.SettingsRepository) *MoodService {
	return &MoodService{entryRepo: entryRepo, tagRepo: tagRepo, settingsRepo: settingsRepo, now: time.Now}
}

// LogMood validates and stores a mood entry. Scores outside [1,5] and
// over-long notes are rejected here so they never reach the store.
func (s *MoodService) LogMood(ctx context.Context, user *model.User, input MoodInput) (*model.MoodEntry, error) {
	if input.Score < 1 || input.Score > 5 {
		return nil, fmt.Errorf("mood score must be between 1 and 5, got %d", input.Score)
	}
	text := strings.TrimSpace(input.DiaryText)
	if len([]rune(text)) > config.DiaryTextLimit {
		return nil, fmt.Errorf("diary text exceeds %d characters", config.DiaryTextLimit)
	}

	entryDate := input.EntryDate
	if entryDate.IsZero() {
		// Entries belong to the owner's calendar day, not the UTC
		// one, so the evening reminder check sees the same date a
		// late-night log was filed under.
		entryDate = localTime(s.now(), s.ownerOffset(ctx, user.ID))
	}
	// Stored at midnight UTC so per-day lookups compare equal.
	y, m, d := entryDate.Date()
	entryDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	entry := model.MoodEntry{
		UserID:    user.ID,
		MoodScore: input.Score,
		DiaryText: text,
		EntryDate: entryDate,
	}

	if err := s.entryRepo.Create(ctx, &entry, input.TagIDs); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListTags returns all tags available to the user.
func (s *MoodService) ListTags(ctx context.Context, user *model.User) ([]model.Tag, error) {
	return s.tagRepo.ListForUser(ctx, user.ID)
}

// CreateTag adds a custom tag, enforcing the per-user cap.
func (s *MoodService) CreateTag(ctx context.Context, user *model.User, name, category string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tag name is required")
	}

	count, err := s.tagRepo.CountCustom(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if count >= config.MaxCustomTags {
		return nil, fmt.Errorf("custom tag limit of %d reached", config.MaxCustomTags)
	}

	if category == "" {
		category = "Другое"
	}
	return s.tagRepo.CreateCustom(ctx, user.ID, name, category)
}

// DeleteTag removes the user's own custom tag by name.
func (s *MoodService) DeleteTag(ctx context.Context, user *model.User, name string) error {
	tag, err := s.tagRepo.FindByName(ctx, user.ID, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	return s.tagRepo.DeleteCustom(ctx, user.ID, tag.ID)
}

// RecentEntries returns the user's latest entries with tags preloaded.
func (s *MoodService) RecentEntries(ctx context.Context, user *model.User, limit int) ([]model.MoodEntry, error) {
	return s.entryRepo.ListWithTags(ctx, user.ID, time.Time{}, time.Time{}, limit)
}

// EntriesBetween returns entries within [start, end] with tags, for the
// diary view.
func (s *MoodService) EntriesBetween(ctx context.Context, user *model.User, start, end time.Time, limit int) ([]model.MoodEntry, error) {
	return s.entryRepo.ListWithTags(ctx, user.ID, start, end, limit)
}

// SearchEntries finds entries whose note mentions the query.
func (s *MoodService) SearchEntries(ctx context.Context, user *model.User, query string, limit int) ([]model.MoodEntry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	return s.entryRepo.SearchText(ctx, user.ID, query, limit)
}

// ownerOffset reads the user's timezone offset; a lookup failure falls
// back to UTC rather than blocking the write.
func (s *MoodService) ownerOffset(ctx context.Context, userID uint) int {
	settings, err := s.settingsRepo.Get(ctx, userID)
	if err != nil {
		log.Printf("settings for entry date user=%d: %v", userID, err)
		return 0
	}
	return settings.TZOffsetMin
}

// localTime shifts a wall-clock instant into a fixed minute offset.
func localTime(t time.Time, offsetMin int) time.Time {
	return t.UTC().Add(time.Duration(offsetMin) * time.Minute)
}
