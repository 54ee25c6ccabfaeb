package service

import (
	"context"
	"testing"
	"time"

	"github.com/miro2468/MoodTracker-Bot/internal/model"
	"github.com/miro2468/MoodTracker-Bot/internal/repository"
)

func newTestMoodService(t *testing.T) (*MoodService, *repository.EntryRepository, *repository.SettingsRepository, *model.User) {
	t.Helper()
	db, err := repository.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	users := repository.NewUserRepository(db)
	entries := repository.NewEntryRepository(db)
	tags := repository.NewTagRepository(db)
	settings := repository.NewSettingsRepository(db)

	user, err := users.UpsertFromTelegram(context.Background(), 100500, "Аня", "anya")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	return NewMoodService(entries, tags, settings), entries, settings, user
}

// A user east of UTC logging late in the UTC evening is already on the
// next local day; the entry must carry the local date so the evening
// reminder check finds it.
func TestLogMoodUsesOwnerLocalDate(t *testing.T) {
	svc, entries, settings, user := newTestMoodService(t)
	ctx := context.Background()

	st, err := settings.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	st.TZOffsetMin = 600 // UTC+10
	if err := settings.Save(ctx, st); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	// 23:30 UTC on Aug 29 is 09:30 on Aug 30 for this user.
	svc.now = func() time.Time { return time.Date(2026, 8, 29, 23, 30, 0, 0, time.UTC) }

	entry, err := svc.LogMood(ctx, user, MoodInput{Score: 4})
	if err != nil {
		t.Fatalf("log mood: %v", err)
	}

	localDay := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	if !entry.Day().Equal(localDay) {
		t.Fatalf("expected entry dated %v, got %v", localDay, entry.Day())
	}

	// Same rule the reminder firing applies before notifying.
	logged, err := entries.HasEntryOn(ctx, user.ID, localDay)
	if err != nil {
		t.Fatalf("has entry: %v", err)
	}
	if !logged {
		t.Fatalf("reminder check must see the entry on the local day")
	}
}

func TestLogMoodUTCUserKeepsUTCDate(t *testing.T) {
	svc, _, settings, user := newTestMoodService(t)
	ctx := context.Background()

	st, err := settings.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	st.TZOffsetMin = 0
	if err := settings.Save(ctx, st); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	svc.now = func() time.Time { return time.Date(2026, 8, 29, 23, 30, 0, 0, time.UTC) }

	entry, err := svc.LogMood(ctx, user, MoodInput{Score: 3})
	if err != nil {
		t.Fatalf("log mood: %v", err)
	}
	want := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	if !entry.Day().Equal(want) {
		t.Fatalf("expected entry dated %v, got %v", want, entry.Day())
	}
}
