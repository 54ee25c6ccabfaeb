package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/miro2468/MoodTracker-Bot/internal/model"
)

// EntryRepository handles mood entries and their tag associations.
type EntryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create appends a mood entry and links the given tags.
func (r *EntryRepository) Create(ctx context.Context, entry *model.MoodEntry, tagIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("create entry: %w", err)
		}
		if len(tagIDs) == 0 {
			return nil
		}
		var tags []model.Tag
		if err := tx.Where("id IN ?", tagIDs).Find(&tags).Error; err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		if err := tx.Model(entry).Association("Tags").Append(tags); err != nil {
			return fmt.Errorf("link tags: %w", err)
		}
		return nil
	})
}

// ListByUser returns entries ordered by date then creation time, both
// descending. Zero start/end mean an open bound; limit 0 means no limit.
func (r *EntryRepository) ListByUser(ctx context.Context, userID uint, start, end time.Time, limit int) ([]model.MoodEntry, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !start.IsZero() {
		q = q.Where("entry_date >= ?", dateOnly(start))
	}
	if !end.IsZero() {
		q = q.Where("entry_date <= ?", dateOnly(end))
	}
	q = q.Order("entry_date DESC, created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entries []model.MoodEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// ListWithTags preloads tag associations, for display and export. Zero
// start/end mean an open bound; limit 0 means no limit.
func (r *EntryRepository) ListWithTags(ctx context.Context, userID uint, start, end time.Time, limit int) ([]model.MoodEntry, error) {
	q := r.db.WithContext(ctx).Preload("Tags").Where("user_id = ?", userID)
	if !start.IsZero() {
		q = q.Where("entry_date >= ?", dateOnly(start))
	}
	if !end.IsZero() {
		q = q.Where("entry_date <= ?", dateOnly(end))
	}
	q = q.Order("entry_date DESC, created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entries []model.MoodEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries with tags: %w", err)
	}
	return entries, nil
}

// SearchText returns entries whose note contains the query, newest
// first.
func (r *EntryRepository) SearchText(ctx context.Context, userID uint, query string, limit int) ([]model.MoodEntry, error) {
	q := r.db.WithContext(ctx).Preload("Tags").
		Where("user_id = ? AND diary_text LIKE ?", userID, "%"+query+"%").
		Order("entry_date DESC, created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entries []model.MoodEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	return entries, nil
}

// ListTagged returns (entry, tag) pairs for correlation analysis; an
// entry appears once per tag it carries.
func (r *EntryRepository) ListTagged(ctx context.Context, userID uint, start, end time.Time) ([]model.TaggedEntry, error) {
	entries, err := r.ListWithTags(ctx, userID, start, end, 0)
	if err != nil {
		return nil, err
	}

	var pairs []model.TaggedEntry
	for _, e := range entries {
		for _, tag := range e.Tags {
			entry := e
			entry.Tags = nil
			pairs = append(pairs, model.TaggedEntry{Entry: entry, Tag: tag})
		}
	}
	return pairs, nil
}

// HasEntryOn reports whether the user logged on the given calendar day.
func (r *EntryRepository) HasEntryOn(ctx context.Context, userID uint, day time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.MoodEntry{}).
		Where("user_id = ? AND entry_date = ?", userID, dateOnly(day)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count today entries: %w", err)
	}
	return count > 0, nil
}

// LastEntryDate returns the date of the most recent entry; ok is false
// when the user never logged.
func (r *EntryRepository) LastEntryDate(ctx context.Context, userID uint) (time.Time, bool, error) {
	entry, err := r.Latest(ctx, userID)
	switch {
	case err == nil:
		return entry.Day(), true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return time.Time{}, false, nil
	default:
		return time.Time{}, false, err
	}
}

// Latest returns the most recent entry.
func (r *EntryRepository) Latest(ctx context.Context, userID uint) (*model.MoodEntry, error) {
	var entry model.MoodEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("entry_date DESC, created_at DESC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
