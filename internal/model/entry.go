package model

import "time"

// MoodEntry is a single mood record for a calendar day. Entries are
// append-only; the score is always in [1,5] (enforced at the service
// boundary and by a DB check).
type MoodEntry struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index"`
	MoodScore int  `gorm:"check:mood_score >= 1 AND mood_score <= 5"`
	DiaryText string
	EntryDate time.Time `gorm:"index;type:date"`
	CreatedAt time.Time
	Tags      []Tag `gorm:"many2many:mood_tags"`
}

// Day returns the entry's calendar date truncated to midnight UTC, so
// entries can be compared and grouped by day.
func (e MoodEntry) Day() time.Time {
	y, m, d := e.EntryDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TaggedEntry pairs an entry with one of its tags, as returned by the
// entry/tag join. An entry with N tags appears N times.
type TaggedEntry struct {
	Entry MoodEntry
	Tag   Tag
}
