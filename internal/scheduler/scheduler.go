package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/miro2468/MoodTracker-Bot/internal/model"
)

// SettingsSource exposes persisted reminder preferences.
type SettingsSource interface {
	Get(ctx context.Context, userID uint) (*model.UserSettings, error)
	ListReminderEnabled(ctx context.Context) ([]model.UserSettings, error)
}

// EntryChecker answers the questions a firing needs from the entry store.
type EntryChecker interface {
	HasEntryOn(ctx context.Context, userID uint, day time.Time) (bool, error)
	LastEntryDate(ctx context.Context, userID uint) (time.Time, bool, error)
}

// MessageSource builds the reminder text for a user.
type MessageSource interface {
	DailyReminderText(ctx context.Context, userID uint) string
	AdaptiveReminderText(ctx context.Context, userID uint, idleDays int) string
}

// Notifier delivers a message to a user. Calls are bounded by the
// scheduler's notify timeout.
type Notifier interface {
	Notify(ctx context.Context, userID uint, text string) error
}

// Info describes a user's reminder state.
type Info struct {
	Active   bool
	NextFire time.Time
}

// Scheduler turns per-user reminder preferences into recurring daily
// firings. It owns a cron loop and a Registry; preference changes
// mutate the registry while the loop ticks independently.
type Scheduler struct {
	cron     *cron.Cron
	registry *Registry

	settings SettingsSource
	entries  EntryChecker
	messages MessageSource
	notifier Notifier

	notifyTimeout time.Duration
	adaptiveDays  int
	now           func() time.Time

	mu      sync.Mutex // serializes Upsert/Cancel/Start/Stop
	started bool
}

func New(settings SettingsSource, entries EntryChecker, messages MessageSource, notifier Notifier, notifyTimeout time.Duration, adaptiveDays int) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithLocation(time.UTC), cron.WithSeconds()),
		registry:      NewRegistry(),
		settings:      settings,
		entries:       entries,
		messages:      messages,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		adaptiveDays:  adaptiveDays,
		now:           time.Now,
	}
}

// Start activates the trigger loop. Calling it twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
	log.Println("[info] reminder scheduler started")
}

// Stop deactivates the loop and waits for in-flight firings to finish.
// Safe to call without a prior Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	drained := s.cron.Stop()
	s.mu.Unlock()

	// Wait outside the mutex: an in-flight firing may need it to
	// self-cancel when the user disabled the reminder mid-flight.
	<-drained.Done()
	log.Println("[info] reminder scheduler stopped")
}

// Upsert installs or replaces the user's daily reminder at the given
// local "HH:MM". The old schedule is removed before the new one is
// added, under the scheduler mutex, so the old and new time can never
// both fire.
func (s *Scheduler) Upsert(userID uint, fireTime string, tzOffsetMin int, adaptive bool) (*Job, error) {
	hour, minute, err := ParseFireTime(fireTime)
	if err != nil {
		return nil, err
	}

	job := &Job{
		UserID:      userID,
		FireHour:    hour,
		FireMinute:  minute,
		TZOffsetMin: tzOffsetMin,
		Adaptive:    adaptive,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.registry.Get(userID); ok {
		s.cron.Remove(old.entryID)
	}

	entryID, err := s.cron.AddFunc(dailySpec(hour, minute, tzOffsetMin), func() { s.fire(userID) })
	if err != nil {
		// The spec string is built from validated parts, so a parse
		// failure is a programming error. The old schedule is already
		// gone at this point; crash instead of quietly leaving the
		// user without a reminder.
		log.Panicf("schedule reminder for user %d: %v", userID, err)
	}
	job.entryID = entryID
	s.registry.Put(job)

	log.Printf("[info] reminder set user=%d time=%02d:%02d offset=%+dmin adaptive=%t", userID, hour, minute, tzOffsetMin, adaptive)
	return job, nil
}

// Cancel removes the user's reminder; absent jobs are a no-op.
func (s *Scheduler) Cancel(userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.registry.Remove(userID); ok {
		s.cron.Remove(job.entryID)
		log.Printf("[info] reminder cancelled user=%d", userID)
	}
}

// Info reports whether the user has an active reminder and when it
// fires next.
func (s *Scheduler) Info(userID uint) Info {
	job, ok := s.registry.Get(userID)
	if !ok {
		return Info{}
	}
	return Info{Active: true, NextFire: job.NextFire(s.now())}
}

// ActiveCount reports how many reminders are scheduled.
func (s *Scheduler) ActiveCount() int {
	return s.registry.Count()
}

// LoadAll installs reminders for every user with the preference
// enabled. Called at startup so jobs survive a process restart.
func (s *Scheduler) LoadAll(ctx context.Context) error {
	all, err := s.settings.ListReminderEnabled(ctx)
	if err != nil {
		return fmt.Errorf("load reminder settings: %w", err)
	}
	for _, st := range all {
		if _, err := s.Upsert(st.UserID, st.ReminderTime, st.TZOffsetMin, st.AdaptiveReminder); err != nil {
			log.Printf("load reminder for user %d: %v", st.UserID, err)
		}
	}
	log.Printf("[info] loaded %d reminders", s.registry.Count())
	return nil
}

// fire is the per-job callback. It re-checks the stored preference,
// suppresses the reminder when the user already logged today (or, for
// adaptive jobs, has not been away long enough) and otherwise calls
// the notifier. Collaborator failures are logged and end this firing
// only.
func (s *Scheduler) fire(userID uint) {
	if !s.registry.BeginFire(userID) {
		return
	}
	defer s.registry.EndFire(userID)

	job, ok := s.registry.Get(userID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		log.Printf("reminder settings for user %d: %v", userID, err)
		return
	}
	if !settings.DailyReminder {
		// Disabled since scheduling: drop the job.
		s.Cancel(userID)
		return
	}

	var text string
	if job.Adaptive {
		text, ok = s.adaptiveText(ctx, job)
	} else {
		text, ok = s.dailyText(ctx, job)
	}
	if !ok {
		return
	}

	if err := s.notifier.Notify(ctx, userID, text); err != nil {
		log.Printf("send reminder to user %d: %v", userID, err)
	}
}

func (s *Scheduler) dailyText(ctx context.Context, job *Job) (string, bool) {
	logged, err := s.entries.HasEntryOn(ctx, job.UserID, s.userToday(job))
	if err != nil {
		log.Printf("check today entry for user %d: %v", job.UserID, err)
		return "", false
	}
	if logged {
		// Already recorded today, no double reminder.
		return "", false
	}
	return s.messages.DailyReminderText(ctx, job.UserID), true
}

func (s *Scheduler) adaptiveText(ctx context.Context, job *Job) (string, bool) {
	last, ok, err := s.entries.LastEntryDate(ctx, job.UserID)
	if err != nil {
		log.Printf("check last entry for user %d: %v", job.UserID, err)
		return "", false
	}
	if !ok {
		// Never logged: nudge to start.
		return s.messages.AdaptiveReminderText(ctx, job.UserID, 0), true
	}
	idle := int(s.userToday(job).Sub(dateOnly(last)).Hours() / 24)
	if idle <= s.adaptiveDays {
		return "", false
	}
	return s.messages.AdaptiveReminderText(ctx, job.UserID, idle), true
}

// userToday is the current calendar date in the job owner's offset.
func (s *Scheduler) userToday(job *Job) time.Time {
	return dateOnly(s.now().UTC().Add(time.Duration(job.TZOffsetMin) * time.Minute))
}

// ParseFireTime validates an "HH:MM" string.
func ParseFireTime(raw string) (hour, minute int, err error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour, minute, nil
}

// ParseUTCOffset converts a "UTC+3" / "UTC-05:30" style string to an
// offset in minutes.
func ParseUTCOffset(raw string) (int, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(raw))
	trimmed = strings.TrimPrefix(trimmed, "UTC")
	if trimmed == "" {
		return 0, nil
	}

	sign := 1
	switch trimmed[0] {
	case '+':
		trimmed = trimmed[1:]
	case '-':
		sign = -1
		trimmed = trimmed[1:]
	}

	hours := trimmed
	minutes := "0"
	if h, m, found := strings.Cut(trimmed, ":"); found {
		hours, minutes = h, m
	}

	hv, err := strconv.Atoi(hours)
	if err != nil || hv < 0 || hv > 14 {
		return 0, fmt.Errorf("invalid UTC offset %q", raw)
	}
	mv, err := strconv.Atoi(minutes)
	if err != nil || mv < 0 || mv > 59 {
		return 0, fmt.Errorf("invalid UTC offset %q", raw)
	}
	return sign * (hv*60 + mv), nil
}

// dailySpec converts a user-local HH:MM plus offset into a UTC cron
// spec (second minute hour dom month dow). Crossing midnight shifts
// the UTC day but not the once-per-day cadence.
func dailySpec(hour, minute, tzOffsetMin int) string {
	total := hour*60 + minute - tzOffsetMin
	total %= 24 * 60
	if total < 0 {
		total += 24 * 60
	}
	return fmt.Sprintf("0 %d %d * * *", total%60, total/60)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
