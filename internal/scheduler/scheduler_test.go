package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/miro2468/MoodTracker-Bot/internal/model"
)

type fakeSettings struct {
	mu       sync.Mutex
	settings map[uint]model.UserSettings
	err      error
}

func (f *fakeSettings) Get(_ context.Context, userID uint) (*model.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	st, ok := f.settings[userID]
	if !ok {
		return nil, errors.New("no settings")
	}
	return &st, nil
}

func (f *fakeSettings) ListReminderEnabled(context.Context) ([]model.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UserSettings
	for _, st := range f.settings {
		if st.DailyReminder {
			out = append(out, st)
		}
	}
	return out, nil
}

type fakeEntries struct {
	loggedToday bool
	lastEntry   time.Time
	hasEntries  bool
	err         error
}

func (f *fakeEntries) HasEntryOn(context.Context, uint, time.Time) (bool, error) {
	return f.loggedToday, f.err
}

func (f *fakeEntries) LastEntryDate(context.Context, uint) (time.Time, bool, error) {
	return f.lastEntry, f.hasEntries, f.err
}

type fakeMessages struct{}

func (fakeMessages) DailyReminderText(context.Context, uint) string {
	return "пора записать настроение"
}

func (fakeMessages) AdaptiveReminderText(_ context.Context, _ uint, idleDays int) string {
	return fmt.Sprintf("вы не записывали %d дн.", idleDays)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, _ uint, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestScheduler(settings *fakeSettings, entries *fakeEntries, notifier *fakeNotifier) *Scheduler {
	if settings == nil {
		settings = &fakeSettings{settings: map[uint]model.UserSettings{}}
	}
	if entries == nil {
		entries = &fakeEntries{}
	}
	if notifier == nil {
		notifier = &fakeNotifier{}
	}
	return New(settings, entries, fakeMessages{}, notifier, time.Second, 3)
}

func TestUpsertReplacesJob(t *testing.T) {
	s := newTestScheduler(nil, nil, nil)
	s.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

	if _, err := s.Upsert(42, "09:00", 0, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := s.Upsert(42, "21:00", 0, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if got := s.ActiveCount(); got != 1 {
		t.Fatalf("expected 1 active job, got %d", got)
	}

	info := s.Info(42)
	if !info.Active {
		t.Fatalf("expected active reminder")
	}
	want := time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC)
	if !info.NextFire.Equal(want) {
		t.Fatalf("expected next fire %v, got %v", want, info.NextFire)
	}
}

func TestUpsertRejectsMalformedTime(t *testing.T) {
	s := newTestScheduler(nil, nil, nil)
	for _, raw := range []string{"", "21", "24:00", "09:60", "9:xx", "09-30"} {
		if _, err := s.Upsert(1, raw, 0, false); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	if got := s.ActiveCount(); got != 0 {
		t.Fatalf("expected no jobs after rejected input, got %d", got)
	}
}

func TestNextFireHonorsOffset(t *testing.T) {
	s := newTestScheduler(nil, nil, nil)
	// 12:00 UTC is 15:00 in UTC+3; a 21:00 local reminder fires at
	// 18:00 UTC the same day.
	s.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

	if _, err := s.Upsert(7, "21:00", 3*60, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	want := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	if got := s.Info(7).NextFire; !got.Equal(want) {
		t.Fatalf("expected next fire %v, got %v", want, got)
	}
}

func TestNextFireRollsToTomorrow(t *testing.T) {
	s := newTestScheduler(nil, nil, nil)
	s.now = func() time.Time { return time.Date(2026, 8, 30, 22, 30, 0, 0, time.UTC) }

	if _, err := s.Upsert(7, "22:00", 0, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	want := time.Date(2026, 8, 31, 22, 0, 0, 0, time.UTC)
	if got := s.Info(7).NextFire; !got.Equal(want) {
		t.Fatalf("expected next fire %v, got %v", want, got)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s := newTestScheduler(nil, nil, nil)

	if _, err := s.Upsert(42, "09:00", 0, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	s.Cancel(42)
	s.Cancel(42) // absent job is a no-op
	s.Cancel(99) // never existed

	if info := s.Info(42); info.Active {
		t.Fatalf("expected inactive after cancel")
	}
	if got := s.ActiveCount(); got != 0 {
		t.Fatalf("expected 0 jobs, got %d", got)
	}
}

func TestConcurrentUpsertsKeepOneJob(t *testing.T) {
	s := newTestScheduler(nil, nil, nil)

	var wg sync.WaitGroup
	times := []string{"09:00", "21:00"}
	for i := 0; i < 20; i++ {
		for _, ft := range times {
			wg.Add(1)
			go func(ft string) {
				defer wg.Done()
				if _, err := s.Upsert(42, ft, 0, false); err != nil {
					t.Errorf("Upsert: %v", err)
				}
			}(ft)
		}
	}
	wg.Wait()

	if got := s.ActiveCount(); got != 1 {
		t.Fatalf("expected exactly 1 job after racing upserts, got %d", got)
	}
	job, ok := s.registry.Get(42)
	if !ok {
		t.Fatalf("expected job for user 42")
	}
	if hm := fmt.Sprintf("%02d:%02d", job.FireHour, job.FireMinute); hm != "09:00" && hm != "21:00" {
		t.Fatalf("job shows neither racing time: %s", hm)
	}
}

func TestFireNotifiesWhenNotLoggedToday(t *testing.T) {
	settings := &fakeSettings{settings: map[uint]model.UserSettings{
		1: {UserID: 1, DailyReminder: true, ReminderTime: "21:00"},
	}}
	notifier := &fakeNotifier{}
	s := newTestScheduler(settings, &fakeEntries{loggedToday: false}, notifier)

	if _, err := s.Upsert(1, "21:00", 0, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	s.fire(1)

	if notifier.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", notifier.count())
	}
}

func TestFireSuppressedWhenAlreadyLogged(t *testing.T) {
	settings := &fakeSettings{settings: map[uint]model.UserSettings{
		1: {UserID: 1, DailyReminder: true, ReminderTime: "21:00"},
	}}
	notifier := &fakeNotifier{}
	s := newTestScheduler(settings, &fakeEntries{loggedToday: true}, notifier)

	if _, err := s.Upsert(1, "21:00", 0, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	s.fire(1)

	if notifier.count() != 0 {
		t.Fatalf("expected no notification, got %d", notifier.count())
	}
}

func TestFireSelfCancelsWhenDisabled(t *testing.T) {
	settings := &fakeSettings{settings: map[uint]model.UserSettings{
		1: {UserID: 1, DailyReminder: false, ReminderTime: "21:00"},
	}}
	notifier := &fakeNotifier{}
	s := newTestScheduler(settings, &fakeEntries{}, notifier)

	if _, err := s.Upsert(1, "21:00", 0, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	s.fire(1)

	if notifier.count() != 0 {
		t.Fatalf("expected no notification, got %d", notifier.count())
	}
	if info := s.Info(1); info.Active {
		t.Fatalf("expected job removed after preference re-check")
	}
}

func TestFireSurvivesNotifierError(t *testing.T) {
	settings := &fakeSettings{settings: map[uint]model.UserSettings{
		1: {UserID: 1, DailyReminder: true, ReminderTime: "21:00"},
	}}
	notifier := &fakeNotifier{err: errors.New("transport down")}
	s := newTestScheduler(settings, &fakeEntries{}, notifier)

	if _, err := s.Upsert(1, "21:00", 0, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	s.fire(1)

	if info := s.Info(1); !info.Active {
		t.Fatalf("notifier failure must not drop the job")
	}
}

func TestAdaptiveFireRespectsThreshold(t *testing.T) {
	now := time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC)
	settings := &fakeSettings{settings: map[uint]model.UserSettings{
		1: {UserID: 1, DailyReminder: true, AdaptiveReminder: true, ReminderTime: "21:00"},
	}}

	t.Run("recent entry suppresses", func(t *testing.T) {
		notifier := &fakeNotifier{}
		entries := &fakeEntries{hasEntries: true, lastEntry: now.AddDate(0, 0, -2)}
		s := newTestScheduler(settings, entries, notifier)
		s.now = func() time.Time { return now }

		if _, err := s.Upsert(1, "21:00", 0, true); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		s.fire(1)
		if notifier.count() != 0 {
			t.Fatalf("expected suppression within threshold, got %d calls", notifier.count())
		}
	})

	t.Run("long silence notifies", func(t *testing.T) {
		notifier := &fakeNotifier{}
		entries := &fakeEntries{hasEntries: true, lastEntry: now.AddDate(0, 0, -5)}
		s := newTestScheduler(settings, entries, notifier)
		s.now = func() time.Time { return now }

		if _, err := s.Upsert(1, "21:00", 0, true); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		s.fire(1)
		if notifier.count() != 1 {
			t.Fatalf("expected 1 notification, got %d", notifier.count())
		}
	})

	t.Run("never logged notifies", func(t *testing.T) {
		notifier := &fakeNotifier{}
		s := newTestScheduler(settings, &fakeEntries{hasEntries: false}, notifier)
		s.now = func() time.Time { return now }

		if _, err := s.Upsert(1, "21:00", 0, true); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		s.fire(1)
		if notifier.count() != 1 {
			t.Fatalf("expected 1 notification, got %d", notifier.count())
		}
	})
}

func TestLoadAllInstallsEnabledReminders(t *testing.T) {
	settings := &fakeSettings{settings: map[uint]model.UserSettings{
		1: {UserID: 1, DailyReminder: true, ReminderTime: "08:30", TZOffsetMin: 180},
		2: {UserID: 2, DailyReminder: false, ReminderTime: "09:00"},
		3: {UserID: 3, DailyReminder: true, ReminderTime: "22:15"},
	}}
	s := newTestScheduler(settings, nil, nil)

	if err := s.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if got := s.ActiveCount(); got != 2 {
		t.Fatalf("expected 2 reminders loaded, got %d", got)
	}
	if !s.Info(1).Active || s.Info(2).Active || !s.Info(3).Active {
		t.Fatalf("unexpected reminder states after LoadAll")
	}
}

func TestUpsertPreservesInFlightFiring(t *testing.T) {
	s := newTestScheduler(nil, nil, nil)

	if _, err := s.Upsert(42, "09:00", 0, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !s.registry.BeginFire(42) {
		t.Fatalf("first BeginFire must succeed")
	}

	// Rescheduling mid-firing must not let a second firing start.
	if _, err := s.Upsert(42, "09:01", 0, false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if s.registry.BeginFire(42) {
		t.Fatalf("replacement job reopened the firing guard mid-flight")
	}

	s.registry.EndFire(42)
	if !s.registry.BeginFire(42) {
		t.Fatalf("guard must reopen after the firing ends")
	}
}

// blockingSettings parks the first Get until released, then reports the
// reminder as disabled so the firing takes the self-cancel path.
type blockingSettings struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSettings) Get(context.Context, uint) (*model.UserSettings, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return &model.UserSettings{UserID: 1, DailyReminder: false}, nil
}

func (b *blockingSettings) ListReminderEnabled(context.Context) ([]model.UserSettings, error) {
	return nil, nil
}

func TestStopWaitsForSelfCancellingFiring(t *testing.T) {
	settings := &blockingSettings{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := New(settings, &fakeEntries{}, fakeMessages{}, &fakeNotifier{}, time.Minute, 3)

	s.registry.Put(&Job{UserID: 1})
	if _, err := s.cron.AddFunc("* * * * * *", func() { s.fire(1) }); err != nil {
		t.Fatalf("AddFunc: %v", err)
	}
	s.Start()

	<-settings.entered // a firing is parked inside the settings lookup

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	close(settings.release) // firing resumes and self-cancels

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatalf("Stop did not return while a firing was self-cancelling")
	}
	if s.Info(1).Active {
		t.Fatalf("expected the disabled job removed")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s := newTestScheduler(nil, nil, nil)

	s.Stop() // never started
	s.Start()
	s.Start() // second start is a no-op
	s.Stop()
	s.Stop()
}

func TestParseUTCOffset(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"UTC+3", 180, true},
		{"UTC-5", -300, true},
		{"UTC", 0, true},
		{"utc+05:30", 330, true},
		{"UTC+15", 0, false},
		{"UTC+x", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseUTCOffset(tc.raw)
		if tc.ok != (err == nil) {
			t.Fatalf("%q: unexpected error state: %v", tc.raw, err)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.raw, tc.want, got)
		}
	}
}

func TestDailySpecWrapsMidnight(t *testing.T) {
	cases := []struct {
		hour, minute, offset int
		want                 string
	}{
		{21, 0, 0, "0 0 21 * * *"},
		{21, 0, 180, "0 0 18 * * *"},  // UTC+3 local evening
		{1, 30, 180, "0 30 22 * * *"}, // wraps to previous UTC day
		{23, 0, -120, "0 0 1 * * *"},  // UTC-2 wraps forward
		{0, 0, 0, "0 0 0 * * *"},
	}
	for _, tc := range cases {
		if got := dailySpec(tc.hour, tc.minute, tc.offset); got != tc.want {
			t.Fatalf("dailySpec(%d,%d,%d) = %q, want %q", tc.hour, tc.minute, tc.offset, got, tc.want)
		}
	}
}

// Upsert treats an unparseable schedule as a programming error, so
// every spec dailySpec can emit has to satisfy the cron parser.
func TestDailySpecAlwaysParses(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for _, offset := range []int{-14 * 60, -330, -1, 0, 1, 180, 330, 14 * 60} {
		for hour := 0; hour < 24; hour++ {
			for _, minute := range []int{0, 1, 30, 59} {
				spec := dailySpec(hour, minute, offset)
				if _, err := parser.Parse(spec); err != nil {
					t.Fatalf("dailySpec(%d,%d,%d) = %q does not parse: %v", hour, minute, offset, spec, err)
				}
			}
		}
	}
}
