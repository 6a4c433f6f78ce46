package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"miniHabitsAPI/internal/reminder"
)

type fakeReminderStore struct {
	mu         sync.Mutex
	candidates []reminder.UserReminders
	claimed    map[string]bool
}

func newFakeReminderStore(candidates []reminder.UserReminders) *fakeReminderStore {
	return &fakeReminderStore{candidates: candidates, claimed: map[string]bool{}}
}

func (f *fakeReminderStore) Candidates(ctx context.Context) ([]reminder.UserReminders, error) {
	return f.candidates, nil
}

func (f *fakeReminderStore) Claim(ctx context.Context, habitID, date string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := habitID + "|" + date
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fails map[string]bool // by phone
}

func (f *fakeSender) Send(ctx context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails[phone] {
		return errors.New("gateway down")
	}
	f.sent = append(f.sent, phone+": "+message)
	return nil
}

// fixedNow pins the scheduler clock to 07:00 New York local time.
func fixedNow(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	return time.Date(2025, 3, 10, 7, 0, 0, 0, loc)
}

func newTestService(store ReminderStore, sender *fakeSender, now time.Time) *ReminderService {
	svc := NewReminderService(store, sender, "Asia/Jakarta")
	svc.now = func() time.Time { return now }
	return svc
}

func TestRunSendsOnExactLocalTimeMatch(t *testing.T) {
	store := newFakeReminderStore([]reminder.UserReminders{{
		UserID:   "u1",
		Name:     "Ada",
		Phone:    "12025550123",
		Timezone: "America/New_York",
		Habits: []reminder.HabitReminder{
			{HabitID: "h1", Name: "Morning run", Time: "07:00"},
			{HabitID: "h2", Name: "Journal", Time: "21:00"},
		},
	}})
	sender := &fakeSender{}
	svc := newTestService(store, sender, fixedNow(t))

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Sent != 1 {
		t.Fatalf("expected 1 send, got %d", summary.Sent)
	}
	if len(summary.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", summary.Errors)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Morning run") {
		t.Errorf("unexpected dispatch: %v", sender.sent)
	}
	if !strings.Contains(sender.sent[0], "Hey Ada!") {
		t.Errorf("message should greet the user by name: %v", sender.sent[0])
	}
	if !store.claimed["h1|2025-03-10"] {
		t.Error("expected reminder log claim for today's local date")
	}
}

func TestRunIsIdempotentWithinTheSameMinute(t *testing.T) {
	store := newFakeReminderStore([]reminder.UserReminders{{
		UserID: "u1", Name: "Ada", Phone: "12025550123", Timezone: "America/New_York",
		Habits: []reminder.HabitReminder{{HabitID: "h1", Name: "Morning run", Time: "07:00"}},
	}})
	sender := &fakeSender{}
	svc := newTestService(store, sender, fixedNow(t))

	first, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.Sent != 1 || second.Sent != 0 {
		t.Errorf("expected 1 then 0 sends, got %d then %d", first.Sent, second.Sent)
	}
	if len(sender.sent) != 1 {
		t.Errorf("expected exactly one dispatch, got %d", len(sender.sent))
	}
}

func TestRunSkipsUsersWithoutPhone(t *testing.T) {
	store := newFakeReminderStore([]reminder.UserReminders{{
		UserID: "u1", Name: "Ada", Phone: "", Timezone: "America/New_York",
		Habits: []reminder.HabitReminder{{HabitID: "h1", Name: "Morning run", Time: "07:00"}},
	}})
	sender := &fakeSender{}
	svc := newTestService(store, sender, fixedNow(t))

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Sent != 0 || len(sender.sent) != 0 {
		t.Errorf("phone-less user must never be contacted: %v", sender.sent)
	}
}

func TestRunCollectsPerItemErrorsAndContinues(t *testing.T) {
	store := newFakeReminderStore([]reminder.UserReminders{
		{
			UserID: "u1", Name: "Ada", Phone: "12025550123", Timezone: "America/New_York",
			Habits: []reminder.HabitReminder{{HabitID: "h1", Name: "Morning run", Time: "07:00"}},
		},
		{
			UserID: "u2", Name: "Grace", Phone: "12025550999", Timezone: "America/New_York",
			Habits: []reminder.HabitReminder{{HabitID: "h2", Name: "Stretch", Time: "07:00"}},
		},
	})
	sender := &fakeSender{fails: map[string]bool{"12025550123": true}}
	svc := newTestService(store, sender, fixedNow(t))

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Sent != 1 {
		t.Errorf("expected the second user to still be processed, sent=%d", summary.Sent)
	}
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "h1") {
		t.Errorf("expected one error naming habit h1, got %v", summary.Errors)
	}
}

func TestRunUsesDefaultTimezoneWhenUnset(t *testing.T) {
	// 07:00 in New York is 18:00 in Jakarta (EDT, UTC-4 vs UTC+7).
	jakarta := "18:00"
	store := newFakeReminderStore([]reminder.UserReminders{{
		UserID: "u1", Name: "Ada", Phone: "12025550123", Timezone: "",
		Habits: []reminder.HabitReminder{{HabitID: "h1", Name: "Evening walk", Time: jakarta}},
	}})
	sender := &fakeSender{}
	svc := newTestService(store, sender, fixedNow(t))

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.Sent != 1 {
		t.Errorf("expected send against default timezone clock, sent=%d", summary.Sent)
	}
}

func TestRunGreetsAnonymousUsers(t *testing.T) {
	store := newFakeReminderStore([]reminder.UserReminders{{
		UserID: "u1", Name: "", Phone: "12025550123", Timezone: "America/New_York",
		Habits: []reminder.HabitReminder{{HabitID: "h1", Name: "Morning run", Time: "07:00"}},
	}})
	sender := &fakeSender{}
	svc := newTestService(store, sender, fixedNow(t))

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Hey there!") {
		t.Errorf("expected fallback greeting, got %v", sender.sent)
	}
}

func TestLocalClockRendersUserTimezone(t *testing.T) {
	svc := NewReminderService(nil, nil, "Asia/Jakarta")
	now := fixedNow(t)

	hm, date := svc.localClock(now, "America/New_York")
	if hm != "07:00" || date != "2025-03-10" {
		t.Errorf("got %s %s, want 07:00 2025-03-10", hm, date)
	}

	// Unknown zone falls back to the default.
	hm, _ = svc.localClock(now, "Not/AZone")
	if hm != "18:00" {
		t.Errorf("fallback clock = %s, want 18:00", hm)
	}
}
