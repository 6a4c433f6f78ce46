package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"miniHabitsAPI/internal/messaging"
	"miniHabitsAPI/internal/reminder"
	"miniHabitsAPI/middleware"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReminderStore is the storage surface the scheduler needs. Claim must be
// atomic: exactly one concurrent caller wins a given (habit, local date).
type ReminderStore interface {
	Candidates(ctx context.Context) ([]reminder.UserReminders, error)
	Claim(ctx context.Context, habitID, date string) (bool, error)
}

// PgReminderStore backs the scheduler with the shared pgx pool.
type PgReminderStore struct {
	db *pgxpool.Pool
}

func NewPgReminderStore(db *pgxpool.Pool) *PgReminderStore {
	return &PgReminderStore{db: db}
}

// Candidates loads every user with a phone number together with their habits
// that have a reminder time configured. Users without such habits are
// omitted; they have nothing to dispatch.
func (s *PgReminderStore) Candidates(ctx context.Context) ([]reminder.UserReminders, error) {
	query := `
	SELECT u.id, COALESCE(u.name, ''), u.phone, COALESCE(u.timezone, ''), h.id, h.name, h.reminder_time
	FROM users u
	JOIN habits h ON h.user_id = u.id
	WHERE u.phone IS NOT NULL
	  AND h.reminder_time IS NOT NULL
	ORDER BY u.id, h.position
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reminder candidates: %w", err)
	}
	defer rows.Close()

	var out []reminder.UserReminders
	byUser := make(map[string]int)
	for rows.Next() {
		var userID, name, phone, tz string
		var h reminder.HabitReminder
		if err := rows.Scan(&userID, &name, &phone, &tz, &h.HabitID, &h.Name, &h.Time); err != nil {
			return nil, fmt.Errorf("failed to scan reminder candidate: %w", err)
		}
		i, ok := byUser[userID]
		if !ok {
			i = len(out)
			byUser[userID] = i
			out = append(out, reminder.UserReminders{UserID: userID, Name: name, Phone: phone, Timezone: tz})
		}
		out[i].Habits = append(out[i].Habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reminder candidates: %w", err)
	}
	return out, nil
}

// Claim inserts the idempotency row for (habit, date). The composite primary
// key makes this the arbiter under concurrent runs: the second insert is a
// no-op and reports false.
func (s *PgReminderStore) Claim(ctx context.Context, habitID, date string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
	INSERT INTO reminder_logs (habit_id, date)
	VALUES ($1, $2)
	ON CONFLICT (habit_id, date) DO NOTHING
	`, habitID, date)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReminderService dispatches at most one reminder per habit per local
// calendar day. An external cron hits the trigger endpoint every minute; the
// match below is an exact HH:mm comparison, so a coarser cadence drops
// reminders instead of retrying them.
type ReminderService struct {
	store     ReminderStore
	sender    messaging.Sender
	defaultTZ string
	now       func() time.Time
}

func NewReminderService(store ReminderStore, sender messaging.Sender, defaultTZ string) *ReminderService {
	return &ReminderService{
		store:     store,
		sender:    sender,
		defaultTZ: defaultTZ,
		now:       time.Now,
	}
}

// Run executes one scheduler pass. Send failures are collected per habit and
// never abort the rest of the batch.
func (s *ReminderService) Run(ctx context.Context) (*reminder.RunSummary, error) {
	candidates, err := s.store.Candidates(ctx)
	if err != nil {
		return nil, err
	}

	summary := &reminder.RunSummary{Errors: []string{}}
	now := s.now()

	for _, u := range candidates {
		if u.Phone == "" {
			continue
		}

		localTime, localDate := s.localClock(now, u.Timezone)

		for _, h := range u.Habits {
			if h.Time != localTime {
				continue
			}

			claimed, err := s.store.Claim(ctx, h.HabitID, localDate)
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("habit %s: %v", h.HabitID, err))
				middleware.CountReminderSend("error")
				continue
			}
			if !claimed {
				// Already dispatched today, possibly by an overlapping run.
				continue
			}

			name := u.Name
			if name == "" {
				name = "there"
			}
			msg := fmt.Sprintf("⏰ Hey %s! Time to: %s", name, h.Name)

			if err := s.sender.Send(ctx, u.Phone, msg); err != nil {
				log.Printf("Reminder send failed for habit %s: %v", h.HabitID, err)
				summary.Errors = append(summary.Errors, fmt.Sprintf("habit %s: %v", h.HabitID, err))
				middleware.CountReminderSend("error")
				continue
			}

			summary.Sent++
			middleware.CountReminderSend("sent")
		}
	}

	return summary, nil
}

// localClock renders the instant in the user's timezone as ("HH:mm",
// "YYYY-MM-DD"). Unknown or empty zones fall back to the configured default.
func (s *ReminderService) localClock(now time.Time, tz string) (string, string) {
	if tz == "" {
		tz = s.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, err = time.LoadLocation(s.defaultTZ)
		if err != nil {
			loc = time.UTC
		}
	}
	local := now.In(loc)
	return local.Format("15:04"), local.Format("2006-01-02")
}
