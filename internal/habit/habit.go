package habit

import (
	"regexp"
	"strings"
	"time"
)

const (
	MaxNameLen = 100
	MaxNoteLen = 500
)

var (
	dateRe         = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reminderTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// Habit is the day-keyed view served to clients: presence of a date in
// CompletedDates means the habit was done that day, Notes holds only
// non-empty annotations.
type Habit struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	Name           string            `json:"name"`
	Position       int               `json:"position"`
	ReminderTime   *string           `json:"reminderTime,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	CompletedDates map[string]bool   `json:"completedDates"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// Log is one raw habit_logs row.
type Log struct {
	HabitID string `json:"habitId"`
	Date    string `json:"date"`
	Note    string `json:"note,omitempty"`
}

type CreateRequest struct {
	Name string `json:"name"`
}

type RenameRequest struct {
	Name string `json:"name"`
}

type ToggleRequest struct {
	Date string `json:"date"`
}

type SetDoneRequest struct {
	Date string `json:"date"`
	Done bool   `json:"done"`
}

type NoteRequest struct {
	Date string `json:"date"`
	Note string `json:"note"`
}

type ReorderRequest struct {
	IDs []string `json:"ids"`
}

type ReminderTimeRequest struct {
	Time *string `json:"time"`
}

// ReduceLogs folds raw rows into the completedDates/notes maps.
func ReduceLogs(logs []Log) (map[string]bool, map[string]string) {
	completed := make(map[string]bool, len(logs))
	notes := make(map[string]string)
	for _, l := range logs {
		completed[l.Date] = true
		if l.Note != "" {
			notes[l.Date] = l.Note
		}
	}
	return completed, notes
}

// Streak counts consecutive completed days walking backward from today.
// Today itself is skipped when not yet done, so an unbroken run through
// yesterday still counts.
func Streak(completed map[string]bool, today time.Time) int {
	d := today
	if !completed[d.Format("2006-01-02")] {
		d = d.AddDate(0, 0, -1)
	}
	s := 0
	for completed[d.Format("2006-01-02")] {
		s++
		d = d.AddDate(0, 0, -1)
	}
	return s
}

func ValidDate(s string) bool {
	if !dateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func ValidReminderTime(s string) bool {
	return reminderTimeRe.MatchString(s)
}

// NormalizeName trims the habit name; callers reject names outside 1..MaxNameLen.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// MoveIndex returns a copy of ids with the element at from moved to to,
// matching an in-place array move on the client.
func MoveIndex(ids []string, from, to int) []string {
	out := make([]string, 0, len(ids))
	out = append(out, ids...)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) {
		return out
	}
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]string{moved}, out[to:]...)...)
	return out
}
