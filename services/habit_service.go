package services

import (
	"context"
	"errors"
	"fmt"

	"miniHabitsAPI/internal/apperr"
	"miniHabitsAPI/internal/habit"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// validID rejects malformed ids up front. The uuid columns would otherwise
// turn a garbage path param into a cast error and a 500.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type HabitService struct {
	db *pgxpool.Pool
}

func NewHabitService(db *pgxpool.Pool) *HabitService {
	return &HabitService{db: db}
}

// ListWithLogs loads the user's habits in display order and folds each
// habit's log rows into the day-keyed completedDates/notes view.
func (s *HabitService) ListWithLogs(ctx context.Context, userID string) ([]habit.Habit, error) {
	query := `
	SELECT id, user_id, name, position, reminder_time, created_at
	FROM habits
	WHERE user_id = $1
	ORDER BY position ASC
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch habits: %w", err)
	}
	defer rows.Close()

	habits := []habit.Habit{}
	for rows.Next() {
		var h habit.Habit
		if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &h.Position, &h.ReminderTime, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read habits: %w", err)
	}
	if len(habits) == 0 {
		return habits, nil
	}

	logQuery := `
	SELECT l.habit_id, l.date, COALESCE(l.note, '')
	FROM habit_logs l
	JOIN habits h ON h.id = l.habit_id
	WHERE h.user_id = $1
	`
	logRows, err := s.db.Query(ctx, logQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch habit logs: %w", err)
	}
	defer logRows.Close()

	logsByHabit := make(map[string][]habit.Log)
	for logRows.Next() {
		var l habit.Log
		if err := logRows.Scan(&l.HabitID, &l.Date, &l.Note); err != nil {
			return nil, fmt.Errorf("failed to scan habit log: %w", err)
		}
		logsByHabit[l.HabitID] = append(logsByHabit[l.HabitID], l)
	}
	if err := logRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read habit logs: %w", err)
	}

	for i := range habits {
		habits[i].CompletedDates, habits[i].Notes = habit.ReduceLogs(logsByHabit[habits[i].ID])
	}

	return habits, nil
}

// Create appends the habit at the end of the user's display order.
func (s *HabitService) Create(ctx context.Context, userID, name string) (*habit.Habit, error) {
	name = habit.NormalizeName(name)
	if name == "" || len(name) > habit.MaxNameLen {
		return nil, fmt.Errorf("%w: habit name must be 1-%d characters", apperr.ErrValidation, habit.MaxNameLen)
	}

	h := &habit.Habit{
		ID:             uuid.New().String(),
		UserID:         userID,
		Name:           name,
		CompletedDates: map[string]bool{},
	}

	query := `
	INSERT INTO habits (id, user_id, name, position)
	VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position), -1) + 1 FROM habits WHERE user_id = $2))
	RETURNING position, created_at
	`
	if err := s.db.QueryRow(ctx, query, h.ID, userID, name).Scan(&h.Position, &h.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}

	return h, nil
}

func (s *HabitService) Rename(ctx context.Context, userID, habitID, name string) error {
	name = habit.NormalizeName(name)
	if name == "" || len(name) > habit.MaxNameLen {
		return fmt.Errorf("%w: habit name must be 1-%d characters", apperr.ErrValidation, habit.MaxNameLen)
	}
	if !validID(habitID) {
		return fmt.Errorf("%w: habit", apperr.ErrNotFound)
	}

	tag, err := s.db.Exec(ctx, `UPDATE habits SET name = $1 WHERE id = $2 AND user_id = $3`, name, habitID, userID)
	if err != nil {
		return fmt.Errorf("failed to rename habit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: habit", apperr.ErrNotFound)
	}
	return nil
}

// Delete removes the habit and, through the FK cascade, all its logs.
func (s *HabitService) Delete(ctx context.Context, userID, habitID string) error {
	if !validID(habitID) {
		return fmt.Errorf("%w: habit", apperr.ErrNotFound)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, habitID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: habit", apperr.ErrNotFound)
	}
	return nil
}

func (s *HabitService) SetReminderTime(ctx context.Context, userID, habitID string, t *string) error {
	if t != nil && !habit.ValidReminderTime(*t) {
		return fmt.Errorf("%w: reminder time must be HH:mm", apperr.ErrValidation)
	}
	if !validID(habitID) {
		return fmt.Errorf("%w: habit", apperr.ErrNotFound)
	}

	tag, err := s.db.Exec(ctx, `UPDATE habits SET reminder_time = $1 WHERE id = $2 AND user_id = $3`, t, habitID, userID)
	if err != nil {
		return fmt.Errorf("failed to set reminder time: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: habit", apperr.ErrNotFound)
	}
	return nil
}

// Toggle flips completion for (habit, date): delete the row when present,
// insert it when absent. Deleting discards any note for that date; that
// matches the web client, where undoing a day intentionally drops its note.
// Returns the resulting done state.
func (s *HabitService) Toggle(ctx context.Context, userID, habitID, date string) (bool, error) {
	if !habit.ValidDate(date) {
		return false, fmt.Errorf("%w: date must be YYYY-MM-DD", apperr.ErrValidation)
	}
	if err := s.requireOwnership(ctx, userID, habitID); err != nil {
		return false, err
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM habit_logs WHERE habit_id = $1 AND date = $2`, habitID, date)
	if err != nil {
		return false, fmt.Errorf("failed to toggle habit log: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	if _, err := s.db.Exec(ctx, `INSERT INTO habit_logs (habit_id, date) VALUES ($1, $2)`, habitID, date); err != nil {
		return false, fmt.Errorf("failed to create habit log: %w", err)
	}
	return true, nil
}

// SetDone is the idempotent companion to Toggle: callers that may retry after
// a timeout use this to avoid inverting intent.
func (s *HabitService) SetDone(ctx context.Context, userID, habitID, date string, done bool) error {
	if !habit.ValidDate(date) {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", apperr.ErrValidation)
	}
	if err := s.requireOwnership(ctx, userID, habitID); err != nil {
		return err
	}

	if done {
		query := `
		INSERT INTO habit_logs (habit_id, date)
		VALUES ($1, $2)
		ON CONFLICT (habit_id, date) DO NOTHING
		`
		if _, err := s.db.Exec(ctx, query, habitID, date); err != nil {
			return fmt.Errorf("failed to mark habit done: %w", err)
		}
		return nil
	}

	// Same delete path as toggle-off: the note goes with the row.
	if _, err := s.db.Exec(ctx, `DELETE FROM habit_logs WHERE habit_id = $1 AND date = $2`, habitID, date); err != nil {
		return fmt.Errorf("failed to mark habit undone: %w", err)
	}
	return nil
}

// UpsertNote writes the note for (habit, date), creating the done-row as a
// side effect when it does not exist yet.
func (s *HabitService) UpsertNote(ctx context.Context, userID, habitID, date, note string) error {
	if !habit.ValidDate(date) {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", apperr.ErrValidation)
	}
	if len(note) > habit.MaxNoteLen {
		return fmt.Errorf("%w: note must be at most %d characters", apperr.ErrValidation, habit.MaxNoteLen)
	}
	if err := s.requireOwnership(ctx, userID, habitID); err != nil {
		return err
	}

	query := `
	INSERT INTO habit_logs (habit_id, date, note)
	VALUES ($1, $2, $3)
	ON CONFLICT (habit_id, date) DO UPDATE SET note = EXCLUDED.note
	`
	if _, err := s.db.Exec(ctx, query, habitID, date, note); err != nil {
		return fmt.Errorf("failed to upsert note: %w", err)
	}
	return nil
}

// Reorder persists position = index for the given id sequence in one
// transaction. The sequence must be exactly the caller's habit set; partial
// rank writes would corrupt the ordering, so everything commits or nothing
// does.
func (s *HabitService) Reorder(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids are required", apperr.ErrValidation)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !validID(id) {
			return fmt.Errorf("%w: invalid habit id %s", apperr.ErrValidation, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate habit id %s", apperr.ErrValidation, id)
		}
		seen[id] = true
	}

	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM habits WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return fmt.Errorf("failed to count habits: %w", err)
	}
	if count != len(ids) {
		return fmt.Errorf("%w: id list does not match your habits", apperr.ErrValidation)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reorder: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, id := range ids {
		tag, err := tx.Exec(ctx, `UPDATE habits SET position = $1 WHERE id = $2 AND user_id = $3`, i, id, userID)
		if err != nil {
			return fmt.Errorf("failed to update position: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: habit %s", apperr.ErrNotFound, id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	return nil
}

// requireOwnership re-verifies the habit belongs to the caller before any
// mutation. A client-supplied id is never trusted alone.
func (s *HabitService) requireOwnership(ctx context.Context, userID, habitID string) error {
	if !validID(habitID) {
		return fmt.Errorf("%w: habit", apperr.ErrNotFound)
	}

	var id string
	err := s.db.QueryRow(ctx, `SELECT id FROM habits WHERE id = $1 AND user_id = $2`, habitID, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: habit", apperr.ErrNotFound)
		}
		return fmt.Errorf("failed to check habit ownership: %w", err)
	}
	return nil
}
