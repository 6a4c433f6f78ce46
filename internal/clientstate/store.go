package clientstate

import (
	"context"
	"log"
	"sync"

	"miniHabitsAPI/internal/conversation"
	"miniHabitsAPI/internal/habit"
)

// Backend is the server API the store mirrors. Production wires an HTTP
// client; tests wire a fake.
type Backend interface {
	FetchHabits(ctx context.Context) ([]habit.Habit, error)
	CreateHabit(ctx context.Context, name string) error
	DeleteHabit(ctx context.Context, id string) error
	RenameHabit(ctx context.Context, id, name string) error
	ToggleHabit(ctx context.Context, id, date string) error
	UpsertNote(ctx context.Context, id, date, note string) error
	SetReminderTime(ctx context.Context, id string, t *string) error
	ReorderHabits(ctx context.Context, ids []string) error
	FetchConversations(ctx context.Context) ([]conversation.Summary, error)
}

// Store is a per-session working copy of one user's habits and chat state.
// Cheap mutations apply optimistically and push to the server in the
// background; add/delete re-sync against the authoritative list because local
// state lacks server-assigned ids and positions. Background failures are not
// rolled back; the store keeps the last error for the UI to surface instead
// of silently masking the divergence.
type Store struct {
	mu      sync.Mutex
	backend Backend

	habits []habit.Habit

	conversations      []conversation.Summary
	activeConversation string
	messages           []conversation.Message

	apiKey    string
	modelName string

	syncErr error
	bg      sync.WaitGroup
}

// New builds a store for one session. There is deliberately no package-level
// instance: the container lives and dies with the session.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Sync replaces local habit state with an authoritative fetch.
func (s *Store) Sync(ctx context.Context) error {
	habits, err := s.backend.FetchHabits(ctx)
	if err != nil {
		s.setSyncErr(err)
		return err
	}
	s.mu.Lock()
	s.habits = habits
	s.mu.Unlock()
	return nil
}

// AddHabit waits for the server so the new habit arrives with its real id and
// position, then re-syncs.
func (s *Store) AddHabit(ctx context.Context, name string) error {
	if err := s.backend.CreateHabit(ctx, name); err != nil {
		return err
	}
	return s.Sync(ctx)
}

// RemoveHabit drops the habit locally right away, then deletes and re-syncs.
func (s *Store) RemoveHabit(ctx context.Context, id string) error {
	s.mu.Lock()
	kept := s.habits[:0:0]
	for _, h := range s.habits {
		if h.ID != id {
			kept = append(kept, h)
		}
	}
	s.habits = kept
	s.mu.Unlock()

	if err := s.backend.DeleteHabit(ctx, id); err != nil {
		return err
	}
	return s.Sync(ctx)
}

func (s *Store) RenameHabit(id, name string) {
	s.mu.Lock()
	for i := range s.habits {
		if s.habits[i].ID == id {
			s.habits[i].Name = name
		}
	}
	s.mu.Unlock()

	s.background(func(ctx context.Context) error {
		return s.backend.RenameHabit(ctx, id, name)
	})
}

// ToggleHabit flips local completion for the date, then pushes the toggle.
// Toggle is not idempotent: a retry after a timeout may invert intent, which
// is why the local flip and the server call are issued exactly once each.
func (s *Store) ToggleHabit(id, date string) {
	s.mu.Lock()
	for i := range s.habits {
		if s.habits[i].ID != id {
			continue
		}
		if s.habits[i].CompletedDates == nil {
			s.habits[i].CompletedDates = make(map[string]bool)
		}
		if s.habits[i].CompletedDates[date] {
			delete(s.habits[i].CompletedDates, date)
			delete(s.habits[i].Notes, date)
		} else {
			s.habits[i].CompletedDates[date] = true
		}
	}
	s.mu.Unlock()

	s.background(func(ctx context.Context) error {
		return s.backend.ToggleHabit(ctx, id, date)
	})
}

func (s *Store) AddNote(id, date, note string) {
	s.mu.Lock()
	for i := range s.habits {
		if s.habits[i].ID != id {
			continue
		}
		if s.habits[i].Notes == nil {
			s.habits[i].Notes = make(map[string]string)
		}
		if note != "" {
			s.habits[i].Notes[date] = note
			if s.habits[i].CompletedDates == nil {
				s.habits[i].CompletedDates = make(map[string]bool)
			}
			// Note-setting implies completion server-side; mirror it.
			s.habits[i].CompletedDates[date] = true
		} else {
			delete(s.habits[i].Notes, date)
		}
	}
	s.mu.Unlock()

	s.background(func(ctx context.Context) error {
		return s.backend.UpsertNote(ctx, id, date, note)
	})
}

func (s *Store) SetReminderTime(id string, t *string) {
	s.mu.Lock()
	for i := range s.habits {
		if s.habits[i].ID == id {
			s.habits[i].ReminderTime = t
		}
	}
	s.mu.Unlock()

	s.background(func(ctx context.Context) error {
		return s.backend.SetReminderTime(ctx, id, t)
	})
}

// Reorder moves the habit at from to position to and persists the full id
// sequence so server positions match what the user sees.
func (s *Store) Reorder(from, to int) {
	s.mu.Lock()
	if from < 0 || from >= len(s.habits) || to < 0 || to >= len(s.habits) {
		s.mu.Unlock()
		return
	}
	ids := make([]string, len(s.habits))
	byID := make(map[string]habit.Habit, len(s.habits))
	for i, h := range s.habits {
		ids[i] = h.ID
		byID[h.ID] = h
	}
	ids = habit.MoveIndex(ids, from, to)

	reordered := make([]habit.Habit, len(ids))
	for i, id := range ids {
		reordered[i] = byID[id]
	}
	s.habits = reordered
	s.mu.Unlock()

	s.background(func(ctx context.Context) error {
		return s.backend.ReorderHabits(ctx, ids)
	})
}

// Habits returns a snapshot of the current display order.
func (s *Store) Habits() []habit.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]habit.Habit, len(s.habits))
	copy(out, s.habits)
	return out
}

func (s *Store) SyncConversations(ctx context.Context) error {
	summaries, err := s.backend.FetchConversations(ctx)
	if err != nil {
		s.setSyncErr(err)
		return err
	}
	s.mu.Lock()
	s.conversations = summaries
	s.mu.Unlock()
	return nil
}

func (s *Store) Conversations() []conversation.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conversation.Summary, len(s.conversations))
	copy(out, s.conversations)
	return out
}

func (s *Store) OpenConversation(id string, messages []conversation.Message) {
	s.mu.Lock()
	s.activeConversation = id
	s.messages = append(s.messages[:0:0], messages...)
	s.mu.Unlock()
}

func (s *Store) AppendMessage(m conversation.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
}

func (s *Store) ActiveConversation() (string, []conversation.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conversation.Message, len(s.messages))
	copy(out, s.messages)
	return s.activeConversation, out
}

func (s *Store) SetAPIKey(key string) {
	s.mu.Lock()
	s.apiKey = key
	s.mu.Unlock()
}

func (s *Store) SetModelName(name string) {
	s.mu.Lock()
	s.modelName = name
	s.mu.Unlock()
}

func (s *Store) Settings() (apiKey, modelName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey, s.modelName
}

// LastSyncErr reports the most recent background push failure, if any.
func (s *Store) LastSyncErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncErr
}

// Reset tears the session state down, e.g. on logout. It waits for in-flight
// background pushes first.
func (s *Store) Reset() {
	s.bg.Wait()
	s.mu.Lock()
	s.habits = nil
	s.conversations = nil
	s.activeConversation = ""
	s.messages = nil
	s.apiKey = ""
	s.modelName = ""
	s.syncErr = nil
	s.mu.Unlock()
}

// Flush blocks until all background pushes have completed.
func (s *Store) Flush() {
	s.bg.Wait()
}

func (s *Store) background(fn func(ctx context.Context) error) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		if err := fn(context.Background()); err != nil {
			log.Printf("Background sync failed: %v", err)
			s.setSyncErr(err)
		}
	}()
}

func (s *Store) setSyncErr(err error) {
	s.mu.Lock()
	s.syncErr = err
	s.mu.Unlock()
}
