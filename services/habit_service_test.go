package services

import (
	"context"
	"errors"
	"testing"

	"miniHabitsAPI/internal/apperr"
)

// Malformed ids must map onto the error taxonomy before any query runs;
// otherwise the uuid cast turns them into internal errors. A nil pool proves
// the check happens first.
func TestHabitOpsRejectMalformedIDs(t *testing.T) {
	svc := NewHabitService(nil)
	ctx := context.Background()
	reminder := "07:00"

	cases := []struct {
		name string
		err  error
	}{
		{"rename", svc.Rename(ctx, "u1", "not-a-uuid", "Read")},
		{"delete", svc.Delete(ctx, "u1", "not-a-uuid")},
		{"set reminder", svc.SetReminderTime(ctx, "u1", "not-a-uuid", &reminder)},
		{"set done", svc.SetDone(ctx, "u1", "not-a-uuid", "2025-03-10", true)},
		{"upsert note", svc.UpsertNote(ctx, "u1", "not-a-uuid", "2025-03-10", "ok")},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, apperr.ErrNotFound) {
			t.Errorf("%s: got %v, want ErrNotFound", tc.name, tc.err)
		}
	}

	if _, err := svc.Toggle(ctx, "u1", "not-a-uuid", "2025-03-10"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("toggle: got %v, want ErrNotFound", err)
	}
}

func TestReorderRejectsMalformedAndDuplicateIDs(t *testing.T) {
	svc := NewHabitService(nil)
	ctx := context.Background()

	if err := svc.Reorder(ctx, "u1", []string{"not-a-uuid"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("malformed id: got %v, want ErrValidation", err)
	}

	id := "0c6f1f3e-58a2-4b52-b4cb-9f6fb8a1d001"
	if err := svc.Reorder(ctx, "u1", []string{id, id}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("duplicate id: got %v, want ErrValidation", err)
	}

	if err := svc.Reorder(ctx, "u1", nil); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty ids: got %v, want ErrValidation", err)
	}
}

func TestCreateRejectsBadNames(t *testing.T) {
	svc := NewHabitService(nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "u1", "   "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank name: got %v, want ErrValidation", err)
	}

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := svc.Create(ctx, "u1", string(long)); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("overlong name: got %v, want ErrValidation", err)
	}
}
