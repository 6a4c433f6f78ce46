package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"miniHabitsAPI/internal/reminder"
)

type fakeRunner struct {
	runs    int
	summary *reminder.RunSummary
	err     error
}

func (f *fakeRunner) Run(ctx context.Context) (*reminder.RunSummary, error) {
	f.runs++
	return f.summary, f.err
}

func TestTriggerRejectsBadSecretBeforeRunning(t *testing.T) {
	t.Setenv("CRON_SECRET", "cron-secret")

	runner := &fakeRunner{summary: &reminder.RunSummary{}}
	h := NewReminderHandler(runner)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong secret", "Bearer nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cron/reminders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			h.Trigger(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}

	if runner.runs != 0 {
		t.Errorf("runner must not execute without a valid secret, ran %d times", runner.runs)
	}
}

func TestTriggerRejectsWhenSecretUnset(t *testing.T) {
	t.Setenv("CRON_SECRET", "")

	runner := &fakeRunner{summary: &reminder.RunSummary{}}
	h := NewReminderHandler(runner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cron/reminders", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()

	h.Trigger(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("an empty configured secret must never authenticate, got %d", rec.Code)
	}
	if runner.runs != 0 {
		t.Error("runner must not execute when the secret is unset")
	}
}

func TestTriggerReturnsRunSummary(t *testing.T) {
	t.Setenv("CRON_SECRET", "cron-secret")

	runner := &fakeRunner{summary: &reminder.RunSummary{Sent: 2, Errors: []string{"habit h9: gateway down"}}}
	h := NewReminderHandler(runner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cron/reminders", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec := httptest.NewRecorder()

	h.Trigger(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got reminder.RunSummary
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if got.Sent != 2 || len(got.Errors) != 1 {
		t.Errorf("unexpected summary: %+v", got)
	}
	if runner.runs != 1 {
		t.Errorf("expected one run, got %d", runner.runs)
	}
}
