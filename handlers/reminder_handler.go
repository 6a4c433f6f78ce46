package handlers

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"miniHabitsAPI/internal/reminder"
)

// ReminderRunner executes one scheduler pass.
type ReminderRunner interface {
	Run(ctx context.Context) (*reminder.RunSummary, error)
}

type ReminderHandler struct {
	runner ReminderRunner
}

func NewReminderHandler(runner ReminderRunner) *ReminderHandler {
	return &ReminderHandler{runner: runner}
}

// Trigger is hit by an external cron every minute. It authenticates against
// the shared CRON_SECRET before touching any data.
func (h *ReminderHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	secret := os.Getenv("CRON_SECRET")
	provided := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	if secret == "" || provided != secret {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	summary, err := h.runner.Run(ctx)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}
