package reminder

// HabitReminder is one habit with a configured reminder time.
type HabitReminder struct {
	HabitID string
	Name    string
	Time    string // "HH:mm", 24h
}

// UserReminders groups a user's qualifying habits for one scheduler run.
type UserReminders struct {
	UserID   string
	Name     string
	Phone    string
	Timezone string
	Habits   []HabitReminder
}

// RunSummary is the cron trigger response body.
type RunSummary struct {
	Sent   int      `json:"sent"`
	Errors []string `json:"errors"`
}
