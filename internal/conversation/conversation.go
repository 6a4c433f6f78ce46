package conversation

import "time"

const DefaultTitle = "New Conversation"

const maxTitleLen = 100

// Suggestion is one habit proposed by the coach.
type Suggestion struct {
	Name string `json:"name"`
	Why  string `json:"why"`
}

type Message struct {
	Role    string       `json:"role"` // "user" or "assistant"
	Content string       `json:"content"`
	Habits  []Suggestion `json:"habits,omitempty"`
}

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type UpdateRequest struct {
	Messages []Message `json:"messages"`
}

// TitleFrom derives a conversation title from the first user message,
// truncated to 100 characters. Returns the default when no user message
// exists yet.
func TitleFrom(messages []Message) string {
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		title := m.Content
		// Truncate on rune boundaries; a byte cut could split a multibyte
		// character and the TEXT column rejects invalid UTF-8.
		if runes := []rune(title); len(runes) > maxTitleLen {
			title = string(runes[:maxTitleLen])
		}
		if title == "" {
			break
		}
		return title
	}
	return DefaultTitle
}
