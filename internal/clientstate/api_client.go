package clientstate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"miniHabitsAPI/internal/conversation"
	"miniHabitsAPI/internal/habit"
)

// APIClient implements Backend against the HTTP API using the session token
// minted at login.
type APIClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *APIClient) FetchHabits(ctx context.Context) ([]habit.Habit, error) {
	var habits []habit.Habit
	if err := c.do(ctx, http.MethodGet, "/api/v1/habits", nil, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

func (c *APIClient) CreateHabit(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/habits", habit.CreateRequest{Name: name}, nil)
}

func (c *APIClient) DeleteHabit(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/habits/"+id, nil, nil)
}

func (c *APIClient) RenameHabit(ctx context.Context, id, name string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/habits/"+id, habit.RenameRequest{Name: name}, nil)
}

func (c *APIClient) ToggleHabit(ctx context.Context, id, date string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/habits/"+id+"/toggle", habit.ToggleRequest{Date: date}, nil)
}

func (c *APIClient) UpsertNote(ctx context.Context, id, date, note string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/habits/"+id+"/note", habit.NoteRequest{Date: date, Note: note}, nil)
}

func (c *APIClient) SetReminderTime(ctx context.Context, id string, t *string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/habits/"+id+"/reminder", habit.ReminderTimeRequest{Time: t}, nil)
}

func (c *APIClient) ReorderHabits(ctx context.Context, ids []string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/habits/reorder", habit.ReorderRequest{IDs: ids}, nil)
}

func (c *APIClient) FetchConversations(ctx context.Context) ([]conversation.Summary, error) {
	var summaries []conversation.Summary
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversations", nil, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("API error %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("API error %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
