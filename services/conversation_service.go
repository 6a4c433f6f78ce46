package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"miniHabitsAPI/internal/apperr"
	"miniHabitsAPI/internal/conversation"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationService struct {
	db *pgxpool.Pool
}

func NewConversationService(db *pgxpool.Pool) *ConversationService {
	return &ConversationService{db: db}
}

func (s *ConversationService) List(ctx context.Context, userID string) ([]conversation.Summary, error) {
	query := `
	SELECT id, title, updated_at
	FROM conversations
	WHERE user_id = $1
	ORDER BY updated_at DESC
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversations: %w", err)
	}
	defer rows.Close()

	summaries := []conversation.Summary{}
	for rows.Next() {
		var c conversation.Summary
		if err := rows.Scan(&c.ID, &c.Title, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		summaries = append(summaries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}
	return summaries, nil
}

func (s *ConversationService) Create(ctx context.Context, userID string) (*conversation.Conversation, error) {
	c := &conversation.Conversation{
		ID:       uuid.New().String(),
		UserID:   userID,
		Title:    conversation.DefaultTitle,
		Messages: []conversation.Message{},
	}

	query := `
	INSERT INTO conversations (id, user_id, title, messages, updated_at)
	VALUES ($1, $2, $3, '[]', NOW())
	RETURNING updated_at
	`
	if err := s.db.QueryRow(ctx, query, c.ID, userID, c.Title).Scan(&c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return c, nil
}

func (s *ConversationService) Get(ctx context.Context, userID, id string) (*conversation.Conversation, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: conversation", apperr.ErrNotFound)
	}

	c := &conversation.Conversation{UserID: userID}
	var raw []byte
	query := `
	SELECT id, title, messages, updated_at
	FROM conversations
	WHERE id = $1 AND user_id = $2
	`
	err := s.db.QueryRow(ctx, query, id, userID).Scan(&c.ID, &c.Title, &raw, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: conversation", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	if err := json.Unmarshal(raw, &c.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode conversation messages: %w", err)
	}
	return c, nil
}

// ReplaceMessages persists the full message list after each exchange. While
// the title is still the default it is derived from the first user message.
func (s *ConversationService) ReplaceMessages(ctx context.Context, userID, id string, messages []conversation.Message) (*conversation.Conversation, error) {
	for _, m := range messages {
		if m.Role != "user" && m.Role != "assistant" {
			return nil, fmt.Errorf("%w: message role must be user or assistant", apperr.ErrValidation)
		}
	}

	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	title := existing.Title
	if title == conversation.DefaultTitle {
		title = conversation.TitleFrom(messages)
	}

	raw, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode messages: %w", err)
	}

	c := &conversation.Conversation{ID: id, UserID: userID, Title: title, Messages: messages}
	query := `
	UPDATE conversations
	SET title = $1, messages = $2, updated_at = NOW()
	WHERE id = $3 AND user_id = $4
	RETURNING updated_at
	`
	if err := s.db.QueryRow(ctx, query, title, raw, id, userID).Scan(&c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: conversation", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	return c, nil
}

func (s *ConversationService) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: conversation", apperr.ErrNotFound)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: conversation", apperr.ErrNotFound)
	}
	return nil
}
