package services

import (
	"context"
	"errors"
	"testing"

	"miniHabitsAPI/internal/apperr"
	"miniHabitsAPI/internal/conversation"
)

func TestConversationOpsRejectMalformedIDs(t *testing.T) {
	svc := NewConversationService(nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "u1", "not-a-uuid"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get: got %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, "u1", "not-a-uuid"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("delete: got %v, want ErrNotFound", err)
	}
	if _, err := svc.ReplaceMessages(ctx, "u1", "not-a-uuid", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("replace: got %v, want ErrNotFound", err)
	}
}

func TestReplaceMessagesRejectsUnknownRoles(t *testing.T) {
	svc := NewConversationService(nil)
	ctx := context.Background()

	messages := []conversation.Message{{Role: "system", Content: "nope"}}
	if _, err := svc.ReplaceMessages(ctx, "u1", "0c6f1f3e-58a2-4b52-b4cb-9f6fb8a1d001", messages); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}
