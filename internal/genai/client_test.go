package genai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResolveModel(t *testing.T) {
	if got := ResolveModel("gemini-1.5-pro"); got != "gemini-1.5-pro" {
		t.Errorf("allow-listed model rewritten to %q", got)
	}
	if got := ResolveModel("gpt-4"); got != DefaultModel {
		t.Errorf("unknown model resolved to %q, want default", got)
	}
	if got := ResolveModel(""); got != DefaultModel {
		t.Errorf("empty model resolved to %q, want default", got)
	}
}

func TestParseChatReplyDirectJSON(t *testing.T) {
	raw := `{"message": "Try these", "habits": [{"name": "Do one push-up", "why": "Too small to fail"}]}`

	reply := ParseChatReply(raw)
	if reply.Message != "Try these" {
		t.Errorf("unexpected message: %q", reply.Message)
	}
	if len(reply.Habits) != 1 || reply.Habits[0].Name != "Do one push-up" {
		t.Errorf("unexpected habits: %v", reply.Habits)
	}
}

func TestParseChatReplyFencedJSON(t *testing.T) {
	raw := "```json\n{\"message\": \"Here you go\", \"habits\": null}\n```"

	reply := ParseChatReply(raw)
	if reply.Message != "Here you go" {
		t.Errorf("expected brace-substring parse, got message %q", reply.Message)
	}
	if reply.Habits != nil {
		t.Errorf("expected nil habits, got %v", reply.Habits)
	}
}

func TestParseChatReplyRawPassthrough(t *testing.T) {
	raw := "Sorry, I can only help with habit design."

	reply := ParseChatReply(raw)
	if reply.Message != raw {
		t.Errorf("expected raw passthrough, got %q", reply.Message)
	}
	if reply.Habits != nil {
		t.Errorf("expected nil habits, got %v", reply.Habits)
	}
}

func TestParseSuggestions(t *testing.T) {
	raw := "Here are your habits:\n```json\n[{\"name\": \"Read one page\", \"why\": \"Builds the reading habit\"}]\n```"

	habits, err := ParseSuggestions(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(habits) != 1 || habits[0].Name != "Read one page" {
		t.Errorf("unexpected habits: %v", habits)
	}
}

func TestParseSuggestionsRejectsNonArray(t *testing.T) {
	if _, err := ParseSuggestions("I cannot help with that."); err == nil {
		t.Error("expected error for response without an array")
	}
	if _, err := ParseSuggestions(`{"message": "hi"}`); err == nil {
		t.Error("expected error for non-array JSON")
	}
}

func TestGenerateReturnsCandidateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-1.5-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in query")
		}
		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "hello"}, {"text": " world"}]}}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL)
	got, err := c.Generate(context.Background(), "test-key", "gemini-1.5-flash", "", []Content{
		{Role: "user", Parts: []Part{{Text: "hi"}}},
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if got != "hello world" {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestGenerateSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "API key not valid"}}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL)
	_, err := c.Generate(context.Background(), "bad-key", "gemini-1.5-flash", "", []Content{
		{Role: "user", Parts: []Part{{Text: "hi"}}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("error should carry the API message, got %v", err)
	}
}
