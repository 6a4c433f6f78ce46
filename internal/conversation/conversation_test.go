package conversation

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTitleFromFirstUserMessage(t *testing.T) {
	messages := []Message{
		{Role: "assistant", Content: "Hi! What's your goal?"},
		{Role: "user", Content: "I want to read more books"},
		{Role: "user", Content: "ignored, only the first counts"},
	}

	if got := TitleFrom(messages); got != "I want to read more books" {
		t.Errorf("unexpected title: %q", got)
	}
}

func TestTitleFromTruncatesAt100(t *testing.T) {
	long := strings.Repeat("x", 150)
	got := TitleFrom([]Message{{Role: "user", Content: long}})
	if len(got) != 100 {
		t.Errorf("expected 100-char title, got %d chars", len(got))
	}
}

func TestTitleFromTruncatesOnRuneBoundaries(t *testing.T) {
	long := strings.Repeat("習", 150) // 3 bytes per rune
	got := TitleFrom([]Message{{Role: "user", Content: long}})

	if !utf8.ValidString(got) {
		t.Fatalf("title is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 100 {
		t.Errorf("expected 100-rune title, got %d runes", n)
	}
}

func TestTitleFromDefaultsWithoutUserMessage(t *testing.T) {
	if got := TitleFrom(nil); got != DefaultTitle {
		t.Errorf("expected default title, got %q", got)
	}
	if got := TitleFrom([]Message{{Role: "assistant", Content: "hello"}}); got != DefaultTitle {
		t.Errorf("expected default title, got %q", got)
	}
}
