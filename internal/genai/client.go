package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"miniHabitsAPI/internal/conversation"
)

const DefaultModel = "gemini-1.5-flash"

var allowedModels = map[string]bool{
	"gemini-1.5-flash":      true,
	"gemini-1.5-pro":        true,
	"gemini-2.0-flash":      true,
	"gemini-2.0-flash-exp":  true,
	"gemini-2.5-flash":      true,
	"gemini-2.5-flash-lite": true,
	"gemini-pro":            true,
}

// ResolveModel maps a caller-supplied model name onto the allow-list,
// falling back to the default for anything unrecognized.
func ResolveModel(name string) string {
	if allowedModels[name] {
		return name
	}
	return DefaultModel
}

// Client is a thin REST client for the Gemini generateContent endpoint.
// The API key is supplied by the caller per request, never stored server-side.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: "https://generativelanguage.googleapis.com",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// NewClientWithBaseURL exists for tests pointed at a local server.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  string `json:"role,omitempty"` // "user" or "model"
	Parts []Part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *Content  `json:"system_instruction,omitempty"`
	Contents          []Content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []Part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends a generateContent call and returns the first candidate's
// text. Any API-level failure is returned as an error for the handler to
// surface; nothing here panics on malformed output.
func (c *Client) Generate(ctx context.Context, apiKey, model, system string, contents []Content) (string, error) {
	reqBody := generateRequest{Contents: contents}
	if system != "" {
		reqBody.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read gemini response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("gemini returned invalid JSON (status %d)", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("gemini API error %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("gemini API error %d", resp.StatusCode)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// ChatReply is the structured form of a coach response.
type ChatReply struct {
	Message string                    `json:"message"`
	Habits  []conversation.Suggestion `json:"habits"`
}

// ParseChatReply decodes a model response with three fallback tiers:
// direct JSON parse, then the first brace-delimited substring (models love
// wrapping JSON in markdown fences), then the raw text as a plain message.
func ParseChatReply(raw string) ChatReply {
	var reply ChatReply
	if err := json.Unmarshal([]byte(raw), &reply); err == nil && reply.Message != "" {
		return reply
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var reply ChatReply
		if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err == nil && reply.Message != "" {
			return reply
		}
	}

	return ChatReply{Message: raw}
}

// ParseSuggestions decodes a single-shot generation response, which must be a
// JSON array of {name, why}. Markdown fences and surrounding prose are
// tolerated; anything without a parseable array is an error.
func ParseSuggestions(raw string) ([]conversation.Suggestion, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("response contains no JSON array")
	}

	var habits []conversation.Suggestion
	if err := json.Unmarshal([]byte(raw[start:end+1]), &habits); err != nil {
		return nil, fmt.Errorf("failed to parse habits array: %w", err)
	}
	if len(habits) == 0 {
		return nil, fmt.Errorf("response contains no habits")
	}
	return habits, nil
}
