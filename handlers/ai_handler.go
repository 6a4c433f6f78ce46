package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"miniHabitsAPI/internal/conversation"
	"miniHabitsAPI/internal/genai"
	"miniHabitsAPI/middleware"
)

const analyzePrompt = `You are a minimalist habit coach. Analyze the following habit data for the last 7-14 days.
Your goal is to provide a "Weekly Review" that is concise, encouraging, and actionable.

Data:
%s

Output Requirements:
1. **Summary:** One sentence on overall performance.
2. **Insight:** One specific observation based on the data (correlation between notes and completion, streaks, etc.).
3. **Action:** One small, specific suggestion for next week.

Keep the tone calm, objective, and supportive. Total output should be under 100 words. Return plain text, no markdown formatting beyond simple bullet points if needed.`

const coachSystemPrompt = `You are an expert in the Mini Habits methodology by Stephen Guise, acting as a friendly coach. Your job is to help the user design daily mini habits — actions so small they're impossible to fail.

Rules for mini habits:
- Each takes less than 2 minutes
- Each is a specific, physical action (not a vague intention)
- Follows the "too small to fail" principle
- Builds toward the user's larger goal over time

Conversation flow:
1. First, understand the user's goal. Ask 2-3 short clarifying questions (current experience, available time, obstacles).
2. Once you understand, propose 3-5 mini habits.
3. If the user gives feedback, refine your proposals.
4. If the user asks HOW to do a habit or asks for advice, answer their question with practical, actionable tips. Do NOT re-propose habits — just help them understand how to do the one they asked about. Set "habits" to null when answering questions.
5. Only propose new or revised habits when the user explicitly asks for different habits or you're refining based on their feedback.

EXISTING_HABITS_PLACEHOLDER

You MUST always respond with valid JSON in this exact format:
{"message": "your conversational text here", "habits": null}

When proposing habits, use this format:
{"message": "your text explaining the habits", "habits": [{"name": "Habit name (max 8 words)", "why": "One sentence explanation"}]}

Set "habits" to null when you're asking questions or chatting without proposing habits.
Never include anything outside the JSON object.`

const generatePrompt = `You are an expert in the Mini Habits methodology by Stephen Guise. Design daily mini habits — actions so small they're impossible to fail, each taking under 2 minutes.

The user's goal: %s
%s
Propose 3-5 mini habits that build toward this goal.

Respond ONLY with a JSON array in this exact format, nothing else:
[{"name": "Habit name (max 8 words)", "why": "One sentence explanation"}]`

// The chat history sent to the model is capped at the last 40 turns.
const maxChatHistory = 40

type AIHandler struct {
	client *genai.Client
}

func NewAIHandler(client *genai.Client) *AIHandler {
	return &AIHandler{client: client}
}

type analyzeRequest struct {
	APIKey    string `json:"apiKey"`
	Context   string `json:"context"`
	ModelName string `json:"modelName"`
}

// Analyze produces a weekly review of the caller-supplied habit data.
func (h *AIHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if _, ok := middleware.GetUserID(ctx); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.APIKey == "" {
		respondWithError(w, http.StatusBadRequest, "API Key is required")
		return
	}

	model := genai.ResolveModel(req.ModelName)
	prompt := fmt.Sprintf(analyzePrompt, req.Context)

	text, err := h.client.Generate(ctx, req.APIKey, model, "", []genai.Content{
		{Role: "user", Parts: []genai.Part{{Text: prompt}}},
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"result": text})
}

type generateHabitsRequest struct {
	APIKey    string `json:"apiKey"`
	ModelName string `json:"modelName"`
	Goal      string `json:"goal"`
	Context   string `json:"context,omitempty"`
}

// GenerateHabits is the single-shot goal-to-habits mode.
func (h *AIHandler) GenerateHabits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if _, ok := middleware.GetUserID(ctx); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req generateHabitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.APIKey == "" {
		respondWithError(w, http.StatusBadRequest, "API Key is required")
		return
	}
	if strings.TrimSpace(req.Goal) == "" {
		respondWithError(w, http.StatusBadRequest, "Goal is required")
		return
	}

	extra := ""
	if req.Context != "" {
		extra = "Additional context from the user: " + req.Context + "\n"
	}
	prompt := fmt.Sprintf(generatePrompt, req.Goal, extra)

	model := genai.ResolveModel(req.ModelName)
	text, err := h.client.Generate(ctx, req.APIKey, model, "", []genai.Content{
		{Role: "user", Parts: []genai.Part{{Text: prompt}}},
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	habits, err := genai.ParseSuggestions(text)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string][]conversation.Suggestion{"habits": habits})
}

type chatRequest struct {
	APIKey         string                 `json:"apiKey"`
	ModelName      string                 `json:"modelName"`
	Messages       []conversation.Message `json:"messages"`
	ExistingHabits []string               `json:"existingHabits"`
}

type chatResponse struct {
	Message string                    `json:"message"`
	Habits  []conversation.Suggestion `json:"habits"`
}

// Chat is the conversational coach mode with the three-tier fallback parse.
func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if _, ok := middleware.GetUserID(ctx); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.APIKey == "" {
		respondWithError(w, http.StatusBadRequest, "API Key is required")
		return
	}
	if len(req.Messages) == 0 {
		respondWithError(w, http.StatusBadRequest, "Messages are required")
		return
	}

	habitsContext := "The user has no existing habits yet."
	if len(req.ExistingHabits) > 0 {
		var sb strings.Builder
		sb.WriteString("The user already tracks these habits:\n")
		for _, name := range req.ExistingHabits {
			sb.WriteString("- " + name + "\n")
		}
		sb.WriteString("\nAvoid suggesting duplicates. You can build on existing habits or suggest complementary ones.")
		habitsContext = sb.String()
	}
	system := strings.Replace(coachSystemPrompt, "EXISTING_HABITS_PLACEHOLDER", habitsContext, 1)

	messages := req.Messages
	if len(messages) > maxChatHistory {
		messages = messages[len(messages)-maxChatHistory:]
	}

	contents := make([]genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, genai.Content{Role: role, Parts: []genai.Part{{Text: m.Content}}})
	}

	model := genai.ResolveModel(req.ModelName)
	text, err := h.client.Generate(ctx, req.APIKey, model, system, contents)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reply := genai.ParseChatReply(text)
	respondWithJSON(w, http.StatusOK, chatResponse{Message: reply.Message, Habits: reply.Habits})
}
