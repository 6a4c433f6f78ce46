package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sender is the outbound message collaborator. Implementations must either
// deliver the message or return an error with no partial effect.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// GowaClient talks to a Gowa WhatsApp gateway over basic-auth HTTP.
type GowaClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

func NewGowaClient(baseURL, username, password string) *GowaClient {
	return &GowaClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		// One slow recipient must not stall a whole reminder run.
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Send posts a message to the gateway. Phone is digits only; the gateway
// expects it suffixed with the WhatsApp JID domain.
func (c *GowaClient) Send(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(sendMessageRequest{
		Phone:   phone + "@s.whatsapp.net",
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send/message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gowa API error %d: %s", resp.StatusCode, string(text))
	}

	return nil
}
