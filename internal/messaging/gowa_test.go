package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendPostsBasicAuthPayload(t *testing.T) {
	var gotPhone, gotMessage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "gw-user" || pass != "gw-pass" {
			t.Errorf("missing or wrong basic auth")
		}
		if r.URL.Path != "/send/message" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body struct {
			Phone   string `json:"phone"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		gotPhone = body.Phone
		gotMessage = body.Message
		w.Write([]byte(`{"code": "SUCCESS"}`))
	}))
	defer srv.Close()

	c := NewGowaClient(srv.URL, "gw-user", "gw-pass")
	if err := c.Send(context.Background(), "6281234567890", "Time to: Read"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if gotPhone != "6281234567890@s.whatsapp.net" {
		t.Errorf("unexpected phone: %q", gotPhone)
	}
	if gotMessage != "Time to: Read" {
		t.Errorf("unexpected message: %q", gotMessage)
	}
}

func TestSendErrorsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("device not connected"))
	}))
	defer srv.Close()

	c := NewGowaClient(srv.URL, "u", "p")
	err := c.Send(context.Background(), "6281234567890", "hi")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "device not connected") {
		t.Errorf("error should carry status and body, got: %v", err)
	}
}
