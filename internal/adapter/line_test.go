package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"

	"github.com/elite42/reservation-notifier/internal/domain"
)

func TestLineAdapterSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody lineRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer line-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if r.URL.Path != "/message/push" {
			t.Errorf("path = %s, want /message/push", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Header().Set("X-Line-Request-Id", "line-req-9")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	a := NewLineAdapterWithClient("line-token", server.URL, resty.New())

	result, err := a.Send(context.Background(), testNotification(domain.ChannelLine))
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if result.MessageID != "line-req-9" {
		t.Fatalf("MessageID = %q, want %q", result.MessageID, "line-req-9")
	}
	if gotBody.To != "chat-123" {
		t.Fatalf("request.to = %q, want %q", gotBody.To, "chat-123")
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Type != "text" {
		t.Fatalf("messages = %+v, want single text message", gotBody.Messages)
	}
}

func TestLineAdapterUsesAPIErrorMessage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"The user hasn't added the LINE Official Account as a friend"}`))
	}))
	defer server.Close()

	a := NewLineAdapterWithClient("line-token", server.URL, resty.New())

	_, err := a.Send(context.Background(), testNotification(domain.ChannelLine))
	if err == nil {
		t.Fatal("Send() expected error, got nil")
	}
	if IsTransient(err) {
		t.Fatalf("400 should be permanent, got transient: %v", err)
	}
}
