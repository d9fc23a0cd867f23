package discord

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestKeyRejectedPayload_Format(t *testing.T) {
	payload := NewKeyRejectedPayload("collector", "RGAPI-12345678-aaaa-bbbb-cccc-1234567890ab", 47832, 18*time.Hour+32*time.Minute)

	if !strings.Contains(payload.Content, "@here") {
		t.Error("Expected @here mention in content")
	}
	if len(payload.Embeds) != 1 {
		t.Fatalf("Expected 1 embed, got %d", len(payload.Embeds))
	}

	embed := payload.Embeds[0]
	if embed.Color != colorRed {
		t.Errorf("Expected red color, got: %d", embed.Color)
	}

	want := map[string]string{
		"Source":           "collector",
		"Key":              "RGAPI...90ab",
		"Matches Ingested": "47,832",
		"Runtime":          "18h 32m",
	}
	for _, f := range embed.Fields {
		if v, ok := want[f.Name]; ok && v != f.Value {
			t.Errorf("Field %q = %q, want %q", f.Name, f.Value, v)
		}
		delete(want, f.Name)
	}
	if len(want) != 0 {
		t.Errorf("Missing fields: %v", want)
	}
	if embed.Footer == nil || !strings.Contains(embed.Footer.Text, "RIOT_API_KEY") {
		t.Error("Expected footer with instructions")
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		47832:   "47,832",
		1234567: "1,234,567",
	}
	for in, want := range tests {
		if got := formatNumber(in); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestWebhookClient_Send(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected application/json, got %s", ct)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	if err := client.SendCrawlFinished(context.Background(), "Alpha#NA1", 12, 240, 90*time.Minute); err != nil {
		t.Fatalf("SendCrawlFinished failed: %v", err)
	}

	var got WebhookPayload
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("Body is not a webhook payload: %v", err)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Color != colorGreen {
		t.Errorf("Unexpected payload: %s", body)
	}
}

func TestWebhookClient_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewWebhookClient(server.URL).SendKeyRejected(context.Background(), "server", "RGAPI-x", 0, time.Minute)
	if err != nil {
		t.Fatalf("Expected success after retry, got: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
}

func TestWebhookClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewWebhookClient(server.URL).Send(context.Background(), WebhookPayload{Content: "hi"})
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("Expected status 400 error, got: %v", err)
	}
}
