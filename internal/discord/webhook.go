// Package discord posts operational notifications to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"rift-tracker/internal/riot"
)

const (
	colorRed   = 15158332 // 0xE74C3C
	colorGreen = 5763719  // 0x57F287

	defaultWebhookTimeout = 10 * time.Second

	maxAttempts = 3
)

// WebhookPayload is a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed is a Discord embed
type Embed struct {
	Title     string       `json:"title,omitempty"`
	Color     int          `json:"color,omitempty"`
	Fields    []EmbedField `json:"fields,omitempty"`
	Footer    *EmbedFooter `json:"footer,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// EmbedField is one name/value pair in an embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the footer of an embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// NewKeyRejectedPayload reports that Riot rejected the configured key.
// source names the process that noticed (server, collector).
func NewKeyRejectedPayload(source, apiKey string, processed int, runtime time.Duration) WebhookPayload {
	return WebhookPayload{
		Content: "@here Riot API key rejected",
		Embeds: []Embed{
			{
				Title: "🔑 API Key Rejected",
				Color: colorRed,
				Fields: []EmbedField{
					{Name: "Source", Value: source, Inline: true},
					{Name: "Key", Value: riot.MaskAPIKey(apiKey), Inline: true},
					{Name: "Matches Ingested", Value: formatNumber(processed), Inline: true},
					{Name: "Runtime", Value: formatDuration(runtime), Inline: true},
				},
				Footer:    &EmbedFooter{Text: "Set a fresh RIOT_API_KEY and restart"},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
}

// NewCrawlFinishedPayload summarizes a completed crawl.
func NewCrawlFinishedPayload(seed string, players, matches int, runtime time.Duration) WebhookPayload {
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: "✅ Crawl Finished",
				Color: colorGreen,
				Fields: []EmbedField{
					{Name: "Seed", Value: seed, Inline: true},
					{Name: "Players", Value: formatNumber(players), Inline: true},
					{Name: "Matches Ingested", Value: formatNumber(matches), Inline: true},
					{Name: "Runtime", Value: formatDuration(runtime), Inline: true},
				},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
}

// WebhookClient sends notifications to one Discord webhook
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: defaultWebhookTimeout},
	}
}

// SendKeyRejected sends the key-rejected notification
func (c *WebhookClient) SendKeyRejected(ctx context.Context, source, apiKey string, processed int, runtime time.Duration) error {
	return c.Send(ctx, NewKeyRejectedPayload(source, apiKey, processed, runtime))
}

// SendCrawlFinished sends the crawl summary
func (c *WebhookClient) SendCrawlFinished(ctx context.Context, seed string, players, matches int, runtime time.Duration) error {
	return c.Send(ctx, NewCrawlFinishedPayload(seed, players, matches, runtime))
}

// Send posts payload, waiting out Discord's Retry-After on 429.
func (c *WebhookClient) Send(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("webhook request failed: %w", err)
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := time.Second
			if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				wait = time.Duration(s) * time.Second
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		default:
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
	}

	return fmt.Errorf("webhook still rate limited after %d attempts", maxAttempts)
}

// formatNumber adds thousands separators (47832 -> "47,832")
func formatNumber(n int) string {
	s := strconv.Itoa(n)
	if n < 1000 {
		return s
	}
	var b bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// formatDuration renders "Xh Ym"
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
