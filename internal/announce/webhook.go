package announce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "tubebot/pkg/logx"
)

// Webhook posts Discord-compatible webhook payloads.
type Webhook struct {
	url    string
	style  Style
	client *http.Client
	log    logx.Logger
}

type webhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []webhookEmbed `json:"embeds,omitempty"`
}

type webhookEmbed struct {
	Title     string            `json:"title"`
	URL       string            `json:"url"`
	Color     int               `json:"color"`
	Thumbnail *webhookThumbnail `json:"thumbnail,omitempty"`
	Footer    *webhookFooter    `json:"footer,omitempty"`
}

type webhookThumbnail struct {
	URL string `json:"url"`
}

type webhookFooter struct {
	Text string `json:"text"`
}

func NewWebhook(url string, style Style, client *http.Client, log logx.Logger) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Webhook{url: strings.TrimSpace(url), style: style, client: client, log: log.With(logx.String("comp", "announce.webhook"))}
}

func buildPayload(a Announcement, style Style) webhookPayload {
	if style != StyleCard {
		return webhookPayload{Content: Text(a, Markdown)}
	}
	e := webhookEmbed{
		Title:  strings.TrimSpace(a.Title),
		URL:    a.URL,
		Color:  a.Color,
		Footer: &webhookFooter{Text: Label(a.Category)},
	}
	if a.Thumbnail != "" {
		e.Thumbnail = &webhookThumbnail{URL: a.Thumbnail}
	}
	return webhookPayload{Content: Headline(a, Markdown), Embeds: []webhookEmbed{e}}
}

func (w *Webhook) Deliver(ctx context.Context, a Announcement) error {
	if w.url == "" {
		return deliveryErr(a, ErrNoDestination)
	}
	body, err := json.Marshal(buildPayload(a, w.style))
	if err != nil {
		return deliveryErr(a, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return deliveryErr(a, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return deliveryErr(a, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return deliveryErr(a, fmt.Errorf("webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	return nil
}
