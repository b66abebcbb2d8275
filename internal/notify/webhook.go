package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "giftboard/pkg/logx"
)

const webhookBodyLimit = 4 << 10

// Webhook posts messages to a Discord-compatible webhook endpoint.
type Webhook struct {
	url    string
	client *http.Client
	log    logx.Logger
}

func NewWebhook(url string, log logx.Logger) (*Webhook, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("notify: webhook url is empty")
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}, nil
}

func (w *Webhook) Post(ctx context.Context, content string) error {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, webhookBodyLimit))
		return &DeliveryError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
