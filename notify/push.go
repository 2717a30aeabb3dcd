package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultPushEndpoint is the Expo push gateway.
const DefaultPushEndpoint = "https://exp.host/--/api/v2/push/send"

// PushSender posts notifications to an HTTP push gateway (Expo-compatible
// payload: to/title/body).
type PushSender struct {
	endpoint string
	client   *http.Client
}

func NewPushSender(endpoint string) *PushSender {
	return &PushSender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *PushSender) Send(ctx context.Context, address, title, body string) error {
	payload, err := json.Marshal(map[string]string{
		"to":    address,
		"title": title,
		"body":  body,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send push: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: push gateway returned %d", resp.StatusCode)
	}
	return nil
}
