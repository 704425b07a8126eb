package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gswatch-io/gswatch/internal/messenger"
)

const (
	webhookUsername  = "Game Server Monitor Alert"
	webhookAvatarURL = "https://avatars.githubusercontent.com/u/61296017"
)

// webhookPayload is the execute-webhook JSON body.
type webhookPayload struct {
	Content   string            `json:"content,omitempty"`
	Username  string            `json:"username"`
	AvatarURL string            `json:"avatar_url"`
	Embeds    []messenger.Embed `json:"embeds"`
}

// webhookSender posts alert payloads to per-server webhook URLs.
type webhookSender struct {
	client *http.Client
}

func newWebhookSender() *webhookSender {
	return &webhookSender{client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *webhookSender) Send(ctx context.Context, url, content string, embed messenger.Embed) error {
	data, err := json.Marshal(webhookPayload{
		Content:   strings.TrimSpace(content),
		Username:  webhookUsername,
		AvatarURL: webhookAvatarURL,
		Embeds:    []messenger.Embed{embed},
	})
	if err != nil {
		return fmt.Errorf("alert: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("alert: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert: webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("alert: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
