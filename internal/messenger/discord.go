package messenger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const discordAPIBase = "https://discord.com/api/v10"

// DiscordClient implements ChatClient against the Discord REST API with a
// bot token.
type DiscordClient struct {
	token  string
	client *http.Client

	mu     sync.Mutex
	userID int64
}

func NewDiscordClient(token string) *DiscordClient {
	return &DiscordClient{
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// discordMessage is the wire shape of a message object; snowflakes arrive as
// strings.
type discordMessage struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	Embeds    []Embed `json:"embeds"`
	Author    struct {
		ID string `json:"id"`
	} `json:"author"`
}

func (m discordMessage) toMessage() Message {
	return Message{
		ID:        snowflake(m.ID),
		ChannelID: snowflake(m.ChannelID),
		AuthorID:  snowflake(m.Author.ID),
		Embeds:    m.Embeds,
	}
}

func snowflake(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

// ClientIDFromToken decodes the application id from the first token segment,
// used to derive the OAuth invite link.
func ClientIDFromToken(token string) string {
	first, _, _ := strings.Cut(token, ".")
	if decoded, err := base64.RawStdEncoding.DecodeString(first); err == nil {
		return string(decoded)
	}
	return ""
}

// InviteLink builds the OAuth authorize URL for the bot.
func InviteLink(token string) string {
	clientID := ClientIDFromToken(token)
	if clientID == "" {
		return ""
	}
	return fmt.Sprintf("https://discord.com/api/oauth2/authorize?client_id=%s&permissions=137439266880&scope=applications.commands%%20bot", clientID)
}

func (c *DiscordClient) BotUserID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	cached := c.userID
	c.mu.Unlock()
	if cached != 0 {
		return cached, nil
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &user); err != nil {
		return 0, err
	}

	id := snowflake(user.ID)
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
	return id, nil
}

func (c *DiscordClient) FetchMessage(ctx context.Context, channelID, messageID int64) (*Message, error) {
	var wire discordMessage
	path := fmt.Sprintf("/channels/%d/messages/%d", channelID, messageID)
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	msg := wire.toMessage()
	return &msg, nil
}

func (c *DiscordClient) SendMessage(ctx context.Context, channelID int64, embeds []Embed) (*Message, error) {
	var wire discordMessage
	path := fmt.Sprintf("/channels/%d/messages", channelID)
	body := map[string]any{"embeds": embeds}
	if err := c.do(ctx, http.MethodPost, path, body, &wire); err != nil {
		return nil, err
	}
	msg := wire.toMessage()
	return &msg, nil
}

func (c *DiscordClient) EditMessage(ctx context.Context, channelID, messageID int64, embeds []Embed) (*Message, error) {
	var wire discordMessage
	path := fmt.Sprintf("/channels/%d/messages/%d", channelID, messageID)
	body := map[string]any{"embeds": embeds}
	if err := c.do(ctx, http.MethodPatch, path, body, &wire); err != nil {
		return nil, err
	}
	msg := wire.toMessage()
	return &msg, nil
}

func (c *DiscordClient) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	path := fmt.Sprintf("/channels/%d/messages/%d", channelID, messageID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *DiscordClient) ListMessages(ctx context.Context, channelID int64, limit int) ([]Message, error) {
	var wires []discordMessage
	path := fmt.Sprintf("/channels/%d/messages?limit=%d", channelID, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &wires); err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(wires))
	for _, wire := range wires {
		messages = append(messages, wire.toMessage())
	}
	return messages, nil
}

func (c *DiscordClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("messenger: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, discordAPIBase+path, reader)
	if err != nil {
		return fmt.Errorf("messenger: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("messenger: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, ErrForbidden)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s %s: %w", method, path, ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("messenger: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("messenger: decode response: %w", err)
	}
	return nil
}
