package messenger

import (
	"context"
	"errors"
)

// Sentinel errors mapped from the chat platform's responses.
var (
	// ErrNotFound is returned when a channel or message no longer exists.
	ErrNotFound = errors.New("messenger: not found")

	// ErrForbidden is returned when the bot lacks the required permission.
	ErrForbidden = errors.New("messenger: forbidden")

	// ErrRateLimited is returned on a 429 response.
	ErrRateLimited = errors.New("messenger: rate limited")
)

// Message is a published status message.
type Message struct {
	ID        int64
	ChannelID int64
	AuthorID  int64
	Embeds    []Embed
}

// ChatClient is the narrow REST surface the refresher needs. The production
// implementation talks to Discord; tests substitute a fake.
type ChatClient interface {
	// BotUserID returns the authenticated bot's user id.
	BotUserID(ctx context.Context) (int64, error)

	FetchMessage(ctx context.Context, channelID, messageID int64) (*Message, error)
	SendMessage(ctx context.Context, channelID int64, embeds []Embed) (*Message, error)
	EditMessage(ctx context.Context, channelID, messageID int64, embeds []Embed) (*Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID int64) error

	// ListMessages returns up to limit recent messages in the channel,
	// newest first.
	ListMessages(ctx context.Context, channelID int64, limit int) ([]Message, error)
}
