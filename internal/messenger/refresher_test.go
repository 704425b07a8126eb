package messenger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/catalog"
	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/probe"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

type recordingClient struct {
	mu        sync.Mutex
	fetchErr  error
	editErr   error
	messages  map[int64]*Message
	edits     []int64
	sent      []int64
	deleted   []int64
	nextID    int64
	listReply []Message
}

func newRecordingClient() *recordingClient {
	return &recordingClient{messages: map[int64]*Message{}, nextID: 1000}
}

func (c *recordingClient) BotUserID(context.Context) (int64, error) { return 1, nil }

func (c *recordingClient) FetchMessage(_ context.Context, channelID, messageID int64) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	if message, ok := c.messages[messageID]; ok {
		return message, nil
	}
	return &Message{ID: messageID, ChannelID: channelID, AuthorID: 1}, nil
}

func (c *recordingClient) SendMessage(_ context.Context, channelID int64, embeds []Embed) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	message := &Message{ID: c.nextID, ChannelID: channelID, AuthorID: 1, Embeds: embeds}
	c.sent = append(c.sent, c.nextID)
	c.messages[c.nextID] = message
	return message, nil
}

func (c *recordingClient) EditMessage(_ context.Context, channelID, messageID int64, embeds []Embed) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editErr != nil {
		return nil, c.editErr
	}
	c.edits = append(c.edits, messageID)
	return &Message{ID: messageID, ChannelID: channelID, AuthorID: 1, Embeds: embeds}, nil
}

func (c *recordingClient) DeleteMessage(_ context.Context, _, messageID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *recordingClient) ListMessages(context.Context, int64, int) ([]Message, error) {
	return c.listReply, nil
}

type messageIDRepo struct {
	repositories.ServerRepository

	servers []db.Server
	cleared []db.Server
}

func (r *messageIDRepo) AllServers(context.Context, repositories.ServerFilter) ([]db.Server, error) {
	return r.servers, nil
}

func (r *messageIDRepo) UpdateServersMessageID(_ context.Context, servers []db.Server) error {
	r.cleared = append(r.cleared, servers...)
	return nil
}

func newTestRefresher(t *testing.T, client ChatClient, repo repositories.ServerRepository) *Refresher {
	t.Helper()
	games, err := catalog.Load()
	require.NoError(t, err)
	renderer := &Renderer{Catalog: games, Version: "test"}
	return NewRefresher(client, repo, renderer, 3*time.Second, zap.NewNop())
}

func serverWithMessage(id int64, name string) db.Server {
	messageID := id
	return db.Server{
		GameID:    "tf2",
		ChannelID: 55,
		MessageID: &messageID,
		StyleID:   "Medium",
		StyleData: db.JSONMap{},
		Result:    db.ProbeResult{Probe: probe.Probe{Name: name}},
	}
}

func TestGroupByMessageIDKeepsOrder(t *testing.T) {
	servers := []db.Server{
		serverWithMessage(30, "c"),
		serverWithMessage(10, "a"),
		serverWithMessage(30, "c2"),
		{GameID: "tf2"}, // unpublished, skipped
		serverWithMessage(20, "b"),
	}

	grouped, order := GroupByMessageID(servers)
	assert.Equal(t, []int64{30, 10, 20}, order)
	assert.Len(t, grouped[30], 2)
	assert.Len(t, grouped[10], 1)
}

func TestEditMessagesEditsEachGroupOnce(t *testing.T) {
	client := newRecordingClient()
	refresher := newTestRefresher(t, client, &messageIDRepo{})

	servers := []db.Server{
		serverWithMessage(10, "a"),
		serverWithMessage(10, "b"),
		serverWithMessage(20, "c"),
	}

	refresher.EditMessages(context.Background(), servers)
	assert.ElementsMatch(t, []int64{10, 20}, client.edits)
}

func TestEditMessageNotFoundClearsMessageID(t *testing.T) {
	client := newRecordingClient()
	client.editErr = ErrNotFound
	repo := &messageIDRepo{}
	refresher := newTestRefresher(t, client, repo)

	refresher.EditMessages(context.Background(), []db.Server{serverWithMessage(10, "a")})

	require.NotEmpty(t, repo.cleared)
	assert.Nil(t, repo.cleared[0].MessageID)
	assert.Nil(t, refresher.cachedMessage(10))
}

func TestEditMessageForbiddenEvictsOnly(t *testing.T) {
	client := newRecordingClient()
	client.editErr = ErrForbidden
	repo := &messageIDRepo{}
	refresher := newTestRefresher(t, client, repo)

	refresher.EditMessages(context.Background(), []db.Server{serverWithMessage(10, "a")})

	assert.Empty(t, repo.cleared)
	assert.Nil(t, refresher.cachedMessage(10))
}

func TestEmbedChunks(t *testing.T) {
	servers := make([]db.Server, 12)
	for i := range servers {
		servers[i].StyleID = "Medium"
	}

	chunks := EmbedChunks(servers, 10)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 10)
	assert.Len(t, chunks[1], 2)
}

func TestEmbedChunksStandaloneGetsOwnMessage(t *testing.T) {
	servers := []db.Server{
		{StyleID: "Medium"},
		{StyleID: "ExtraLarge"},
		{StyleID: "Medium"},
	}

	chunks := EmbedChunks(servers, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, "ExtraLarge", chunks[1][0].StyleID)
	assert.Len(t, chunks[1], 1)
}

func TestResendPurgesAndRecordsIDs(t *testing.T) {
	client := newRecordingClient()
	client.listReply = []Message{
		{ID: 5, AuthorID: 1},
		{ID: 6, AuthorID: 99}, // someone else's message stays
	}

	repo := &messageIDRepo{servers: []db.Server{
		serverWithMessage(10, "a"),
		serverWithMessage(20, "b"),
	}}
	refresher := newTestRefresher(t, client, repo)

	require.NoError(t, refresher.Resend(context.Background(), 55))

	assert.Equal(t, []int64{5}, client.deleted)
	require.Len(t, client.sent, 1)

	require.Len(t, repo.cleared, 2)
	for _, server := range repo.cleared {
		require.NotNil(t, server.MessageID)
		assert.Equal(t, client.sent[0], *server.MessageID)
	}
}
