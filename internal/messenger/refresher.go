package messenger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

// editChunkSize bounds concurrent message requests to stay inside the
// platform's 50 req/s budget with headroom for other callers.
const editChunkSize = 25

// Refresher keeps published status messages in sync with probe results. One
// message may render several servers (up to ten embeds); a standalone style
// claims a whole message.
type Refresher struct {
	client   ChatClient
	servers  repositories.ServerRepository
	renderer *Renderer
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cache   map[int64]*Message
	fetched bool
}

func NewRefresher(client ChatClient, servers repositories.ServerRepository, renderer *Renderer, editTimeout time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		client:   client,
		servers:  servers,
		renderer: renderer,
		timeout:  editTimeout,
		logger:   logger.Named("messenger"),
		cache:    map[int64]*Message{},
	}
}

// GroupByMessageID buckets servers under their message id, skipping rows
// that have no published message yet. Bucket order follows first appearance,
// so embeds keep their channel position order.
func GroupByMessageID(servers []db.Server) (map[int64][]db.Server, []int64) {
	grouped := map[int64][]db.Server{}
	var order []int64

	for _, server := range servers {
		if server.MessageID == nil || *server.MessageID == 0 {
			continue
		}
		id := *server.MessageID
		if _, ok := grouped[id]; !ok {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], server)
	}
	return grouped, order
}

// EditMessages re-renders every published message for the given servers. The
// first call fetches messages into the cache instead of assuming they exist.
func (r *Refresher) EditMessages(ctx context.Context, servers []db.Server) {
	r.mu.Lock()
	firstRun := !r.fetched
	r.fetched = true
	r.mu.Unlock()

	if firstRun {
		r.fetchMessages(ctx, servers)
	}

	grouped, order := GroupByMessageID(servers)
	start := time.Now()
	var failed atomic.Int64

	forEachChunk(ctx, order, editChunkSize, func(messageID int64) {
		if !r.editMessage(ctx, messageID, grouped[messageID]) {
			failed.Add(1)
		}
	})

	r.logger.Info("edit messages",
		zap.Int("total", len(order)),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", time.Since(start)))
}

// editMessage renders the group and edits its message under the per-edit
// timeout. A vanished or unwritable message is evicted; not-found also
// clears message_id so the next resend republishes.
func (r *Refresher) editMessage(ctx context.Context, messageID int64, servers []db.Server) bool {
	if len(servers) == 0 {
		return true
	}

	message := r.cachedMessage(messageID)
	if message == nil {
		var err error
		if message, err = r.fetchMessage(ctx, &servers[0]); err != nil || message == nil {
			return false
		}
	}

	embeds := make([]Embed, 0, len(servers))
	for i := range servers {
		embeds = append(embeds, r.renderer.Render(&servers[i]))
	}

	editCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	updated, err := r.client.EditMessage(editCtx, message.ChannelID, messageID, embeds)
	switch {
	case err == nil:
		r.storeMessage(updated)
		return true
	case errors.Is(err, ErrNotFound):
		r.evict(messageID)
		r.clearMessageID(ctx, servers)
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrRateLimited), errors.Is(err, context.DeadlineExceeded):
		r.evict(messageID)
	}

	r.logger.Debug("edit message failed", zap.Int64("message_id", messageID), zap.Error(err))
	return false
}

// fetchMessages warms the cache on the first tick after boot.
func (r *Refresher) fetchMessages(ctx context.Context, servers []db.Server) {
	grouped, order := GroupByMessageID(servers)
	start := time.Now()
	var failed atomic.Int64

	forEachChunk(ctx, order, editChunkSize, func(messageID int64) {
		group := grouped[messageID]
		if _, err := r.fetchMessage(ctx, &group[0]); err != nil {
			failed.Add(1)
		}
	})

	r.logger.Info("fetch messages",
		zap.Int("total", len(order)),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", time.Since(start)))
}

func (r *Refresher) fetchMessage(ctx context.Context, server *db.Server) (*Message, error) {
	if server.MessageID == nil {
		return nil, nil
	}

	if message := r.cachedMessage(*server.MessageID); message != nil {
		return message, nil
	}

	message, err := r.client.FetchMessage(ctx, server.ChannelID, *server.MessageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			r.clearMessageID(ctx, []db.Server{*server})
		}
		return nil, err
	}

	r.storeMessage(message)
	return message, nil
}

// Resend republishes a channel from scratch: purge the bot's old messages,
// then send fresh ones in embed chunks, recording the new message ids.
func (r *Refresher) Resend(ctx context.Context, channelID int64) error {
	servers, err := r.servers.AllServers(ctx, repositories.ServerFilter{ChannelID: channelID})
	if err != nil {
		return err
	}

	if err := r.purgeChannel(ctx, channelID); err != nil {
		return err
	}

	var updated []db.Server
	for _, chunk := range EmbedChunks(servers, 10) {
		embeds := make([]Embed, 0, len(chunk))
		for i := range chunk {
			embeds = append(embeds, r.renderer.Render(&chunk[i]))
		}

		message, err := r.client.SendMessage(ctx, channelID, embeds)
		if err != nil {
			return err
		}
		r.storeMessage(message)

		for _, server := range chunk {
			server.MessageID = &message.ID
			updated = append(updated, server)
		}
	}

	return r.servers.UpdateServersMessageID(ctx, updated)
}

// purgeChannel deletes the bot's own recent messages in the channel.
func (r *Refresher) purgeChannel(ctx context.Context, channelID int64) error {
	botID, err := r.client.BotUserID(ctx)
	if err != nil {
		return err
	}

	messages, err := r.client.ListMessages(ctx, channelID, 100)
	if err != nil {
		return err
	}

	for _, message := range messages {
		if message.AuthorID != botID {
			continue
		}
		if err := r.client.DeleteMessage(ctx, channelID, message.ID); err != nil && !errors.Is(err, ErrNotFound) {
			r.logger.Debug("purge delete failed", zap.Int64("message_id", message.ID), zap.Error(err))
		}
		r.evict(message.ID)
	}
	return nil
}

// EmbedChunks partitions servers into message-sized groups: at most n embeds
// per message, and a standalone-styled server alone in its own message.
func EmbedChunks(servers []db.Server, n int) [][]db.Server {
	var chunks [][]db.Server
	var buffer []db.Server

	for _, server := range servers {
		if LookupStyle(server.StyleID).Standalone {
			if len(buffer) > 0 {
				chunks = append(chunks, buffer)
				buffer = nil
			}
			chunks = append(chunks, []db.Server{server})
			continue
		}

		buffer = append(buffer, server)
		if len(buffer) == n {
			chunks = append(chunks, buffer)
			buffer = nil
		}
	}

	if len(buffer) > 0 {
		chunks = append(chunks, buffer)
	}
	return chunks
}

func (r *Refresher) clearMessageID(ctx context.Context, servers []db.Server) {
	cleared := make([]db.Server, 0, len(servers))
	for _, server := range servers {
		server.MessageID = nil
		cleared = append(cleared, server)
	}
	if err := r.servers.UpdateServersMessageID(ctx, cleared); err != nil {
		r.logger.Warn("clear message id", zap.Error(err))
	}
}

func (r *Refresher) cachedMessage(id int64) *Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache[id]
}

func (r *Refresher) storeMessage(message *Message) {
	if message == nil {
		return
	}
	r.mu.Lock()
	r.cache[message.ID] = message
	r.mu.Unlock()
}

func (r *Refresher) evict(id int64) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

// forEachChunk runs fn over ids in concurrent chunks, sleeping out the
// remainder of each second so the aggregate request rate stays on budget.
func forEachChunk(ctx context.Context, ids []int64, size int, fn func(int64)) {
	for start := 0; start < len(ids); start += size {
		if ctx.Err() != nil {
			return
		}

		end := start + size
		if end > len(ids) {
			end = len(ids)
		}

		chunkStart := time.Now()
		var wg sync.WaitGroup
		for _, id := range ids[start:end] {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				fn(id)
			}(id)
		}
		wg.Wait()

		if end < len(ids) {
			if remaining := time.Second - time.Since(chunkStart); remaining > 0 {
				select {
				case <-time.After(remaining):
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
