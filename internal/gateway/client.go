package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// gatewayURL is the platform's gateway endpoint. v10, JSON encoding.
	gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

	// writeWait is the maximum time allowed to write a frame to the peer.
	// If the write does not complete within this window the connection is
	// closed and the run loop redials.
	writeWait = 10 * time.Second

	// reconnectMax caps the exponential backoff between redial attempts.
	reconnectMax = 2 * time.Minute
)

// ErrDisconnected is returned by UpdatePresence while no session is live.
var ErrDisconnected = errors.New("gateway: not connected")

// Client is a minimal gateway session: identify, heartbeat, presence.
// It subscribes to no event intents, so dispatch traffic stays near zero.
type Client struct {
	token  string
	url    string
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	seq  *int64
}

func NewClient(token string, logger *zap.Logger) *Client {
	return &Client{
		token:  token,
		url:    gatewayURL,
		logger: logger.Named("gateway"),
	}
}

// Run dials the gateway and keeps the session alive until ctx is cancelled,
// redialing with exponential backoff after every session drop.
func (c *Client) Run(ctx context.Context) {
	backoff := time.Second

	for ctx.Err() == nil {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("session ended", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// session runs one gateway connection from dial to disconnect.
func (c *Client) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("gateway: dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.seq = nil
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	// Close the socket when ctx is cancelled so the read loop unblocks.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	hello, err := c.awaitHello(conn)
	if err != nil {
		return err
	}

	if err := c.identify(); err != nil {
		return err
	}
	c.logger.Info("session established",
		zap.Duration("heartbeat_interval", time.Duration(hello.HeartbeatInterval)*time.Millisecond))

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go c.heartbeatLoop(heartbeatCtx, time.Duration(hello.HeartbeatInterval)*time.Millisecond)

	return c.readLoop(conn)
}

func (c *Client) awaitHello(conn *websocket.Conn) (*helloData, error) {
	var frame payload
	if err := conn.ReadJSON(&frame); err != nil {
		return nil, fmt.Errorf("gateway: read hello: %w", err)
	}
	if frame.Op != opHello {
		return nil, fmt.Errorf("gateway: expected hello, got op %d", frame.Op)
	}

	var hello helloData
	if err := json.Unmarshal(frame.D, &hello); err != nil {
		return nil, fmt.Errorf("gateway: decode hello: %w", err)
	}
	if hello.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("gateway: invalid heartbeat interval %d", hello.HeartbeatInterval)
	}
	return &hello, nil
}

func (c *Client) identify() error {
	return c.write(outPayload{
		Op: opIdentify,
		D: identifyData{
			Token:   c.token,
			Intents: 0,
			Properties: identifyProperties{
				OS:      runtime.GOOS,
				Browser: "gswatch",
				Device:  "gswatch",
			},
		},
	})
}

// readLoop consumes incoming frames until the connection drops. Its only
// jobs are tracking the dispatch sequence number and honoring server-side
// heartbeat and reconnect requests.
func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		var frame payload
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("gateway: read: %w", err)
		}

		if frame.S != nil {
			c.mu.Lock()
			c.seq = frame.S
			c.mu.Unlock()
		}

		switch frame.Op {
		case opDispatch, opHeartbeatAck:

		case opHeartbeat:
			if err := c.sendHeartbeat(); err != nil {
				return err
			}

		case opReconnect, opInvalidSession:
			return fmt.Errorf("gateway: server requested reconnect (op %d)", frame.Op)
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendHeartbeat(); err != nil {
				c.logger.Debug("heartbeat", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) sendHeartbeat() error {
	c.mu.Lock()
	seq := c.seq
	c.mu.Unlock()
	return c.write(outPayload{Op: opHeartbeat, D: seq})
}

// UpdatePresence publishes the bot's activity line. online=false maps to the
// do-not-disturb status so the sidebar dot mirrors the monitored server.
func (c *Client) UpdatePresence(_ context.Context, activityType int, name string, online bool) error {
	status := "online"
	if !online {
		status = "dnd"
	}

	var activities []activity
	if name != "" {
		activities = []activity{{Name: name, Type: activityType}}
	}

	return c.write(outPayload{
		Op: opPresenceUpdate,
		D: presenceData{
			Activities: activities,
			Status:     status,
		},
	})
}

// write serializes one frame under the connection lock. gorilla allows only
// one concurrent writer per connection.
func (c *Client) write(frame outPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrDisconnected
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("gateway: write op %d: %w", frame.Op, err)
	}
	return nil
}
