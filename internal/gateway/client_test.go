package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeGateway upgrades one connection, sends hello and records every frame
// the client writes.
type fakeGateway struct {
	server *httptest.Server
	frames chan payload
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()

	fg := &fakeGateway{frames: make(chan payload, 16)}
	upgrader := websocket.Upgrader{}

	fg.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, _ := json.Marshal(helloData{HeartbeatInterval: 45000})
		if err := conn.WriteJSON(payload{Op: opHello, D: hello}); err != nil {
			return
		}

		for {
			var frame payload
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			fg.frames <- frame
		}
	}))
	t.Cleanup(fg.server.Close)
	return fg
}

func (fg *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(fg.server.URL, "http")
}

func (fg *fakeGateway) next(t *testing.T) payload {
	t.Helper()
	select {
	case frame := <-fg.frames:
		return frame
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for gateway frame")
		return payload{}
	}
}

func TestSessionIdentifiesAndUpdatesPresence(t *testing.T) {
	fg := newFakeGateway(t)

	client := NewClient("bot-token", zap.NewNop())
	client.url = fg.url()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	frame := fg.next(t)
	require.Equal(t, opIdentify, frame.Op)

	var ident identifyData
	require.NoError(t, json.Unmarshal(frame.D, &ident))
	assert.Equal(t, "bot-token", ident.Token)
	assert.Zero(t, ident.Intents)

	// Wait for the session to be live before pushing presence.
	require.Eventually(t, func() bool {
		return client.UpdatePresence(ctx, 0, "42 servers", true) == nil
	}, 5*time.Second, 10*time.Millisecond)

	frame = fg.next(t)
	require.Equal(t, opPresenceUpdate, frame.Op)

	var presence presenceData
	require.NoError(t, json.Unmarshal(frame.D, &presence))
	assert.Equal(t, "online", presence.Status)
	require.Len(t, presence.Activities, 1)
	assert.Equal(t, "42 servers", presence.Activities[0].Name)
}

func TestUpdatePresenceOfflineStatus(t *testing.T) {
	fg := newFakeGateway(t)

	client := NewClient("bot-token", zap.NewNop())
	client.url = fg.url()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	fg.next(t) // identify

	require.Eventually(t, func() bool {
		return client.UpdatePresence(ctx, 0, "0/16 My Server", false) == nil
	}, 5*time.Second, 10*time.Millisecond)

	frame := fg.next(t)
	var presence presenceData
	require.NoError(t, json.Unmarshal(frame.D, &presence))
	assert.Equal(t, "dnd", presence.Status)
}

func TestUpdatePresenceDisconnected(t *testing.T) {
	client := NewClient("bot-token", zap.NewNop())
	err := client.UpdatePresence(context.Background(), 0, "x", true)
	assert.ErrorIs(t, err, ErrDisconnected)
}
