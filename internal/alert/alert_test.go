package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/catalog"
	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/messenger"
	"github.com/gswatch-io/gswatch/internal/probe"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

type flagRepo struct {
	repositories.ServerRepository

	mu      sync.Mutex
	updated []db.Server
}

func (r *flagRepo) UpdateServers(_ context.Context, servers []db.Server) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, servers...)
	return nil
}

func newTestEngine(t *testing.T, repo repositories.ServerRepository, interval time.Duration) *Engine {
	t.Helper()
	games, err := catalog.Load()
	require.NoError(t, err)
	renderer := &messenger.Renderer{Catalog: games, Version: "test"}
	return NewEngine(repo, renderer, interval, zap.NewNop())
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, 8, Threshold(15*time.Second))
	assert.Equal(t, 2, Threshold(60*time.Second))
	assert.Equal(t, 2, Threshold(5*time.Minute))
}

func offlineServer(failCount int) db.Server {
	server := db.Server{
		GameID:    "tf2",
		Address:   "1.2.3.4",
		QueryPort: 27015,
		StyleData: db.JSONMap{},
		Result:    db.ProbeResult{Probe: probe.Probe{Name: "s"}},
	}
	server.Result.SetFailQueryCount(failCount)
	return server
}

func TestShouldAlertOfflineFiresExactlyAtThreshold(t *testing.T) {
	engine := newTestEngine(t, &flagRepo{}, time.Minute) // threshold 2

	below := offlineServer(1)
	assert.False(t, engine.ShouldAlert(&below))

	at := offlineServer(2)
	assert.True(t, engine.ShouldAlert(&at))

	// Past the threshold the alert already fired; stay silent.
	past := offlineServer(3)
	assert.False(t, engine.ShouldAlert(&past))
}

func TestShouldAlertOnlineConsumesFlag(t *testing.T) {
	engine := newTestEngine(t, &flagRepo{}, time.Minute)

	server := offlineServer(0)
	server.Status = true
	server.Result.SetSentOfflineAlert(true)

	assert.True(t, engine.ShouldAlert(&server))
	assert.False(t, server.Result.SentOfflineAlert())

	// Second evaluation: flag consumed, no repeat alert.
	assert.False(t, engine.ShouldAlert(&server))
}

func TestShouldAlertOnlineWithoutFlag(t *testing.T) {
	engine := newTestEngine(t, &flagRepo{}, time.Minute)

	server := offlineServer(0)
	server.Status = true
	assert.False(t, engine.ShouldAlert(&server))
}

func TestRunDeliversWebhookAndPersistsFlag(t *testing.T) {
	var (
		mu       sync.Mutex
		payloads []webhookPayload
	)
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		payloads = append(payloads, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	repo := &flagRepo{}
	engine := newTestEngine(t, repo, time.Minute)

	server := offlineServer(2)
	server.StyleData["_alert_webhook_url"] = webhook.URL
	server.StyleData["_alert_content"] = "@here"

	engine.Run(context.Background(), []db.Server{server})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 1)
	assert.Equal(t, "@here", payloads[0].Content)
	assert.Equal(t, webhookUsername, payloads[0].Username)
	require.Len(t, payloads[0].Embeds, 1)
	assert.Equal(t, "Your server seems to be down.", payloads[0].Embeds[0].Description)

	require.Len(t, repo.updated, 1)
	assert.True(t, repo.updated[0].Result.SentOfflineAlert())
}

func TestRunSkipsServersWithoutWebhook(t *testing.T) {
	repo := &flagRepo{}
	engine := newTestEngine(t, repo, time.Minute)

	server := offlineServer(2)
	engine.Run(context.Background(), []db.Server{server})

	// Flag still set and persisted so the online edge can be detected later.
	require.Len(t, repo.updated, 1)
	assert.True(t, repo.updated[0].Result.SentOfflineAlert())
}

func TestRunNothingDue(t *testing.T) {
	repo := &flagRepo{}
	engine := newTestEngine(t, repo, time.Minute)

	engine.Run(context.Background(), []db.Server{offlineServer(1)})
	assert.Empty(t, repo.updated)
}
