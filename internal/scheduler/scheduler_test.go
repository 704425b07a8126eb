package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/alert"
	"github.com/gswatch-io/gswatch/internal/catalog"
	"github.com/gswatch-io/gswatch/internal/config"
	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/messenger"
	"github.com/gswatch-io/gswatch/internal/presence"
	"github.com/gswatch-io/gswatch/internal/probe"
	"github.com/gswatch-io/gswatch/internal/protocol"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

type fakeServerRepo struct {
	targets []repositories.ProbeTarget
	servers []db.Server
	counts  map[string]int

	updated [][]db.Server
}

func (f *fakeServerRepo) AllServers(context.Context, repositories.ServerFilter) ([]db.Server, error) {
	return f.servers, nil
}

func (f *fakeServerRepo) DistinctServers(context.Context) ([]repositories.ProbeTarget, error) {
	return f.targets, nil
}

func (f *fakeServerRepo) CountPerGame(context.Context) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeServerRepo) CountPerChannel(context.Context) (map[int64]int, error) {
	return nil, nil
}

func (f *fakeServerRepo) Statistics(context.Context) (repositories.Statistics, error) {
	return repositories.Statistics{UniqueServers: int64(len(f.targets))}, nil
}

func (f *fakeServerRepo) FindServer(context.Context, int64, string, int) (*db.Server, error) {
	return nil, repositories.ErrNotFound
}

func (f *fakeServerRepo) AddServer(_ context.Context, s *db.Server) (*db.Server, error) {
	return s, nil
}

func (f *fakeServerRepo) UpdateServers(_ context.Context, servers []db.Server) error {
	f.updated = append(f.updated, servers)
	return nil
}

func (f *fakeServerRepo) UpdateServersMessageID(context.Context, []db.Server) error { return nil }
func (f *fakeServerRepo) UpdateServersStyleData(context.Context, []db.Server) error { return nil }
func (f *fakeServerRepo) UpdateServerStyleID(context.Context, *db.Server) error     { return nil }

func (f *fakeServerRepo) MoveServer(context.Context, *db.Server, bool) ([]db.Server, error) {
	return nil, nil
}

func (f *fakeServerRepo) MoveServersToChannel(context.Context, []db.Server, int64) error {
	return nil
}

func (f *fakeServerRepo) DeleteServers(context.Context, repositories.DeleteFilter) error {
	return nil
}

type fakeMetricRepo struct {
	updated [][]db.Server
	limit   int
}

func (f *fakeMetricRepo) UpdateMetrics(_ context.Context, servers []db.Server, limit int) error {
	f.updated = append(f.updated, servers)
	f.limit = limit
	return nil
}

func (f *fakeMetricRepo) Samples(context.Context, string, string, int, db.JSONMap) ([]db.Metric, error) {
	return nil, nil
}

type fakeChat struct{}

func (fakeChat) BotUserID(context.Context) (int64, error) { return 1, nil }

func (fakeChat) FetchMessage(context.Context, int64, int64) (*messenger.Message, error) {
	return nil, messenger.ErrNotFound
}

func (fakeChat) SendMessage(_ context.Context, channelID int64, embeds []messenger.Embed) (*messenger.Message, error) {
	return &messenger.Message{ID: 1, ChannelID: channelID, Embeds: embeds}, nil
}

func (fakeChat) EditMessage(_ context.Context, channelID, messageID int64, embeds []messenger.Embed) (*messenger.Message, error) {
	return &messenger.Message{ID: messageID, ChannelID: channelID, Embeds: embeds}, nil
}

func (fakeChat) DeleteMessage(context.Context, int64, int64) error { return nil }

func (fakeChat) ListMessages(context.Context, int64, int) ([]messenger.Message, error) {
	return nil, nil
}

type fakeUpdater struct {
	name   string
	online bool
	calls  int
}

func (f *fakeUpdater) UpdatePresence(_ context.Context, _ int, name string, online bool) error {
	f.name = name
	f.online = online
	f.calls++
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		QueryInterval:      time.Minute,
		QueryTimeout:       time.Second,
		ChunkSize:          50,
		MetricsEnable:      true,
		MetricsRecordLimit: 500,
	}
}

func newTestScheduler(t *testing.T, repo *fakeServerRepo, metrics *fakeMetricRepo, cfg *config.Config) (*Scheduler, *fakeUpdater) {
	t.Helper()

	games, err := catalog.Load()
	require.NoError(t, err)

	logger := zap.NewNop()
	renderer := &messenger.Renderer{Catalog: games, Version: "test"}
	refresher := messenger.NewRefresher(fakeChat{}, repo, renderer, cfg.QueryTimeout, logger)
	alerts := alert.NewEngine(repo, renderer, cfg.QueryInterval, logger)
	updater := &fakeUpdater{}
	presenceTask := presence.NewTask(repo, updater, cfg, logger)

	s, err := New(repo, metrics, protocol.NewRegistry(protocol.Options{}), games, refresher, alerts, presenceTask, cfg, logger)
	require.NoError(t, err)
	return s, updater
}

func offlineResult(since int64, failCount int) db.ProbeResult {
	var result db.ProbeResult
	result.SetFailQueryCount(failCount)
	result.MarkOffline(since)
	result.SetFailQueryCount(failCount)
	return result
}

func TestFilterDisabledSkipsLongOffline(t *testing.T) {
	cfg := testConfig()
	cfg.DisableAfterDays = 2

	repo := &fakeServerRepo{}
	s, _ := newTestScheduler(t, repo, &fakeMetricRepo{}, cfg)

	now := time.Now().Unix()
	targets := []repositories.ProbeTarget{
		{Address: "a", Result: offlineResult(now-3*86400, 10)},
		{Address: "b", Result: offlineResult(now-3600, 2)},
		{Address: "c", Status: true},
	}

	kept := s.filterDisabled(targets)
	require.Len(t, kept, 2)
	assert.Equal(t, "b", kept[0].Address)
	assert.Equal(t, "c", kept[1].Address)
}

func TestFilterDisabledOffByDefault(t *testing.T) {
	repo := &fakeServerRepo{}
	s, _ := newTestScheduler(t, repo, &fakeMetricRepo{}, testConfig())

	targets := []repositories.ProbeTarget{
		{Address: "a", Result: offlineResult(time.Now().Unix()-30*86400, 100)},
	}
	assert.Len(t, s.filterDisabled(targets), 1)
}

func TestProbeTargetFailureKeepsLastResult(t *testing.T) {
	repo := &fakeServerRepo{}
	s, _ := newTestScheduler(t, repo, &fakeMetricRepo{}, testConfig())

	target := repositories.ProbeTarget{
		GameID:    "no-such-game",
		Address:   "198.51.100.1",
		QueryPort: 27015,
		Status:    true,
	}
	target.Result.Name = "My Server"
	target.Result.SetFailQueryCount(1)

	row := s.probeTarget(context.Background(), &target)

	assert.False(t, row.Status)
	assert.Equal(t, "My Server", row.Result.Name)
	assert.Equal(t, 2, row.Result.FailQueryCount())
	assert.NotZero(t, row.Result.OfflineSince())
}

func TestProbeTargetFailureKeepsEarliestOfflineSince(t *testing.T) {
	repo := &fakeServerRepo{}
	s, _ := newTestScheduler(t, repo, &fakeMetricRepo{}, testConfig())

	since := time.Now().Unix() - 600
	target := repositories.ProbeTarget{GameID: "no-such-game", Address: "198.51.100.1"}
	target.Result.MarkOffline(since)

	row := s.probeTarget(context.Background(), &target)
	assert.Equal(t, since, row.Result.OfflineSince())
	assert.Equal(t, 2, row.Result.FailQueryCount())
}

func TestQueryUnknownGame(t *testing.T) {
	repo := &fakeServerRepo{}
	s, _ := newTestScheduler(t, repo, &fakeMetricRepo{}, testConfig())

	target := repositories.ProbeTarget{GameID: "no-such-game"}
	_, err := s.query(context.Background(), &target)
	assert.ErrorIs(t, err, probe.ErrInvalidGame)
}

func TestTickPersistsResultsAndMetrics(t *testing.T) {
	target := repositories.ProbeTarget{
		GameID:    "no-such-game",
		Address:   "198.51.100.1",
		QueryPort: 27015,
		Status:    true,
	}

	repo := &fakeServerRepo{targets: []repositories.ProbeTarget{target}}
	metrics := &fakeMetricRepo{}
	s, updater := newTestScheduler(t, repo, metrics, testConfig())

	s.Tick(context.Background())

	require.Len(t, repo.updated, 1)
	require.Len(t, repo.updated[0], 1)
	row := repo.updated[0][0]
	assert.False(t, row.Status)
	assert.Equal(t, 1, row.Result.FailQueryCount())

	require.Len(t, metrics.updated, 1)
	assert.Equal(t, 500, metrics.limit)

	assert.Equal(t, 1, updater.calls)
	assert.Equal(t, "1 servers", updater.name)
}

func TestTickSkipsMetricsWhenDisabled(t *testing.T) {
	repo := &fakeServerRepo{targets: []repositories.ProbeTarget{{GameID: "no-such-game"}}}
	metrics := &fakeMetricRepo{}

	cfg := testConfig()
	cfg.MetricsEnable = false
	s, _ := newTestScheduler(t, repo, metrics, cfg)

	s.Tick(context.Background())

	assert.Len(t, repo.updated, 1)
	assert.Empty(t, metrics.updated)
}
