package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/catalog"
	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

type stubServerRepo struct {
	repositories.ServerRepository

	servers    []db.Server
	lastFilter repositories.ServerFilter
}

func (s *stubServerRepo) AllServers(_ context.Context, filter repositories.ServerFilter) ([]db.Server, error) {
	s.lastFilter = filter
	return s.servers, nil
}

func (s *stubServerRepo) CountPerGame(context.Context) (map[string]int, error) {
	return map[string]int{"tf2": 3, "minecraft": 1}, nil
}

func (s *stubServerRepo) CountPerChannel(context.Context) (map[int64]int, error) {
	return map[int64]int{123: 2}, nil
}

func (s *stubServerRepo) Statistics(context.Context) (repositories.Statistics, error) {
	return repositories.Statistics{Messages: 2, Channels: 1, Guilds: 1, UniqueServers: 4}, nil
}

type stubMetricRepo struct {
	repositories.MetricRepository

	samples []db.Metric
}

func (s *stubMetricRepo) Samples(context.Context, string, string, int, db.JSONMap) ([]db.Metric, error) {
	return s.samples, nil
}

func newTestRouter(t *testing.T, servers *stubServerRepo, metrics *stubMetricRepo) http.Handler {
	t.Helper()

	games, err := catalog.Load()
	require.NoError(t, err)

	return NewRouter(RouterConfig{
		Servers:       servers,
		Metrics:       metrics,
		Catalog:       games,
		Logger:        zap.NewNop(),
		Version:       "1.0.0",
		InviteLink:    "https://example.com/invite",
		MetricsEnable: true,
	})
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func dataOf(t *testing.T, rec *httptest.ResponseRecorder) json.RawMessage {
	t.Helper()
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func TestListGames(t *testing.T) {
	router := newTestRouter(t, &stubServerRepo{}, &stubMetricRepo{})

	rec := get(t, router, "/api/v1/games")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var games []catalog.Game
	require.NoError(t, json.Unmarshal(dataOf(t, rec), &games))
	assert.NotEmpty(t, games)
}

func TestGetInfo(t *testing.T) {
	router := newTestRouter(t, &stubServerRepo{}, &stubMetricRepo{})

	rec := get(t, router, "/api/v1/info")
	require.Equal(t, http.StatusOK, rec.Code)

	var info infoResponse
	require.NoError(t, json.Unmarshal(dataOf(t, rec), &info))
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "https://example.com/invite", info.InviteLink)
	assert.EqualValues(t, 4, info.Statistics.UniqueServers)
}

func TestListCommands(t *testing.T) {
	router := newTestRouter(t, &stubServerRepo{}, &stubMetricRepo{})

	rec := get(t, router, "/api/v1/commands")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []Command
	require.NoError(t, json.Unmarshal(dataOf(t, rec), &got))
	assert.Equal(t, commands, got)
}

func TestListEnvironmentVariables(t *testing.T) {
	router := newTestRouter(t, &stubServerRepo{}, &stubMetricRepo{})

	rec := get(t, router, "/api/v1/environment-variables")
	require.Equal(t, http.StatusOK, rec.Code)

	var vars []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, rec), &vars))

	var names []string
	for _, v := range vars {
		names = append(names, v.Name)
	}
	assert.Contains(t, names, "APP_TOKEN")
	assert.Contains(t, names, "TASK_QUERY_SERVER")
}

func TestServerCounts(t *testing.T) {
	router := newTestRouter(t, &stubServerRepo{}, &stubMetricRepo{})

	rec := get(t, router, "/api/v1/servers")
	require.Equal(t, http.StatusOK, rec.Code)

	var counts map[string]int
	require.NoError(t, json.Unmarshal(dataOf(t, rec), &counts))
	assert.Equal(t, 3, counts["tf2"])
}

func TestListServersByGameAppliesSecretFilter(t *testing.T) {
	repo := &stubServerRepo{servers: []db.Server{{GameID: "tf2", Address: "1.2.3.4"}}}
	router := newTestRouter(t, repo, &stubMetricRepo{})

	rec := get(t, router, "/api/v1/servers/tf2")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "tf2", repo.lastFilter.GameID)
	assert.True(t, repo.lastFilter.FilterSecret)

	var servers []db.Server
	require.NoError(t, json.Unmarshal(dataOf(t, rec), &servers))
	require.Len(t, servers, 1)
	assert.Equal(t, "1.2.3.4", servers[0].Address)
}

func TestListServersByChannel(t *testing.T) {
	repo := &stubServerRepo{}
	router := newTestRouter(t, repo, &stubMetricRepo{})

	rec := get(t, router, "/api/v1/channels/123")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 123, repo.lastFilter.ChannelID)
	assert.True(t, repo.lastFilter.FilterSecret)

	rec = get(t, router, "/api/v1/channels/not-a-number")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSamplesDisabled(t *testing.T) {
	games, err := catalog.Load()
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Servers: &stubServerRepo{},
		Metrics: &stubMetricRepo{},
		Catalog: games,
		Logger:  zap.NewNop(),
	})

	rec := get(t, router, "/api/v1/servers/tf2/1.2.3.4/27015/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubServerRepo{}, &stubMetricRepo{})

	rec := get(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
