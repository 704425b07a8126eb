package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/probe"
)

func TestUpdateMetricsAppendsSamples(t *testing.T) {
	repo := NewMetricRepository(openTestDB(t))
	ctx := context.Background()

	s := newServer(1, 100, "tf2", "10.0.0.1", 27015)
	s.Status = true
	s.Result = db.ProbeResult{Probe: probe.Probe{NumPlayers: 5, NumBots: 1, MaxPlayers: 24}}

	require.NoError(t, repo.UpdateMetrics(ctx, []db.Server{*s}, 1000))
	require.NoError(t, repo.UpdateMetrics(ctx, []db.Server{*s}, 1000))

	samples, err := repo.Samples(ctx, "tf2", "10.0.0.1", 27015, nil)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.True(t, samples[0].Status)
	assert.Equal(t, 5, samples[0].NumPlayers)
	assert.Equal(t, 1, samples[0].NumBots)
	assert.Equal(t, 24, samples[0].MaxPlayers)
}

func TestUpdateMetricsTrimsRing(t *testing.T) {
	repo := NewMetricRepository(openTestDB(t))
	ctx := context.Background()

	s := newServer(1, 100, "tf2", "10.0.0.1", 27015)

	for i := 0; i < 8; i++ {
		s.Result = db.ProbeResult{Probe: probe.Probe{NumPlayers: i}}
		require.NoError(t, repo.UpdateMetrics(ctx, []db.Server{*s}, 5))
	}

	samples, err := repo.Samples(ctx, "tf2", "10.0.0.1", 27015, nil)
	require.NoError(t, err)
	require.Len(t, samples, 5)

	// Oldest samples dropped, newest kept in order.
	for i, sample := range samples {
		assert.Equal(t, i+3, sample.NumPlayers, fmt.Sprintf("sample %d", i))
	}
}

func TestUpdateMetricsDisabled(t *testing.T) {
	repo := NewMetricRepository(openTestDB(t))
	ctx := context.Background()

	s := newServer(1, 100, "tf2", "10.0.0.1", 27015)
	require.NoError(t, repo.UpdateMetrics(ctx, []db.Server{*s}, 0))

	samples, err := repo.Samples(ctx, "tf2", "10.0.0.1", 27015, nil)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestUpdateMetricsRingsKeyedByQueryExtra(t *testing.T) {
	repo := NewMetricRepository(openTestDB(t))
	ctx := context.Background()

	// Two terraria endpoints behind the same host:port, distinguished only
	// by their REST tokens. Each must keep its own ring.
	a := newServer(1, 100, "terraria", "10.0.0.1", 7878)
	a.QueryExtra = db.JSONMap{"_token": "tok-a"}
	b := newServer(1, 100, "terraria", "10.0.0.1", 7878)
	b.QueryExtra = db.JSONMap{"_token": "tok-b"}

	for i := 0; i < 2; i++ {
		a.Result = db.ProbeResult{Probe: probe.Probe{NumPlayers: i}}
		require.NoError(t, repo.UpdateMetrics(ctx, []db.Server{*a}, 2))
	}
	require.NoError(t, repo.UpdateMetrics(ctx, []db.Server{*b}, 2))

	samplesA, err := repo.Samples(ctx, "terraria", "10.0.0.1", 7878, a.QueryExtra)
	require.NoError(t, err)
	require.Len(t, samplesA, 2)
	assert.Equal(t, 0, samplesA[0].NumPlayers)
	assert.Equal(t, 1, samplesA[1].NumPlayers)

	samplesB, err := repo.Samples(ctx, "terraria", "10.0.0.1", 7878, b.QueryExtra)
	require.NoError(t, err)
	require.Len(t, samplesB, 1)
}
