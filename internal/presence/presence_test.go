package presence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/config"
	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/probe"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

type statsRepo struct {
	repositories.ServerRepository

	uniqueServers int64
}

func (r *statsRepo) Statistics(context.Context) (repositories.Statistics, error) {
	return repositories.Statistics{UniqueServers: r.uniqueServers}, nil
}

type recorder struct {
	activityType int
	name         string
	online       bool
}

func (r *recorder) UpdatePresence(_ context.Context, activityType int, name string, online bool) error {
	r.activityType = activityType
	r.name = name
	r.online = online
	return nil
}

func newTask(advertiseType config.AdvertiseType, activityName string, repo repositories.ServerRepository) (*Task, *recorder) {
	rec := &recorder{}
	cfg := &config.Config{AdvertiseType: advertiseType, ActivityName: activityName}
	return NewTask(repo, rec, cfg, zap.NewNop()), rec
}

func statusServer(name string, players, maxplayers int, online bool) db.Server {
	return db.Server{
		Status: online,
		Result: db.ProbeResult{Probe: probe.Probe{
			Name:       name,
			NumPlayers: players,
			MaxPlayers: maxplayers,
		}},
	}
}

func TestActivityNameOverride(t *testing.T) {
	task, rec := newTask(config.AdvertisePlayerStats, "watching servers", &statsRepo{})
	task.Run(context.Background(), 0, nil)

	assert.Equal(t, "watching servers", rec.name)
	assert.True(t, rec.online)
}

func TestServerCountMode(t *testing.T) {
	task, rec := newTask(config.AdvertiseServerCount, "", &statsRepo{uniqueServers: 42})
	task.Run(context.Background(), 0, nil)

	assert.Equal(t, "42 servers", rec.name)
}

func TestIndividuallyModeRotates(t *testing.T) {
	servers := []db.Server{
		statusServer("Alpha", 3, 10, true),
		statusServer("Down", 0, 10, false),
		statusServer("Beta", 7, 10, true),
	}

	task, rec := newTask(config.AdvertiseIndividually, "", &statsRepo{})

	task.Run(context.Background(), 0, servers)
	assert.Equal(t, "3/10 (30%) Alpha", rec.name)

	// Offline servers are excluded from the rotation.
	task.Run(context.Background(), 1, servers)
	assert.Equal(t, "7/10 (70%) Beta", rec.name)

	task.Run(context.Background(), 2, servers)
	assert.Equal(t, "3/10 (30%) Alpha", rec.name)
}

func TestPlayerStatsModeSums(t *testing.T) {
	servers := []db.Server{
		statusServer("Alpha", 3, 10, true),
		statusServer("Beta", 7, 20, true),
	}

	task, rec := newTask(config.AdvertisePlayerStats, "", &statsRepo{})
	task.Run(context.Background(), 0, servers)

	assert.Equal(t, "10/30 (33%)", rec.name)
	assert.True(t, rec.online)
}

func TestPlayerStatsSingleServerMirrorsStatus(t *testing.T) {
	task, rec := newTask(config.AdvertisePlayerStats, "", &statsRepo{})

	task.Run(context.Background(), 0, []db.Server{statusServer("Alpha", 0, 16, false)})
	assert.False(t, rec.online)

	task.Run(context.Background(), 0, []db.Server{statusServer("Alpha", 5, 16, true)})
	assert.True(t, rec.online)
}
