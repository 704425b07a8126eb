// Package presence computes the bot's activity line once per tick.
package presence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gswatch-io/gswatch/internal/config"
	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/messenger"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

// Updater pushes the computed activity to the chat platform. The gateway
// connection lives outside this package; tests substitute a recorder.
type Updater interface {
	UpdatePresence(ctx context.Context, activityType int, name string, online bool) error
}

// Task recomputes and publishes the presence line.
type Task struct {
	servers repositories.ServerRepository
	updater Updater

	advertiseType config.AdvertiseType
	activityType  int
	activityName  string
	logger        *zap.Logger
}

func NewTask(servers repositories.ServerRepository, updater Updater, cfg *config.Config, logger *zap.Logger) *Task {
	return &Task{
		servers:       servers,
		updater:       updater,
		advertiseType: cfg.AdvertiseType,
		activityType:  cfg.ActivityType,
		activityName:  cfg.ActivityName,
		logger:        logger.Named("presence"),
	}
}

// Run publishes the presence for one tick. tickIndex drives the rotation of
// the individually mode.
func (t *Task) Run(ctx context.Context, tickIndex int, servers []db.Server) {
	name, online := t.compute(ctx, tickIndex, servers)

	if err := t.updater.UpdatePresence(ctx, t.activityType, name, online); err != nil {
		t.logger.Debug("update presence", zap.Error(err))
	}
}

func (t *Task) compute(ctx context.Context, tickIndex int, servers []db.Server) (name string, online bool) {
	online = true

	if t.activityName != "" {
		return t.activityName, online
	}

	switch t.advertiseType {
	case config.AdvertiseServerCount:
		stats, err := t.servers.Statistics(ctx)
		if err != nil {
			t.logger.Debug("statistics", zap.Error(err))
			return "", online
		}
		return fmt.Sprintf("%d servers", stats.UniqueServers), online

	case config.AdvertiseIndividually:
		var onlineServers []db.Server
		for _, server := range servers {
			if server.Status {
				onlineServers = append(onlineServers, server)
			}
		}
		if len(onlineServers) == 0 {
			return "", online
		}
		server := onlineServers[tickIndex%len(onlineServers)]
		return messenger.PlayersString(&server) + " " + server.Result.Name, online

	case config.AdvertisePlayerStats:
		var players, bots, maxplayers int
		for i := range servers {
			p, b, m := messenger.PlayerData(&servers[i])
			players += p
			bots += b
			maxplayers += m
		}
		name = messenger.ToPlayersString(players, bots, maxplayers)

		// With a single monitored server the bot's own status mirrors it.
		if len(servers) == 1 {
			online = servers[0].Status
		}
		return name, online
	}

	return "", online
}
