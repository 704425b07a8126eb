package protocol

import (
	"context"
	"fmt"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// terrariaStrategy queries a tshock REST endpoint. The access token is the
// secret _token query extra.
type terrariaStrategy struct {
	noPreQuery
}

func (terrariaStrategy) Name() string { return "terraria" }

type terrariaStatus struct {
	Name           string `json:"name"`
	World          string `json:"world"`
	Port           int    `json:"port"`
	ServerPassword bool   `json:"serverpassword"`
	MaxPlayers     int    `json:"maxplayers"`
	Players        []struct {
		Nickname string `json:"nickname"`
		Username string `json:"username"`
		Group    string `json:"group"`
		Team     int    `json:"team"`
	} `json:"players"`
}

func (s terrariaStrategy) Query(ctx context.Context, ep Endpoint, extra map[string]string) (*probe.Probe, error) {
	ping := startPing()

	url := fmt.Sprintf("http://%s/v2/server/status?players=true&rules=false&token=%s",
		ep.Addr(), extra["_token"])

	var status terrariaStatus
	if err := getJSON(ctx, url, &status); err != nil {
		return nil, err
	}

	players := make([]probe.Player, 0, len(status.Players))
	for _, p := range status.Players {
		players = append(players, probe.Player{
			Name: p.Nickname,
			Raw:  map[string]any{"username": p.Username, "group": p.Group, "team": p.Team},
		})
	}

	return &probe.Probe{
		Name:       status.Name,
		Map:        status.World,
		Password:   status.ServerPassword,
		NumPlayers: len(players),
		MaxPlayers: status.MaxPlayers,
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    fmt.Sprintf("%s:%d", ep.Host, status.Port),
		Ping:       ping.Millis(),
		Raw:        map[string]any{},
	}, nil
}
