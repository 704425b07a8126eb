package protocol

import (
	"context"
	"fmt"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// gportalStrategy asks the G-Portal hosting API about a server. The endpoint
// host carries the G-Portal server id; the query port must match the port the
// API reports, otherwise the id points at someone else's server.
type gportalStrategy struct {
	noPreQuery
}

func (gportalStrategy) Name() string { return "gportal" }

type gportalQuery struct {
	Name           string `json:"name"`
	CurrentPlayers int    `json:"currentPlayers"`
	MaxPlayers     int    `json:"maxPlayers"`
	IPAddress      string `json:"ipAddress"`
	Port           int    `json:"port"`
	Online         bool   `json:"online"`
}

func (s gportalStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	var data gportalQuery
	url := fmt.Sprintf("https://api.g-portal.com/gameserver/query/%s", ep.Host)
	if err := getJSON(ctx, url, &data); err != nil {
		return nil, err
	}

	if data.Port != ep.Port {
		return nil, fmt.Errorf("gportal server %s reports %s:%d: %w", ep.Host, data.IPAddress, data.Port, probe.ErrServerNotFound)
	}
	if !data.Online {
		return nil, fmt.Errorf("gportal server %s is offline: %w", ep.Host, probe.ErrServerNotFound)
	}

	return &probe.Probe{
		Name:       data.Name,
		Map:        "",
		Password:   false,
		NumPlayers: data.CurrentPlayers,
		NumBots:    0,
		MaxPlayers: data.MaxPlayers,
		Players:    []probe.Player{},
		Bots:       []probe.Player{},
		Connect:    fmt.Sprintf("%s:%d", data.IPAddress, data.Port),
		Ping:       ping.Millis(),
		Raw:        map[string]any{"ipAddress": data.IPAddress},
	}, nil
}
