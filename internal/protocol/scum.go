package protocol

import (
	"context"
	"fmt"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// scumStrategy looks a server up in the community-run hellbz directory, which
// indexes the SCUM master list by ip:port.
type scumStrategy struct {
	noPreQuery
}

func (scumStrategy) Name() string { return "scum" }

type scumLookup struct {
	Data []struct {
		Name       string `json:"name"`
		Password   int    `json:"password"`
		Players    int    `json:"players"`
		PlayersMax int    `json:"players_max"`
	} `json:"data"`
}

func (s scumStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ip, err := resolveIP(ctx, ep.Host)
	if err != nil {
		return nil, err
	}

	var lookup scumLookup
	req := webRequest{
		url:     fmt.Sprintf("https://api.hellbz.de/scum/api.php?address=%s&port=%d", ip, ep.Port),
		headers: map[string]string{"User-Agent": "gswatch"},
	}
	if err := req.doJSON(ctx, &lookup); err != nil {
		return nil, err
	}

	if len(lookup.Data) == 0 {
		return nil, fmt.Errorf("scum server %s:%d not listed: %w", ip, ep.Port, probe.ErrServerNotFound)
	}
	data := lookup.Data[0]

	return &probe.Probe{
		Name:       data.Name,
		Map:        "",
		Password:   data.Password == 1,
		NumPlayers: data.Players,
		NumBots:    0,
		MaxPlayers: data.PlayersMax,
		Players:    []probe.Player{},
		Bots:       []probe.Player{},
		Connect:    fmt.Sprintf("%s:%d", ep.Host, ep.Port),
		Ping:       0,
		Raw:        map[string]any{},
	}, nil
}
