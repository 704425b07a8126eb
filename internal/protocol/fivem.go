package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// fivemStrategy combines the quake3 getinfo datagram with the cfx HTTP
// players.json listing served on the same port.
type fivemStrategy struct {
	noPreQuery
}

func (fivemStrategy) Name() string { return "fivem" }

func (s fivemStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	reply, err := udpRoundTrip(ctx, ep, []byte("\xFF\xFF\xFF\xFFgetinfo gsw"))
	if err != nil {
		return nil, err
	}

	info, _, err := splitQuakeInfoReply(reply, []byte("\xFF\xFF\xFF\xFFinfoResponse"))
	if err != nil {
		return nil, err
	}

	players, err := s.queryPlayers(ctx, ep)
	if err != nil {
		players = []probe.Player{}
	}

	return &probe.Probe{
		Name:       probe.StripCaretColors(info["hostname"]),
		Map:        info["mapname"],
		Password:   false,
		NumPlayers: atoiSafe(info["clients"]),
		MaxPlayers: atoiSafe(info["sv_maxclients"]),
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    ep.Addr(),
		Ping:       ping.Millis(),
		Raw: map[string]any{
			"numplayers": atoiSafe(info["clients"]),
		},
	}, nil
}

func (s fivemStrategy) queryPlayers(ctx context.Context, ep Endpoint) ([]probe.Player, error) {
	var list []struct {
		Name string `json:"name"`
		Ping int    `json:"ping"`
		ID   int    `json:"id"`
	}

	url := fmt.Sprintf("http://%s/players.json?v=%d", ep.Addr(), time.Now().Unix())
	if err := getJSON(ctx, url, &list); err != nil {
		return nil, err
	}

	players := make([]probe.Player, 0, len(list))
	for _, p := range list {
		players = append(players, probe.Player{
			Name: probe.StripCaretColors(p.Name),
			Raw:  map[string]any{"id": p.ID, "ping": p.Ping},
		})
	}
	return players, nil
}
