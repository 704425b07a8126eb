package protocol

import (
	"context"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// ut3Strategy rides the gamespy3 wire; UT3 buries the readable fields under
// numeric property ids (p1073741825 is the map, s7 the password flag).
type ut3Strategy struct {
	noPreQuery
}

func (ut3Strategy) Name() string { return "ut3" }

func (s ut3Strategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	info, players, err := gamespy3Status(ctx, ep)
	if err != nil {
		return nil, err
	}

	return &probe.Probe{
		Name:       info["hostname"],
		Map:        info["p1073741825"],
		Password:   atoiSafe(info["s7"]) != 0,
		NumPlayers: atoiSafe(info["numplayers"]),
		MaxPlayers: atoiSafe(info["maxplayers"]),
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    connectAddr(ep, atoiSafe(info["hostport"])),
		Ping:       ping.Millis(),
		Raw:        infoRaw(info),
	}, nil
}
