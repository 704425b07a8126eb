package protocol

import (
	"context"

	"github.com/gswatch-io/gswatch/internal/probe"
)

type quake1Strategy struct {
	noPreQuery
}

func (quake1Strategy) Name() string { return "quake1" }

func (s quake1Strategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	info, lines, err := quakeExchange(ctx, ep,
		[]byte("\xFF\xFF\xFF\xFFstatus\x0a"), []byte("\xFF\xFF\xFF\xFFn"))
	if err != nil {
		return nil, err
	}

	players, bots := quakePlayers(lines, quakeV1)
	return quakeProbe(ep, info, players, bots, ping.Millis()), nil
}
