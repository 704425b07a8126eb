package protocol

import (
	"context"

	"github.com/gswatch-io/gswatch/internal/probe"
)

type quake2Strategy struct {
	noPreQuery
}

func (quake2Strategy) Name() string { return "quake2" }

func (s quake2Strategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	info, lines, err := quakeExchange(ctx, ep,
		[]byte("\xFF\xFF\xFF\xFFstatus\x0a"), []byte("\xFF\xFF\xFF\xFFprint"))
	if err != nil {
		return nil, err
	}

	players, bots := quakePlayers(lines, quakeV2)

	result := quakeProbe(ep, info, players, bots, ping.Millis())
	result.Password = atoiSafe(infoAny(info, "g_needpass", "needpass")) == 1
	return result, nil
}
