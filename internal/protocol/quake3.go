package protocol

import (
	"context"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// quake3Strategy covers idtech3 derivatives (quake3, cod4, et legacy). Names
// carry ^-color codes which are stripped from every displayed field.
type quake3Strategy struct {
	noPreQuery
}

func (quake3Strategy) Name() string { return "quake3" }

func (s quake3Strategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	info, lines, err := quakeExchange(ctx, ep,
		[]byte("\xFF\xFF\xFF\xFFgetstatus\x0a"), []byte("\xFF\xFF\xFF\xFFstatusResponse"))
	if err != nil {
		return nil, err
	}

	players, bots := quakePlayers(lines, quakeV3)
	for i := range players {
		players[i].Name = probe.StripCaretColors(players[i].Name)
	}
	for i := range bots {
		bots[i].Name = probe.StripCaretColors(bots[i].Name)
	}

	result := quakeProbe(ep, info, players, bots, ping.Millis())
	result.Name = probe.StripCaretColors(result.Name)
	result.Password = atoiSafe(info["g_needpass"]) == 1
	return result, nil
}
