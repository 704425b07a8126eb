package protocol

import (
	"context"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// hexen2Strategy is the quake1 status protocol with hexen2's single-byte
// framing header.
type hexen2Strategy struct {
	noPreQuery
}

func (hexen2Strategy) Name() string { return "hexen2" }

func (s hexen2Strategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	info, lines, err := quakeExchange(ctx, ep,
		[]byte("\xFFstatus\x0a"), []byte("\xFFn"))
	if err != nil {
		return nil, err
	}

	players, bots := quakePlayers(lines, quakeV1)
	return quakeProbe(ep, info, players, bots, ping.Millis()), nil
}
