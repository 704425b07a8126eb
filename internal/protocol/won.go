package protocol

import (
	"context"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// wonStrategy speaks the goldsrc-era A2S variant (0x6D info reply). The
// player exchange is identical to source.
type wonStrategy struct {
	noPreQuery
}

func (wonStrategy) Name() string { return "won" }

func (s wonStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	session, err := dialUDP(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	ping := startPing()

	info, err := a2sQueryInfo(session)
	if err != nil {
		return nil, err
	}

	players, err := a2sQueryPlayers(session)
	if err != nil {
		players = nil
	}

	probe.SortPlayersByDuration(players)
	humans, bots := probe.SplitBots(players, info.Bots)

	return &probe.Probe{
		Name:       info.Name,
		Map:        info.Map,
		Password:   info.Visibility != 0,
		NumPlayers: info.Players,
		NumBots:    info.Bots,
		MaxPlayers: info.MaxPlayers,
		Players:    humans,
		Bots:       bots,
		Connect:    connectAddr(ep, info.GamePort),
		Ping:       ping.Millis(),
		Raw: map[string]any{
			"folder": info.Folder,
			"game":   info.Game,
		},
	}, nil
}

// parseGoldSrcInfo parses the legacy 0x6D reply. The layout differs from the
// source reply: the server address leads, and the mod block is optional.
func parseGoldSrcInfo(b []byte) (*a2sInfo, error) {
	r := newPacketReader(b)
	r.CString() // server address as seen by the master

	info := &a2sInfo{
		Name:   r.CString(),
		Map:    r.CString(),
		Folder: r.CString(),
		Game:   r.CString(),
	}
	info.Players = int(r.Byte())
	info.MaxPlayers = int(r.Byte())
	r.Byte() // protocol version
	r.Byte() // server type
	r.Byte() // environment
	info.Visibility = r.Byte()

	if mod := r.Byte(); mod == 1 {
		r.CString() // mod website
		r.CString() // mod download
		r.Byte()    // nul pad
		r.Int32()   // mod version
		r.Int32()   // mod size
		r.Byte()    // mod type
		r.Byte()    // mod dll
	}

	r.Byte() // vac
	info.Bots = int(r.Byte())

	if err := r.Err(); err != nil {
		return nil, probe.WrapProtocol(err)
	}
	return info, nil
}
