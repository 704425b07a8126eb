package protocol

import (
	"context"
	"fmt"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// doom3Strategy speaks the idtech4 getInfo query (doom3, quake4).
type doom3Strategy struct {
	noPreQuery
}

func (doom3Strategy) Name() string { return "doom3" }

func (s doom3Strategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	request := append([]byte{0xFF, 0xFF}, []byte("getInfo\x00\x00\x00\x00\x00")...)
	reply, err := udpRoundTrip(ctx, ep, request)
	if err != nil {
		return nil, err
	}

	header := append([]byte{0xFF, 0xFF}, []byte("infoResponse")...)
	if len(reply) < len(header)+9 {
		return nil, probe.WrapProtocol(errTruncated)
	}
	for i, b := range header {
		if reply[i] != b {
			return nil, probe.WrapProtocol(fmt.Errorf("unexpected info response"))
		}
	}

	r := newPacketReader(reply[len(header)+1:]) // trailing NUL of the header
	r.Int32()                                   // challenge echo
	r.Int32()                                   // protocol version

	info := map[string]string{}
	for r.Err() == nil {
		key := r.CString()
		value := r.CString()
		if key == "" && value == "" {
			break
		}
		info[key] = value
	}

	// Player list: id byte per entry, terminated by the MAX_CLIENTS
	// sentinel (32).
	players := []probe.Player{}
	for r.Err() == nil && r.Remaining() > 0 {
		id := r.Byte()
		if id == 32 {
			break
		}
		pingMS := int(r.Uint16())
		rate := int(r.Int32())
		name := r.CString()
		if r.Err() != nil {
			break
		}
		players = append(players, probe.Player{
			Name: name,
			Raw:  map[string]any{"id": int(id), "ping": pingMS, "rate": rate},
		})
	}

	return &probe.Probe{
		Name:       info["si_name"],
		Map:        info["si_map"],
		Password:   atoiSafe(firstNonEmpty(info["si_usepass"], info["si_needPass"])) == 1,
		NumPlayers: len(players),
		MaxPlayers: atoiSafe(firstNonEmpty(info["si_maxplayers"], info["si_maxPlayers"])),
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    ep.Addr(),
		Ping:       ping.Millis(),
		Raw:        infoRaw(info),
	}, nil
}
