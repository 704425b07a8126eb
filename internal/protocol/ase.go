package protocol

import (
	"context"
	"fmt"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// aseStrategy speaks the All-Seeing Eye query (mtasa). A single "s" datagram
// returns length-prefixed fields, a rule section, and flagged player rows.
type aseStrategy struct {
	noPreQuery
}

func (aseStrategy) Name() string { return "ase" }

func (s aseStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	reply, err := udpRoundTrip(ctx, ep, []byte("s"))
	if err != nil {
		return nil, err
	}
	if len(reply) < 4 || string(reply[:4]) != "EYE1" {
		return nil, probe.WrapProtocol(fmt.Errorf("unexpected ase header"))
	}

	r := newPacketReader(reply[4:])
	r.aseString() // game name
	gamePort := atoiSafe(r.aseString())
	name := r.aseString()
	r.aseString() // game type
	mapName := r.aseString()
	r.aseString() // version
	password := r.aseString()
	numPlayers := atoiSafe(r.aseString())
	maxPlayers := atoiSafe(r.aseString())

	if err := r.Err(); err != nil {
		return nil, probe.WrapProtocol(err)
	}

	// Rule pairs until an empty key.
	rules := map[string]any{}
	for r.Err() == nil {
		key := r.aseString()
		if key == "" {
			break
		}
		rules[key] = r.aseString()
	}

	players := parseASEPlayers(r)

	if mapName == "None" {
		mapName = ""
	}

	return &probe.Probe{
		Name:       name,
		Map:        mapName,
		Password:   atoiSafe(password) != 0,
		NumPlayers: numPlayers,
		MaxPlayers: maxPlayers,
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    connectAddr(ep, gamePort),
		Ping:       ping.Millis(),
		Raw:        rules,
	}, nil
}

// parseASEPlayers reads flagged player rows: a bitmask announces which of
// name/team/skin/score/ping/time follow.
func parseASEPlayers(r *packetReader) []probe.Player {
	players := []probe.Player{}

	for r.Err() == nil && r.Remaining() > 0 {
		flags := r.Byte()
		if r.Err() != nil {
			break
		}

		raw := map[string]any{}
		var name string
		if flags&0x01 != 0 {
			name = r.aseString()
		}
		if flags&0x02 != 0 {
			raw["team"] = r.aseString()
		}
		if flags&0x04 != 0 {
			raw["skin"] = r.aseString()
		}
		if flags&0x08 != 0 {
			raw["score"] = atoiSafe(r.aseString())
		}
		if flags&0x10 != 0 {
			raw["ping"] = atoiSafe(r.aseString())
		}
		if flags&0x20 != 0 {
			raw["time"] = atoiSafe(r.aseString())
		}
		if r.Err() != nil {
			break
		}
		players = append(players, probe.Player{Name: name, Raw: raw})
	}

	return players
}

// aseString reads an ase length-prefixed string; the length byte counts
// itself.
func (r *packetReader) aseString() string {
	n := int(r.Byte())
	if r.err != nil || n <= 1 {
		return ""
	}
	b := r.Bytes(n - 1)
	if r.err != nil {
		return ""
	}
	return string(b)
}
