package protocol

import (
	"context"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// vcmpStrategy speaks the Vice City Multiplayer query, a samp sibling with a
// "VCMP" magic and a version blob in front of the info fields. The language
// field doubles as the displayed map.
type vcmpStrategy struct {
	noPreQuery
}

func (vcmpStrategy) Name() string { return "vcmp" }

func (s vcmpStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	session, err := dialUDP(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	ping := startPing()

	info, err := sampExchange(ctx, session, ep, "VCMP", 'i')
	if err != nil {
		return nil, err
	}

	r := newPacketReader(info)
	r.Bytes(12) // version string, fixed width
	password := r.Byte() == 1
	numPlayers := int(r.Uint16())
	maxPlayers := int(r.Uint16())
	name := r.sampString(4)
	gamemode := r.sampString(4)
	language := r.sampString(4)
	if err := r.Err(); err != nil {
		return nil, probe.WrapProtocol(err)
	}

	// Player names only; vcmp servers above 100 players stop answering.
	players := []probe.Player{}
	if data, err := sampExchange(ctx, session, ep, "VCMP", 'c'); err == nil {
		pr := newPacketReader(data)
		count := int(pr.Uint16())
		for i := 0; i < count && pr.Err() == nil; i++ {
			pname := pr.sampString(1)
			if pr.Err() != nil {
				break
			}
			players = append(players, probe.Player{Name: pname})
		}
	}

	return &probe.Probe{
		Name:       name,
		Map:        language,
		Password:   password,
		NumPlayers: numPlayers,
		MaxPlayers: maxPlayers,
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    ep.Addr(),
		Ping:       ping.Millis(),
		Raw: map[string]any{
			"gamemode": gamemode,
			"language": language,
		},
	}, nil
}
