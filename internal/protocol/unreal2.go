package protocol

import (
	"context"
	"fmt"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// unreal2Strategy speaks the unreal engine 2 query (ut2004, killing floor).
// Details and players are separate request types on the same socket; the
// player query is only issued when the server reports players.
type unreal2Strategy struct {
	noPreQuery
}

func (unreal2Strategy) Name() string { return "unreal2" }

const (
	unreal2Details = 0x00
	unreal2Players = 0x02
)

func (s unreal2Strategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	session, err := dialUDP(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	ping := startPing()

	reply, err := session.RoundTrip([]byte{0x79, 0x00, 0x00, 0x00, unreal2Details})
	if err != nil {
		return nil, err
	}
	if len(reply) < 6 {
		return nil, probe.WrapProtocol(errTruncated)
	}

	r := newPacketReader(reply[5:])
	r.Int32() // server id
	r.pascalString()
	gamePort := int(r.Int32())
	r.Int32() // query port echo
	name := r.pascalString()
	mapName := r.pascalString()
	gameType := r.pascalString()
	numPlayers := int(r.Int32())
	maxPlayers := int(r.Int32())

	if err := r.Err(); err != nil {
		return nil, probe.WrapProtocol(err)
	}

	players := []probe.Player{}
	if numPlayers > 0 {
		players, err = unreal2QueryPlayers(session)
		if err != nil {
			return nil, err
		}
	}

	return &probe.Probe{
		Name:       name,
		Map:        mapName,
		Password:   false,
		NumPlayers: numPlayers,
		MaxPlayers: maxPlayers,
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    connectAddr(ep, gamePort),
		Ping:       ping.Millis(),
		Raw: map[string]any{
			"gametype": gameType,
		},
	}, nil
}

func unreal2QueryPlayers(session *udpSession) ([]probe.Player, error) {
	reply, err := session.RoundTrip([]byte{0x79, 0x00, 0x00, 0x00, unreal2Players})
	if err != nil {
		return nil, err
	}
	if len(reply) < 6 || reply[4] != unreal2Players {
		return nil, probe.WrapProtocol(fmt.Errorf("unexpected players reply"))
	}

	r := newPacketReader(reply[5:])
	players := []probe.Player{}

	for r.Err() == nil && r.Remaining() > 0 {
		id := int(r.Int32())
		name := r.pascalString()
		pingMS := int(r.Int32())
		score := int(r.Int32())
		r.Int32() // stats id
		if r.Err() != nil {
			break
		}
		players = append(players, probe.Player{
			Name: name,
			Raw:  map[string]any{"id": id, "ping": pingMS, "score": score},
		})
	}

	return players, nil
}

// pascalString reads an unreal-style length-prefixed string; the length
// covers the trailing NUL.
func (r *packetReader) pascalString() string {
	n := int(r.Byte())
	if r.err != nil || n == 0 {
		return ""
	}
	b := r.Bytes(n)
	if r.err != nil {
		return ""
	}
	// strip trailing NUL
	if len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}
