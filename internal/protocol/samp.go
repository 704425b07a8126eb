package protocol

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// sampStrategy speaks the San Andreas Multiplayer query. Requests carry a
// "SAMP" header plus the target ip:port and a one-letter opcode; the server
// echoes the header back in front of the payload.
type sampStrategy struct {
	noPreQuery
}

func (sampStrategy) Name() string { return "samp" }

func (s sampStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	session, err := dialUDP(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	ping := startPing()

	info, err := sampExchange(ctx, session, ep, "SAMP", 'i')
	if err != nil {
		return nil, err
	}

	r := newPacketReader(info)
	password := r.Byte() == 1
	numPlayers := int(r.Uint16())
	maxPlayers := int(r.Uint16())
	name := r.sampString(4)
	gamemode := r.sampString(4)
	language := r.sampString(4)
	if err := r.Err(); err != nil {
		return nil, probe.WrapProtocol(err)
	}

	rules := map[string]any{}
	if data, err := sampExchange(ctx, session, ep, "SAMP", 'r'); err == nil {
		rr := newPacketReader(data)
		count := int(rr.Uint16())
		for i := 0; i < count && rr.Err() == nil; i++ {
			key := rr.sampString(1)
			rules[key] = rr.sampString(1)
		}
	}

	// Servers stop answering the client list above 100 players; degrade to
	// an empty list.
	players := []probe.Player{}
	if data, err := sampExchange(ctx, session, ep, "SAMP", 'c'); err == nil {
		pr := newPacketReader(data)
		count := int(pr.Uint16())
		for i := 0; i < count && pr.Err() == nil; i++ {
			pname := pr.sampString(1)
			score := int(pr.Int32())
			if pr.Err() != nil {
				break
			}
			players = append(players, probe.Player{
				Name: pname,
				Raw:  map[string]any{"score": score},
			})
		}
	}

	mapName, _ := rules["mapname"].(string)

	return &probe.Probe{
		Name:       name,
		Map:        mapName,
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
			"rules":    rules,
		},
	}, nil
}

// sampExchange sends one opcode request and strips the 11-byte echo header
// from the reply.
func sampExchange(ctx context.Context, session *udpSession, ep Endpoint, magic string, opcode byte) ([]byte, error) {
	ip, err := resolveIP(ctx, ep.Host)
	if err != nil {
		return nil, err
	}
	ip4 := net.ParseIP(ip).To4()
	if ip4 == nil {
		return nil, probe.WrapTransport(fmt.Errorf("%s: not an ipv4 host", ep.Host))
	}

	request := append([]byte(magic), ip4...)
	request = binary.LittleEndian.AppendUint16(request, uint16(ep.Port))
	request = append(request, opcode)

	reply, err := session.RoundTrip(request)
	if err != nil {
		return nil, err
	}
	if len(reply) < 11 {
		return nil, probe.WrapProtocol(errTruncated)
	}
	return reply[11:], nil
}

// sampString reads a little-endian length-prefixed string; widthBytes is the
// size of the length field (4 for info fields, 1 for rules and players).
func (r *packetReader) sampString(widthBytes int) string {
	if r.err != nil {
		return ""
	}
	var n int
	switch widthBytes {
	case 1:
		n = int(r.Byte())
	case 2:
		n = int(r.Uint16())
	default:
		n = int(r.Int32())
	}
	if r.err != nil || n <= 0 {
		return ""
	}
	b := r.Bytes(n)
	if r.err != nil {
		return ""
	}
	return string(b)
}
