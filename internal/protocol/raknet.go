package protocol

import (
	"context"
	"fmt"
	"strings"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// raknetStrategy speaks the raknet unconnected ping (minecraft bedrock).
// The pong payload is a semicolon-separated status line.
type raknetStrategy struct {
	noPreQuery
}

func (raknetStrategy) Name() string { return "raknet" }

var raknetMagic = []byte{
	0x00, 0xFF, 0xFF, 0x00, 0xFE, 0xFE, 0xFE, 0xFE,
	0xFD, 0xFD, 0xFD, 0xFD, 0x12, 0x34, 0x56, 0x78,
}

func (s raknetStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	request := make([]byte, 0, 33)
	request = append(request, 0x01)                   // unconnected ping
	request = append(request, make([]byte, 8)...)     // send timestamp
	request = append(request, raknetMagic...)         // offline message id
	request = append(request, make([]byte, 8)...)     // client guid

	reply, err := udpRoundTrip(ctx, ep, request)
	if err != nil {
		return nil, err
	}
	if len(reply) < 35 || reply[0] != 0x1C {
		return nil, probe.WrapProtocol(fmt.Errorf("unexpected pong"))
	}

	// pong: id(1) + time(8) + guid(8) + magic(16) + strlen(2) + status.
	status := string(reply[35:])
	fields := strings.Split(status, ";")

	get := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	raw := map[string]any{
		"edition":           get(0),
		"motd_line_1":       get(1),
		"protocol_version":  get(2),
		"version_name":      get(3),
		"num_players":       get(4),
		"max_players":       get(5),
		"server_unique_id":  get(6),
		"motd_line_2":       get(7),
		"game_mode":         get(8),
		"game_mode_numeric": get(9),
		"port_ipv4":         get(10),
		"port_ipv6":         get(11),
		"numplayers":        atoiSafe(get(4)),
	}

	return &probe.Probe{
		Name:       get(1),
		Map:        get(7),
		Password:   false,
		NumPlayers: atoiSafe(get(4)),
		MaxPlayers: atoiSafe(get(5)),
		Players:    []probe.Player{},
		Bots:       []probe.Player{},
		Connect:    connectAddr(ep, atoiSafe(get(10))),
		Ping:       ping.Millis(),
		Raw:        raw,
	}, nil
}
