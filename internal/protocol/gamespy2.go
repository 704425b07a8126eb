package protocol

import (
	"context"
	"strings"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// gamespy2Strategy speaks the binary gamespy2 query: one datagram requesting
// the info and player sections, NUL-delimited pairs back.
type gamespy2Strategy struct {
	noPreQuery
}

func (gamespy2Strategy) Name() string { return "gamespy2" }

func (s gamespy2Strategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	// 0xFE 0xFD 0x00, a ticket echoed back by the server, then one flag per
	// section: info, players, teams.
	request := []byte{0xFE, 0xFD, 0x00, 'g', 's', 'w', '2', 0xFF, 0xFF, 0x00}

	reply, err := udpRoundTrip(ctx, ep, request)
	if err != nil {
		return nil, err
	}
	if len(reply) < 5 {
		return nil, probe.WrapProtocol(errTruncated)
	}

	r := newPacketReader(reply[5:]) // skip type byte + ticket echo

	info := map[string]string{}
	for r.Err() == nil {
		key := r.CString()
		if key == "" {
			break
		}
		info[key] = r.CString()
	}

	players, err := parseGamespy2Players(r)
	if err != nil {
		return nil, err
	}

	return &probe.Probe{
		Name:       info["hostname"],
		Map:        info["mapname"],
		Password:   strings.ToLower(info["password"]) != "false" && info["password"] != "0",
		NumPlayers: atoiSafe(info["numplayers"]),
		MaxPlayers: atoiSafe(info["maxplayers"]),
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    connectAddr(ep, atoiSafe(info["hostport"])),
		Ping:       ping.Millis(),
		Raw:        infoRaw(info),
	}, nil
}

// parseGamespy2Players reads the player section: a count, the column headers
// terminated by an empty string, then count rows of values.
func parseGamespy2Players(r *packetReader) ([]probe.Player, error) {
	players := []probe.Player{}

	if r.Err() != nil || r.Remaining() == 0 {
		return players, nil
	}

	count := int(r.Byte())

	var headers []string
	for r.Err() == nil {
		h := r.CString()
		if h == "" {
			break
		}
		headers = append(headers, strings.TrimSuffix(h, "_"))
	}

	for i := 0; i < count && r.Err() == nil; i++ {
		raw := map[string]any{}
		for _, h := range headers {
			raw[h] = r.CString()
		}
		if r.Err() != nil {
			break
		}
		name, _ := raw["player"].(string)
		players = append(players, probe.Player{Name: name, Raw: raw})
	}

	return players, nil
}
