package protocol

import (
	"bytes"
	"context"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// gamespy3Strategy speaks the challenge-based gamespy3 query (also known as
// UT2004-style full stat). Replies may split over datagrams; each carries a
// splitnum header with a final-packet flag.
type gamespy3Strategy struct {
	noPreQuery
}

func (gamespy3Strategy) Name() string { return "gamespy3" }

func (s gamespy3Strategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	info, players, err := gamespy3Status(ctx, ep)
	if err != nil {
		return nil, err
	}

	return &probe.Probe{
		Name:       info["hostname"],
		Map:        firstNonEmpty(info["mapname"], info["map"]),
		Password:   atoiSafe(info["password"]) != 0,
		NumPlayers: atoiSafe(info["numplayers"]),
		MaxPlayers: atoiSafe(info["maxplayers"]),
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    connectAddr(ep, atoiSafe(info["hostport"])),
		Ping:       ping.Millis(),
		Raw:        infoRaw(info),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// gamespy3Status runs the challenge handshake and the full-stat query,
// reassembling split replies.
func gamespy3Status(ctx context.Context, ep Endpoint) (map[string]string, []probe.Player, error) {
	session, err := dialUDP(ctx, ep)
	if err != nil {
		return nil, nil, err
	}
	defer session.Close()

	sessionID := []byte{0x03, 0x04, 0x05, 0x06}

	handshake := append([]byte{0xFE, 0xFD, 0x09}, sessionID...)
	reply, err := session.RoundTrip(handshake)
	if err != nil {
		return nil, nil, err
	}
	if len(reply) < 5 {
		return nil, nil, probe.WrapProtocol(errTruncated)
	}

	challengeText := strings.TrimRight(string(reply[5:]), "\x00")
	challenge, err := strconv.Atoi(strings.TrimSpace(challengeText))
	if err != nil {
		return nil, nil, probe.WrapProtocol(err)
	}

	request := append([]byte{0xFE, 0xFD, 0x00}, sessionID...)
	request = binary.BigEndian.AppendUint32(request, uint32(int32(challenge)))
	request = append(request, 0xFF, 0xFF, 0xFF, 0x01) // full stat

	if err := session.Send(request); err != nil {
		return nil, nil, err
	}

	var payload []byte
	for packets := 0; packets < 16; packets++ {
		data, err := session.Receive()
		if err != nil {
			return nil, nil, err
		}
		if len(data) < 16 {
			continue
		}

		// type(1) + session(4) + "splitnum\0"(9) + number(1) = 15 bytes.
		body := data[5:]
		final := true
		if bytes.HasPrefix(body, []byte("splitnum\x00")) {
			number := body[9]
			final = number&0x80 != 0
			body = body[11:] // number byte plus a pad byte
		}
		payload = append(payload, body...)
		if final {
			break
		}
	}

	return parseGamespy3Payload(payload)
}

// parseGamespy3Payload splits the reassembled payload into the kv section
// and the player_ section.
func parseGamespy3Payload(payload []byte) (map[string]string, []probe.Player, error) {
	info := map[string]string{}
	players := []probe.Player{}

	fields := bytes.Split(payload, []byte{0x00})
	i := 0

	// The player section marker carries a leading 0x01 column-type byte.
	isPlayerMarker := func(field []byte) bool {
		return string(bytes.TrimPrefix(field, []byte{0x01})) == "player_"
	}

	for ; i+1 < len(fields); i += 2 {
		key := string(fields[i])
		if key == "" || isPlayerMarker(fields[i]) {
			break
		}
		info[key] = string(fields[i+1])
	}

	// Locate the player_ column marker; names follow until an empty entry.
	for ; i < len(fields); i++ {
		if isPlayerMarker(fields[i]) {
			i += 2 // marker plus pad entry
			break
		}
	}
	for ; i < len(fields); i++ {
		name := string(fields[i])
		if name == "" {
			break
		}
		players = append(players, probe.Player{Name: name, Raw: map[string]any{"player": name}})
	}

	return info, players, nil
}
