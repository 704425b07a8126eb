package protocol

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// The quake lineage shares one text protocol: a status request datagram and
// a reply of backslash-delimited info pairs followed by one line per player.
// The generations differ only in framing bytes and player line layout.

type quakeFamily int

const (
	quakeV1 quakeFamily = iota + 1
	quakeV2
	quakeV3
)

// quakeExchange performs the status round trip and splits the reply into the
// info map and raw player lines.
func quakeExchange(ctx context.Context, ep Endpoint, request, header []byte) (map[string]string, []string, error) {
	reply, err := udpRoundTrip(ctx, ep, request)
	if err != nil {
		return nil, nil, err
	}
	return splitQuakeInfoReply(reply, header)
}

// splitQuakeInfoReply validates the framing header and splits the body into
// the info map and raw player lines.
func splitQuakeInfoReply(reply, header []byte) (map[string]string, []string, error) {
	if !bytes.HasPrefix(reply, header) {
		return nil, nil, probe.WrapProtocol(fmt.Errorf("unexpected status header"))
	}
	body := string(bytes.TrimPrefix(reply, header))
	body = strings.TrimPrefix(body, "\n")

	lines := strings.Split(body, "\n")
	if len(lines) == 0 {
		return nil, nil, probe.WrapProtocol(errTruncated)
	}

	info := map[string]string{}
	parts := strings.Split(lines[0], "\\")
	for i := 1; i+1 < len(parts); i += 2 {
		info[parts[i]] = parts[i+1]
	}

	var playerLines []string
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) != "" {
			playerLines = append(playerLines, line)
		}
	}

	return info, playerLines, nil
}

// quakePlayers parses player lines per family. Players reporting zero ping
// are classified as bots.
func quakePlayers(lines []string, family quakeFamily) (players, bots []probe.Player) {
	players, bots = []probe.Player{}, []probe.Player{}

	for _, line := range lines {
		tokens := tokenizeQuoted(line)

		var name string
		var ping, score int
		raw := map[string]any{}

		switch family {
		case quakeV1:
			// id frags time ping "name" "skin" color1 color2
			if len(tokens) < 5 {
				continue
			}
			score = atoiSafe(tokens[1])
			ping = atoiSafe(tokens[3])
			name = tokens[4]
			raw["time"] = atoiSafe(tokens[2])
			if len(tokens) > 5 {
				raw["skin"] = tokens[5]
			}
		case quakeV2, quakeV3:
			// frags ping "name" [address]
			if len(tokens) < 3 {
				continue
			}
			score = atoiSafe(tokens[0])
			ping = atoiSafe(tokens[1])
			name = tokens[2]
		}

		raw["score"] = score
		raw["ping"] = ping

		p := probe.Player{Name: name, Raw: raw}
		if ping == 0 {
			bots = append(bots, p)
		} else {
			players = append(players, p)
		}
	}

	return players, bots
}

// tokenizeQuoted splits a player line on whitespace, keeping quoted strings
// as single tokens without their quotes.
func tokenizeQuoted(line string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			if inQuotes {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			inQuotes = !inQuotes
		case !inQuotes && (r == ' ' || r == '\t'):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return tokens
}

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func infoAny(info map[string]string, keys ...string) string {
	for _, key := range keys {
		if v, ok := info[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

func infoRaw(info map[string]string) map[string]any {
	raw := make(map[string]any, len(info))
	for k, v := range info {
		raw[k] = v
	}
	return raw
}

// quakeProbe assembles the common result shape of the family.
func quakeProbe(ep Endpoint, info map[string]string, players, bots []probe.Player, ping int) *probe.Probe {
	return &probe.Probe{
		Name:       infoAny(info, "hostname", "sv_hostname"),
		Map:        infoAny(info, "map", "mapname"),
		NumPlayers: len(players),
		NumBots:    len(bots),
		MaxPlayers: atoiSafe(infoAny(info, "sv_maxclients", "maxclients")),
		Players:    players,
		Bots:       bots,
		Connect:    ep.Addr(),
		Ping:       ping,
		Raw:        infoRaw(info),
	}
}
