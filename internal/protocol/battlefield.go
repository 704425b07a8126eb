package protocol

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// battlefieldStrategy speaks the frostbite RCON-style words protocol
// (bfbc2, bf3, bf4): length-framed packets whose payload is a list of
// length-prefixed words.
type battlefieldStrategy struct {
	noPreQuery
}

func (battlefieldStrategy) Name() string { return "battlefield" }

func (s battlefieldStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	conn, err := dialTCP(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ping := startPing()
	r := bufio.NewReader(conn)

	infoWords, err := frostbiteExchange(conn, r, 0, []string{"serverInfo"})
	if err != nil {
		return nil, err
	}
	info, err := parseFrostbiteInfo(infoWords)
	if err != nil {
		return nil, err
	}

	players := []probe.Player{}
	if playerWords, err := frostbiteExchange(conn, r, 1, []string{"listPlayers", "all"}); err == nil {
		players = parseFrostbitePlayers(playerWords)
	}

	connect := info["ip_port"].(string)
	if connect == "" {
		connect = ep.Addr()
	}

	return &probe.Probe{
		Name:       info["hostname"].(string),
		Map:        info["map"].(string),
		Password:   info["password"].(bool),
		NumPlayers: info["numplayers"].(int),
		MaxPlayers: info["maxplayers"].(int),
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    connect,
		Ping:       ping.Millis(),
		Raw:        info,
	}, nil
}

// frostbiteExchange writes one request packet and reads the matching reply.
// Packet layout: sequence(4) size(4) wordcount(4), then each word as
// size(4) + bytes + NUL, all little endian.
func frostbiteExchange(conn net.Conn, r *bufio.Reader, sequence uint32, words []string) ([]string, error) {
	var payload []byte
	for _, word := range words {
		payload = binary.LittleEndian.AppendUint32(payload, uint32(len(word)))
		payload = append(payload, word...)
		payload = append(payload, 0x00)
	}

	packet := binary.LittleEndian.AppendUint32(nil, sequence)
	packet = binary.LittleEndian.AppendUint32(packet, uint32(len(payload)+12))
	packet = binary.LittleEndian.AppendUint32(packet, uint32(len(words)))
	packet = append(packet, payload...)

	if _, err := conn.Write(packet); err != nil {
		return nil, probe.WrapTransport(err)
	}

	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, probe.WrapTransport(err)
	}
	size := binary.LittleEndian.Uint32(header[4:8])
	count := binary.LittleEndian.Uint32(header[8:12])
	if size < 12 || size > maxDatagram {
		return nil, probe.WrapProtocol(fmt.Errorf("bad frostbite frame size %d", size))
	}

	body := make([]byte, size-12)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, probe.WrapTransport(err)
	}

	out := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(body) < 4 {
			return nil, probe.WrapProtocol(errTruncated)
		}
		wordLen := binary.LittleEndian.Uint32(body[:4])
		if uint32(len(body)) < 4+wordLen+1 {
			return nil, probe.WrapProtocol(errTruncated)
		}
		out = append(out, string(body[4:4+wordLen]))
		body = body[4+wordLen+1:]
	}

	if len(out) == 0 || out[0] != "OK" {
		return nil, probe.WrapProtocol(fmt.Errorf("frostbite status %q", strings.Join(out, " ")))
	}
	return out[1:], nil
}

// parseFrostbiteInfo maps the serverInfo word list. The team score block is
// variable length; everything after it is positional.
func parseFrostbiteInfo(words []string) (map[string]any, error) {
	if len(words) < 8 {
		return nil, probe.WrapProtocol(errTruncated)
	}

	info := map[string]any{
		"hostname":     strings.TrimSpace(words[0]),
		"numplayers":   atoiSafe(words[1]),
		"maxplayers":   atoiSafe(words[2]),
		"gametype":     words[3],
		"map":          words[4],
		"roundsplayed": atoiSafe(words[5]),
		"roundstotal":  atoiSafe(words[6]),
	}

	numTeams := atoiSafe(words[7])
	index := 8 + numTeams
	if len(words) < index+7 {
		return nil, probe.WrapProtocol(errTruncated)
	}

	info["targetscore"] = atoiSafe(words[index])
	info["status"] = words[index+1]
	info["ranked"] = words[index+2] == "true"
	info["punkbuster"] = words[index+3] == "true"
	info["password"] = words[index+4] == "true"
	info["uptime"] = atoiSafe(words[index+5])
	info["roundtime"] = atoiSafe(words[index+6])

	// bfbc2 inserts a mod word before the address.
	rest := words[index+7:]
	if len(rest) > 0 && (rest[0] == "BC2" || rest[0] == "UNKNOWN") {
		rest = rest[1:]
	}

	ipPort := ""
	for _, word := range rest {
		if strings.Contains(word, ":") {
			ipPort = word
			break
		}
	}
	info["ip_port"] = ipPort

	return info, nil
}

// parseFrostbitePlayers reads the listPlayers table: a column count, the
// column names, a row count, then rows.
func parseFrostbitePlayers(words []string) []probe.Player {
	players := []probe.Player{}
	if len(words) < 1 {
		return players
	}

	numFields := atoiSafe(words[0])
	if len(words) < 1+numFields+1 {
		return players
	}
	fields := words[1 : 1+numFields]
	numRows := atoiSafe(words[1+numFields])
	rows := words[2+numFields:]

	for i := 0; i < numRows; i++ {
		if len(rows) < numFields {
			break
		}
		raw := map[string]any{}
		name := ""
		for j, field := range fields {
			raw[field] = rows[j]
			if field == "name" {
				name = rows[j]
			}
		}
		players = append(players, probe.Player{Name: name, Raw: raw})
		rows = rows[numFields:]
	}

	return players
}
