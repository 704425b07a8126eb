package protocol

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// teamspeak3Strategy speaks the ServerQuery TCP protocol. The query port is
// the ServerQuery port; the monitored voice server is selected by its voice
// port, passed in query_extra.
type teamspeak3Strategy struct {
	noPreQuery
}

func (teamspeak3Strategy) Name() string { return "teamspeak3" }

func (s teamspeak3Strategy) Query(ctx context.Context, ep Endpoint, extra map[string]string) (*probe.Probe, error) {
	voicePort := extra["voice_port"]
	if voicePort == "" {
		return nil, probe.WrapProtocol(fmt.Errorf("missing voice_port"))
	}

	conn, err := dialTCP(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ping := startPing()

	r := bufio.NewReader(conn)

	// Greeting: "TS3" banner plus a welcome line.
	if _, err := r.ReadString('\r'); err != nil {
		return nil, probe.WrapTransport(err)
	}
	if _, err := r.ReadString('\r'); err != nil {
		return nil, probe.WrapTransport(err)
	}

	send := func(cmd string) ([]string, error) {
		if _, err := fmt.Fprintf(conn, "%s\n", cmd); err != nil {
			return nil, probe.WrapTransport(err)
		}

		var payload []string
		for {
			line, err := r.ReadString('\r')
			if err != nil {
				return nil, probe.WrapTransport(err)
			}
			line = strings.Trim(line, "\n\r")
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "error ") {
				if !strings.Contains(line, "id=0") {
					return nil, probe.WrapProtocol(fmt.Errorf("serverquery: %s", line))
				}
				return payload, nil
			}
			payload = append(payload, line)
		}
	}

	if _, err := send("use port=" + voicePort); err != nil {
		return nil, err
	}

	infoLines, err := send("serverinfo")
	if err != nil {
		return nil, err
	}
	info := ts3ParseRow(strings.Join(infoLines, " "))

	clientLines, err := send("clientlist")
	if err != nil {
		return nil, err
	}
	clients := ts3ParseList(clientLines)

	channelLines, err := send("channellist")
	if err != nil {
		return nil, err
	}
	channels := ts3ParseList(channelLines)

	_, _ = send("quit")

	players := []probe.Player{}
	for _, client := range clients {
		// client_type 0 is a voice client; 1 is a query connection.
		if client["client_type"] != "0" {
			continue
		}
		players = append(players, probe.Player{
			Name: client["client_nickname"],
			Raw:  ts3Raw(client),
		})
	}

	channelNames := make([]any, 0, len(channels))
	for _, channel := range channels {
		channelNames = append(channelNames, ts3Raw(channel))
	}

	return &probe.Probe{
		Name:       info["virtualserver_name"],
		Map:        "",
		Password:   atoiSafe(info["virtualserver_flag_password"]) == 1,
		NumPlayers: len(players),
		MaxPlayers: atoiSafe(info["virtualserver_maxclients"]),
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    ep.Host + ":" + voicePort,
		Ping:       ping.Millis(),
		Raw: map[string]any{
			"info":     ts3Raw(info),
			"channels": channelNames,
		},
	}, nil
}

// ts3ParseList splits a reply into |-separated items of key=value pairs.
func ts3ParseList(lines []string) []map[string]string {
	var items []map[string]string
	for _, line := range lines {
		for _, item := range strings.Split(line, "|") {
			if parsed := ts3ParseRow(item); len(parsed) > 0 {
				items = append(items, parsed)
			}
		}
	}
	return items
}

func ts3ParseRow(row string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Fields(row) {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = ts3Unescape(kv[1])
		} else {
			out[kv[0]] = ""
		}
	}
	return out
}

// ts3Unescape reverses the ServerQuery escaping rules.
var ts3Unescaper = strings.NewReplacer(
	`\\`, `\`, `\/`, `/`, `\s`, " ", `\p`, "|",
	`\a`, "\a", `\b`, "\b", `\f`, "\f", `\n`, "\n", `\r`, "\r", `\t`, "\t", `\v`, "\v",
)

func ts3Unescape(s string) string { return ts3Unescaper.Replace(s) }

func ts3Raw(m map[string]string) map[string]any {
	raw := make(map[string]any, len(m))
	for k, v := range m {
		raw[k] = v
	}
	return raw
}
