package protocol

import (
	"context"
	"fmt"
	"strings"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// gamespy1Strategy speaks the original gamespy text query: "\status\" in,
// backslash-delimited pairs out, split over datagrams ordered by queryid and
// terminated by a "final" marker.
type gamespy1Strategy struct {
	noPreQuery
}

func (gamespy1Strategy) Name() string { return "gamespy1" }

func (s gamespy1Strategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	info, err := gamespy1Status(ctx, ep)
	if err != nil {
		return nil, err
	}

	players := gamespy1Players(info)

	// bf1942 reports numplayers=0 yet still lists ghost entries; trust the
	// counter over the list length.
	if info["gamename"] == "bfield1942" {
		if n := atoiSafe(info["numplayers"]); n < len(players) {
			players = players[:n]
		}
	}

	password := strings.ToLower(info["password"])

	return &probe.Probe{
		Name:       info["hostname"],
		Map:        info["mapname"],
		Password:   password == "true" || password == "1",
		NumPlayers: atoiSafe(info["numplayers"]),
		NumBots:    0,
		MaxPlayers: atoiSafe(info["maxplayers"]),
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    connectAddr(ep, atoiSafe(info["hostport"])),
		Ping:       ping.Millis(),
		Raw:        infoRaw(info),
	}, nil
}

// gamespy1Status collects reply datagrams until the final marker arrives.
func gamespy1Status(ctx context.Context, ep Endpoint) (map[string]string, error) {
	session, err := dialUDP(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if err := session.Send([]byte("\\status\\")); err != nil {
		return nil, err
	}

	info := map[string]string{}
	for packets := 0; packets < 16; packets++ {
		data, err := session.Receive()
		if err != nil {
			return nil, err
		}

		done := false
		parts := strings.Split(string(data), "\\")
		for i := 1; i+1 < len(parts); i += 2 {
			key := parts[i]
			switch key {
			case "final":
				done = true
			case "queryid":
				// packet sequencing marker, not server state
			default:
				info[key] = parts[i+1]
			}
		}
		if done || strings.Contains(string(data), "\\final\\") {
			return info, nil
		}
	}

	return nil, probe.WrapProtocol(fmt.Errorf("missing final marker"))
}

// gamespy1Players lifts indexed player_N keys into a list.
func gamespy1Players(info map[string]string) []probe.Player {
	players := []probe.Player{}

	for i := 0; ; i++ {
		name, ok := info[fmt.Sprintf("player_%d", i)]
		if !ok {
			break
		}

		raw := map[string]any{"player": name}
		for _, field := range []string{"frags", "score", "ping", "deaths", "team", "kills", "time"} {
			if v, ok := info[fmt.Sprintf("%s_%d", field, i)]; ok {
				raw[field] = v
			}
		}

		players = append(players, probe.Player{Name: name, Raw: raw})
	}

	return players
}
