package protocol

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// scpslStrategy reads the official SCP:SL server API. The lookup is by
// account id and API key (_account_id / _api_key); the game exposes no direct
// query port.
type scpslStrategy struct {
	noPreQuery
}

func (scpslStrategy) Name() string { return "scpsl" }

type scpslReply struct {
	Success bool   `json:"Success"`
	Error   string `json:"Error"`
	Servers []struct {
		ID          int    `json:"ID"`
		Port        int    `json:"Port"`
		Players     string `json:"Players"`
		Online      bool   `json:"Online"`
		Version     string `json:"Version"`
		PlayersList []struct {
			ID       string `json:"ID"`
			Nickname string `json:"Nickname"`
		} `json:"PlayersList"`
	} `json:"Servers"`
}

func (s scpslStrategy) Query(ctx context.Context, ep Endpoint, extra map[string]string) (*probe.Probe, error) {
	accountID, apiKey := extra["_account_id"], extra["_api_key"]

	url := fmt.Sprintf(
		"https://api.scpslgame.com/serverinfo.php?id=%s&key=%s&lo=true&players=true&list=true&version=true&flags=true&nicknames=true&online=true",
		accountID, apiKey,
	)

	var reply scpslReply
	if err := getJSON(ctx, url, &reply); err != nil {
		return nil, err
	}

	if !reply.Success {
		return nil, probe.WrapProtocol(fmt.Errorf("scpsl api: %s", reply.Error))
	}
	if len(reply.Servers) == 0 {
		return nil, fmt.Errorf("scpsl account %s has no servers: %w", accountID, probe.ErrServerNotFound)
	}
	server := reply.Servers[0]

	numPlayers, maxPlayers := splitPlayerCount(server.Players)

	players := make([]probe.Player, 0, len(server.PlayersList))
	for _, p := range server.PlayersList {
		players = append(players, probe.Player{
			Name: p.Nickname,
			Raw:  map[string]any{"id": p.ID},
		})
	}

	return &probe.Probe{
		Name:       strconv.Itoa(server.ID),
		Map:        "",
		Password:   false,
		NumPlayers: numPlayers,
		NumBots:    0,
		MaxPlayers: maxPlayers,
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    "",
		Ping:       0,
		Raw: map[string]any{
			"online":  server.Online,
			"version": server.Version,
			"port":    server.Port,
		},
	}, nil
}

// splitPlayerCount parses the API's "current/max" counter.
func splitPlayerCount(s string) (current, max int) {
	parts := strings.SplitN(s, "/", 2)
	current = atoiSafe(parts[0])
	if len(parts) == 2 {
		max = atoiSafe(parts[1])
	}
	return current, max
}
