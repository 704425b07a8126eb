package protocol

import (
	"context"
	"fmt"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// ecoStrategy reads the Eco web API /info document. The server description
// carries unity rich text which is stripped for display.
type ecoStrategy struct {
	noPreQuery
}

func (ecoStrategy) Name() string { return "eco" }

type ecoInfo struct {
	Description        string   `json:"Description"`
	HasPassword        bool     `json:"HasPassword"`
	OnlinePlayers      int      `json:"OnlinePlayers"`
	MaxActivePlayers   int      `json:"MaxActivePlayers"`
	OnlinePlayersNames []string `json:"OnlinePlayersNames"`
	JoinURL            string   `json:"JoinUrl"`
	Language           string   `json:"Language"`
	TimeSinceStart     float64  `json:"TimeSinceStart"`
}

func (s ecoStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	var info ecoInfo
	if err := getJSON(ctx, fmt.Sprintf("http://%s/info", ep.Addr()), &info); err != nil {
		return nil, err
	}

	players := make([]probe.Player, 0, len(info.OnlinePlayersNames))
	for _, name := range info.OnlinePlayersNames {
		players = append(players, probe.Player{Name: name})
	}

	return &probe.Probe{
		Name:       probe.StripHTMLColors(info.Description),
		Map:        "",
		Password:   info.HasPassword,
		NumPlayers: info.OnlinePlayers,
		NumBots:    0,
		MaxPlayers: info.MaxActivePlayers,
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    info.JoinURL,
		Ping:       ping.Millis(),
		Raw: map[string]any{
			"language":         info.Language,
			"time_since_start": info.TimeSinceStart,
		},
	}, nil
}
