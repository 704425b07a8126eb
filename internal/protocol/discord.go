package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// discordStrategy reads a guild's public widget. The endpoint host carries
// the guild id; there is no port. MaxPlayers is -1: a guild has no player
// cap to display.
type discordStrategy struct {
	noPreQuery
}

func (discordStrategy) Name() string { return "discord" }

type discordWidget struct {
	Name          string `json:"name"`
	InstantInvite string `json:"instant_invite"`
	PresenceCount int    `json:"presence_count"`
	Members       []struct {
		Username string `json:"username"`
		Status   string `json:"status"`
	} `json:"members"`
}

func (s discordStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	url := fmt.Sprintf("https://discord.com/api/guilds/%s/widget.json?v=%d", ep.Host, time.Now().Unix())

	var widget discordWidget
	if err := getJSON(ctx, url, &widget); err != nil {
		return nil, err
	}

	players := make([]probe.Player, 0, len(widget.Members))
	for _, member := range widget.Members {
		players = append(players, probe.Player{
			Name: member.Username,
			Raw:  map[string]any{"status": member.Status},
		})
	}

	return &probe.Probe{
		Name:       widget.Name,
		Map:        "",
		Password:   false,
		NumPlayers: widget.PresenceCount,
		NumBots:    0,
		MaxPlayers: -1,
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    widget.InstantInvite,
		Ping:       ping.Millis(),
		Raw:        map[string]any{},
	}, nil
}
