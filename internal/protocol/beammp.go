package protocol

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// beammpStrategy looks a server up in the crawled BeamMP master list. The map
// field arrives as a mod path ("/levels/<name>/info.json") and is rewritten
// into a display name.
type beammpStrategy struct {
	noPreQuery
}

func (beammpStrategy) Name() string { return "beammp" }

type beammpEntry struct {
	SName       string `json:"sname"`
	Map         string `json:"map"`
	Password    bool   `json:"password"`
	Players     int    `json:"players"`
	MaxPlayers  int    `json:"maxplayers"`
	PlayersList string `json:"playerslist"`
}

var beammpLevelPath = regexp.MustCompile(`^/?levels/(.+)/info\.json$`)

func (s beammpStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ip, err := resolveIP(ctx, ep.Host)
	if err != nil {
		return nil, err
	}

	ping := startPing()

	var entry beammpEntry
	url := fmt.Sprintf("%s/beammp/search?host=%s&port=%d", openGSQMasterURL, ip, ep.Port)
	if err := getJSON(ctx, url, &entry); err != nil {
		return nil, err
	}

	players := []probe.Player{}
	for _, name := range strings.Split(entry.PlayersList, ";") {
		if name == "" {
			continue
		}
		players = append(players, probe.Player{Name: name})
	}

	return &probe.Probe{
		Name:       probe.StripCaretColors(entry.SName),
		Map:        beammpMapName(entry.Map),
		Password:   entry.Password,
		NumPlayers: entry.Players,
		NumBots:    0,
		MaxPlayers: entry.MaxPlayers,
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    fmt.Sprintf("%s:%d", ep.Host, ep.Port),
		Ping:       ping.Millis(),
		Raw:        map[string]any{},
	}, nil
}

// beammpMapName turns "/levels/east_coast_usa/info.json" into
// "East Coast Usa".
func beammpMapName(path string) string {
	if m := beammpLevelPath.FindStringSubmatch(path); m != nil {
		path = m[1]
	}
	words := strings.Fields(strings.ReplaceAll(path, "_", " "))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
