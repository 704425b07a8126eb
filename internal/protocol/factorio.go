package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// factorioStrategy reads the public multiplayer directory. With a factorio.com
// username and token the full get-games snapshot is fetched once per cycle
// and servers are looked up locally; without credentials each probe falls
// back to the opengsq search API.
type factorioStrategy struct {
	username string
	token    string

	mu       sync.Mutex
	snapshot map[string]factorioEntry
}

func newFactorioStrategy(username, token string) *factorioStrategy {
	return &factorioStrategy{username: username, token: token}
}

func (s *factorioStrategy) Name() string { return "factorio" }

func (s *factorioStrategy) PreQueryRequired() bool {
	return s.username != "" && s.token != ""
}

type factorioEntry struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	HostAddress string   `json:"host_address"`
	HasPassword bool     `json:"has_password"`
	MaxPlayers  int      `json:"max_players"`
	Players     []string `json:"players"`
	GameVersion any      `json:"game_version"`
}

func (s *factorioStrategy) PreQuery(ctx context.Context) error {
	url := fmt.Sprintf("https://multiplayer.factorio.com/get-games?username=%s&token=%s", s.username, s.token)

	data, err := webRequest{url: url}.do(ctx)
	if err != nil {
		return err
	}

	// An auth failure comes back as {"message": "..."} instead of a list.
	var failure struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &failure) == nil && failure.Message != "" {
		return fmt.Errorf("factorio get-games: %s", failure.Message)
	}

	var servers []factorioEntry
	if err := json.Unmarshal(data, &servers); err != nil {
		return probe.WrapProtocol(err)
	}

	snapshot := make(map[string]factorioEntry, len(servers))
	for _, server := range servers {
		snapshot[server.HostAddress] = server
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()

	return nil
}

func (s *factorioStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ip, err := resolveIP(ctx, ep.Host)
	if err != nil {
		return nil, err
	}

	var entry factorioEntry
	ping := 0

	if s.PreQueryRequired() {
		s.mu.Lock()
		snapshot := s.snapshot
		s.mu.Unlock()

		if snapshot == nil {
			if err := s.PreQuery(ctx); err != nil {
				return nil, err
			}
			s.mu.Lock()
			snapshot = s.snapshot
			s.mu.Unlock()
		}

		found, ok := snapshot[fmt.Sprintf("%s:%d", ip, ep.Port)]
		if !ok {
			return nil, fmt.Errorf("factorio server %s:%d not listed: %w", ip, ep.Port, probe.ErrServerNotFound)
		}
		entry = found
	} else {
		timer := startPing()
		url := fmt.Sprintf("%s/factorio/search?host=%s&port=%d", openGSQMasterURL, ip, ep.Port)
		if err := getJSON(ctx, url, &entry); err != nil {
			return nil, err
		}
		ping = timer.Millis()
	}

	players := make([]probe.Player, 0, len(entry.Players))
	for _, name := range entry.Players {
		players = append(players, probe.Player{Name: name})
	}

	return &probe.Probe{
		Name:       probe.StripRichTags(entry.Name),
		Map:        "",
		Password:   entry.HasPassword,
		NumPlayers: len(players),
		NumBots:    0,
		MaxPlayers: entry.MaxPlayers,
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    entry.HostAddress,
		Ping:       ping,
		Raw: map[string]any{
			"description":  entry.Description,
			"game_version": entry.GameVersion,
		},
	}, nil
}
