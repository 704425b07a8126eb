package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// frontStrategy queries The Front. Servers answer A2S but report a generic
// hostname in INFO; the real name rides in the ServerName_s rule. The
// developer's private-server list is fetched once per cycle and fills in
// whatever the rules reply lacks.
type frontStrategy struct {
	mu       sync.Mutex
	snapshot map[string]frontListEntry
}

func (s *frontStrategy) Name() string { return "front" }

func (s *frontStrategy) PreQueryRequired() bool { return true }

type frontListEntry struct {
	ServerName string `json:"server_name"`
	Addr       string `json:"addr"`
	Port       int    `json:"port"`
	Online     int    `json:"online"`
	Info       string `json:"info"`
}

type frontListInfo struct {
	GameMap   string `json:"game_map"`
	MaxPlayer int    `json:"maxplayer"`
}

func (s *frontStrategy) PreQuery(ctx context.Context) error {
	var list []frontListEntry
	if err := getJSON(ctx, "https://privatelist.playthefront.com/private_list", &list); err != nil {
		return err
	}

	snapshot := make(map[string]frontListEntry, len(list))
	for _, entry := range list {
		snapshot[fmt.Sprintf("%s:%d", entry.Addr, entry.Port)] = entry
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()

	return nil
}

func (s *frontStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	session, err := dialUDP(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	ping := startPing()

	info, err := a2sQueryInfo(session)
	if err != nil {
		return nil, err
	}

	rules, err := a2sQueryRules(session)
	if err != nil {
		rules = map[string]string{}
	}

	name := rules["ServerName_s"]
	mapName := info.Map
	maxPlayers := info.MaxPlayers

	if ip, err := resolveIP(ctx, ep.Host); err == nil {
		s.mu.Lock()
		entry, ok := s.snapshot[fmt.Sprintf("%s:%d", ip, ep.Port)]
		s.mu.Unlock()

		if ok {
			if name == "" {
				name = entry.ServerName
			}
			var listed frontListInfo
			if json.Unmarshal([]byte(entry.Info), &listed) == nil {
				if mapName == "" {
					mapName = listed.GameMap
				}
				if listed.MaxPlayer > 0 {
					maxPlayers = listed.MaxPlayer
				}
			}
		}
	}

	if name == "" {
		name = info.Name
	}

	return &probe.Probe{
		Name:       name,
		Map:        mapName,
		Password:   info.Visibility != 0,
		NumPlayers: info.Players,
		NumBots:    info.Bots,
		MaxPlayers: maxPlayers,
		Players:    []probe.Player{},
		Bots:       []probe.Player{},
		Connect:    connectAddr(ep, info.GamePort),
		Ping:       ping.Millis(),
		Raw: map[string]any{
			"folder": info.Folder,
			"game":   info.Game,
		},
	}, nil
}
