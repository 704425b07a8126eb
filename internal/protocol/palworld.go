package protocol

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// palworldStrategy tries three sources in order: the server's own admin REST
// API when the admin password is supplied as _password, then the official
// directory's search endpoint, then a bounded page walk over the directory
// listing. All three produce the same normalized shape.
type palworldStrategy struct {
	noPreQuery
}

func (palworldStrategy) Name() string { return "palworld" }

// palworldListPageCap bounds the directory walk of the last resort.
const palworldListPageCap = 5

const palworldDirectoryURL = "https://api.palworldgame.com/server"

type palworldInfo struct {
	ServerName     string `json:"servername"`
	Version        string `json:"version"`
	Description    string `json:"description"`
	MapName        string `json:"map_name"`
	IsPassword     bool   `json:"is_password"`
	CurrentPlayers int    `json:"current_players"`
	MaxPlayers     int    `json:"max_players"`
}

type palworldListed struct {
	ServerName       string `json:"server_name"`
	MapName          string `json:"map_name"`
	Address          string `json:"address"`
	Port             int    `json:"port"`
	IsPassword       bool   `json:"is_password"`
	CurrentPlayerNum int    `json:"current_player_num"`
	MaxPlayerNum     int    `json:"max_player_num"`
}

type palworldServerList struct {
	ServerList []palworldListed `json:"server_list"`
}

func (s palworldStrategy) Query(ctx context.Context, ep Endpoint, extra map[string]string) (*probe.Probe, error) {
	if password := extra["_password"]; password != "" {
		return s.queryAdmin(ctx, ep, password)
	}

	ip, err := resolveIP(ctx, ep.Host)
	if err != nil {
		return nil, err
	}

	entry, err := s.searchDirectory(ctx, ip, ep.Port)
	if err != nil {
		entry, err = s.walkDirectory(ctx, ip, ep.Port)
	}
	if err != nil {
		return nil, err
	}

	return &probe.Probe{
		Name:       entry.ServerName,
		Map:        entry.MapName,
		Password:   entry.IsPassword,
		NumPlayers: entry.CurrentPlayerNum,
		NumBots:    0,
		MaxPlayers: entry.MaxPlayerNum,
		Players:    []probe.Player{},
		Bots:       []probe.Player{},
		Connect:    fmt.Sprintf("%s:%d", ep.Host, ep.Port),
		Ping:       0,
		Raw:        map[string]any{},
	}, nil
}

// queryAdmin hits the server's own REST API as the fixed "admin" user.
func (s palworldStrategy) queryAdmin(ctx context.Context, ep Endpoint, password string) (*probe.Probe, error) {
	ip, err := resolveIP(ctx, ep.Host)
	if err != nil {
		return nil, err
	}

	ping := startPing()

	credentials := base64.StdEncoding.EncodeToString([]byte("admin:" + password))

	var info palworldInfo
	req := webRequest{
		method: http.MethodGet,
		url:    fmt.Sprintf("http://%s:%d/v1/api/info", ip, ep.Port),
		headers: map[string]string{
			"Authorization": "Basic " + credentials,
			"Accept":        "application/json",
		},
	}
	if err := req.doJSON(ctx, &info); err != nil {
		return nil, err
	}

	return &probe.Probe{
		Name:       info.ServerName,
		Map:        info.MapName,
		Password:   info.IsPassword,
		NumPlayers: info.CurrentPlayers,
		NumBots:    0,
		MaxPlayers: info.MaxPlayers,
		Players:    []probe.Player{},
		Bots:       []probe.Player{},
		Connect:    fmt.Sprintf("%s:%d", ep.Host, ep.Port),
		Ping:       ping.Millis(),
		Raw: map[string]any{
			"version":     info.Version,
			"description": info.Description,
		},
	}, nil
}

func (s palworldStrategy) searchDirectory(ctx context.Context, ip string, port int) (*palworldListed, error) {
	var list palworldServerList
	url := fmt.Sprintf("%s/search?address=%s&port=%d", palworldDirectoryURL, ip, port)
	if err := getJSON(ctx, url, &list); err != nil {
		return nil, err
	}

	for _, entry := range list.ServerList {
		if entry.Address == ip && entry.Port == port {
			return &entry, nil
		}
	}
	return nil, fmt.Errorf("palworld server %s:%d not in search results: %w", ip, port, probe.ErrServerNotFound)
}

func (s palworldStrategy) walkDirectory(ctx context.Context, ip string, port int) (*palworldListed, error) {
	for page := 1; page <= palworldListPageCap; page++ {
		var list palworldServerList
		url := fmt.Sprintf("%s/list?page=%d", palworldDirectoryURL, page)
		if err := getJSON(ctx, url, &list); err != nil {
			return nil, err
		}
		for _, entry := range list.ServerList {
			if entry.Address == ip && entry.Port == port {
				return &entry, nil
			}
		}
		if len(list.ServerList) == 0 {
			break
		}
	}
	return nil, fmt.Errorf("palworld server %s:%d not listed: %w", ip, port, probe.ErrServerNotFound)
}
