package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// assettocorsaStrategy queries the acServer HTTP endpoints: /INFO for server
// details and /JSON|<ts> for the car list. Only connected cars count as
// players.
type assettocorsaStrategy struct {
	noPreQuery
}

func (assettocorsaStrategy) Name() string { return "assettocorsa" }

type acInfo struct {
	Name       string `json:"name"`
	Track      string `json:"track"`
	Pass       bool   `json:"pass"`
	Port       int    `json:"port"`
	MaxClients int    `json:"maxclients"`
	Clients    int    `json:"clients"`
	Session    int    `json:"session"`
}

type acCarList struct {
	Cars []struct {
		DriverName  string `json:"DriverName"`
		Model       string `json:"Model"`
		IsConnected bool   `json:"IsConnected"`
	} `json:"Cars"`
}

func (s assettocorsaStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	ping := startPing()

	now := time.Now().Unix()

	var info acInfo
	if err := getJSON(ctx, fmt.Sprintf("http://%s/INFO?v=%d", ep.Addr(), now), &info); err != nil {
		return nil, err
	}

	var cars acCarList
	if err := getJSON(ctx, fmt.Sprintf("http://%s/JSON|%d", ep.Addr(), now), &cars); err != nil {
		return nil, err
	}

	players := []probe.Player{}
	for _, car := range cars.Cars {
		if !car.IsConnected {
			continue
		}
		players = append(players, probe.Player{
			Name: car.DriverName,
			Raw:  map[string]any{"model": car.Model},
		})
	}

	return &probe.Probe{
		Name:       info.Name,
		Map:        info.Track,
		Password:   info.Pass,
		NumPlayers: len(players),
		MaxPlayers: info.MaxClients,
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    fmt.Sprintf("%s:%d", ep.Host, info.Port),
		Ping:       ping.Millis(),
		Raw: map[string]any{
			"clients": info.Clients,
			"session": info.Session,
		},
	}, nil
}
