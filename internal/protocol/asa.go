package protocol

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// ASA servers register with Epic Online Services instead of answering A2S.
// The published matchmaking credentials of the game client grant read access
// to the session directory.
const (
	asaClientID     = "xyza7891muomRmynIIHaJB9COBKkwj6n"
	asaClientSecret = "PP5UGxysEieNfSrEicaD1N2Bb3TdXuD7xHYcsdUHZ7s"
	asaDeploymentID = "ad9a8feffb3b4b2ca315546f038c3ae2"
	asaEpicAPI      = "https://api.epicgames.dev"
)

// asaStrategy filters the EOS matchmaking directory on the server address.
// The OAuth token is refreshed once per cycle through PreQuery and shared by
// every probe of the tick.
type asaStrategy struct {
	mu    sync.Mutex
	token string
}

func (s *asaStrategy) Name() string { return "asa" }

func (s *asaStrategy) PreQueryRequired() bool { return true }

func (s *asaStrategy) PreQuery(ctx context.Context) error {
	auth := base64.StdEncoding.EncodeToString([]byte(asaClientID + ":" + asaClientSecret))
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"deployment_id": {asaDeploymentID},
	}

	var reply struct {
		AccessToken string `json:"access_token"`
	}
	req := webRequest{
		method: http.MethodPost,
		url:    asaEpicAPI + "/auth/v1/oauth/token",
		body:   []byte(form.Encode()),
		headers: map[string]string{
			"Authorization": "Basic " + auth,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
	}
	if err := req.doJSON(ctx, &reply); err != nil {
		return err
	}
	if reply.AccessToken == "" {
		return probe.WrapProtocol(fmt.Errorf("empty epic access token"))
	}

	s.mu.Lock()
	s.token = reply.AccessToken
	s.mu.Unlock()

	return nil
}

type asaSession struct {
	TotalPlayers int `json:"totalPlayers"`
	Attributes   struct {
		CustomServerName string `json:"CUSTOMSERVERNAME_s"`
		MapName          string `json:"MAPNAME_s"`
		ServerPassword   bool   `json:"SERVERPASSWORD_b"`
		Address          string `json:"ADDRESS_s"`
	} `json:"attributes"`
	Settings struct {
		MaxPublicPlayers int `json:"maxPublicPlayers"`
	} `json:"settings"`
}

func (s *asaStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == "" {
		if err := s.PreQuery(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		token = s.token
		s.mu.Unlock()
	}

	criteria := map[string]any{
		"criteria": []map[string]any{
			{"key": "attributes.ADDRESS_s", "op": "EQUAL", "value": ep.Host},
			{"key": "attributes.ADDRESSBOUND_s", "op": "EQUAL", "value": fmt.Sprintf("%s:%d", ep.Host, ep.Port)},
		},
	}
	body, err := json.Marshal(criteria)
	if err != nil {
		return nil, probe.WrapProtocol(err)
	}

	var reply struct {
		Sessions []asaSession `json:"sessions"`
	}
	req := webRequest{
		method: http.MethodPost,
		url:    fmt.Sprintf("%s/matchmaking/v1/%s/filter", asaEpicAPI, asaDeploymentID),
		body:   body,
		headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
			"Accept":        "application/json",
		},
	}
	if err := req.doJSON(ctx, &reply); err != nil {
		return nil, err
	}

	if len(reply.Sessions) == 0 {
		return nil, fmt.Errorf("asa session %s:%d not found: %w", ep.Host, ep.Port, probe.ErrServerNotFound)
	}
	session := reply.Sessions[0]

	connect := ep.Addr()
	if session.Attributes.Address != "" {
		connect = fmt.Sprintf("%s:%d", session.Attributes.Address, ep.Port)
	}

	return &probe.Probe{
		Name:       session.Attributes.CustomServerName,
		Map:        strings.TrimSpace(session.Attributes.MapName),
		Password:   session.Attributes.ServerPassword,
		NumPlayers: session.TotalPlayers,
		NumBots:    0,
		MaxPlayers: session.Settings.MaxPublicPlayers,
		Players:    []probe.Player{},
		Bots:       []probe.Player{},
		Connect:    connect,
		Ping:       0,
		Raw:        map[string]any{},
	}, nil
}
