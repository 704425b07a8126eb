package protocol

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// satisfactoryStrategy polls the lightweight query API: a single datagram
// with a magic header and an echo cookie, answered with the server state and
// name. Player counts are not on that wire; when the server's API token is
// supplied as _token they come from the HTTPS QueryServerState call.
type satisfactoryStrategy struct {
	noPreQuery
}

func (satisfactoryStrategy) Name() string { return "satisfactory" }

const (
	satisfactoryMagic       = 0xF6D5
	satisfactoryPollState   = 0
	satisfactoryServerState = 1
	satisfactoryTerminator  = 0x01
)

func (s satisfactoryStrategy) Query(ctx context.Context, ep Endpoint, extra map[string]string) (*probe.Probe, error) {
	ping := startPing()

	cookie := uint64(time.Now().UnixNano())

	request := binary.LittleEndian.AppendUint16(nil, satisfactoryMagic)
	request = append(request, satisfactoryPollState, 1)
	request = binary.LittleEndian.AppendUint64(request, cookie)
	request = append(request, satisfactoryTerminator)

	reply, err := udpRoundTrip(ctx, ep, request)
	if err != nil {
		return nil, err
	}

	name, state, err := parseSatisfactoryPoll(reply, cookie)
	if err != nil {
		return nil, err
	}

	result := &probe.Probe{
		Name:       name,
		Map:        "",
		Password:   false,
		NumPlayers: 0,
		NumBots:    0,
		MaxPlayers: 0,
		Players:    []probe.Player{},
		Bots:       []probe.Player{},
		Connect:    ep.Addr(),
		Ping:       ping.Millis(),
		Raw:        map[string]any{"server_state": int(state)},
	}

	if token := extra["_token"]; token != "" {
		if game, err := satisfactoryGameState(ctx, ep, token); err == nil {
			result.NumPlayers = game.NumConnectedPlayers
			result.MaxPlayers = game.PlayerLimit
			if result.Name == "" {
				result.Name = game.ActiveSessionName
			}
			result.Raw["session"] = game.ActiveSessionName
			result.Raw["tech_tier"] = game.TechTier
			result.Raw["paused"] = game.IsGamePaused
		}
	}

	return result, nil
}

// parseSatisfactoryPoll validates the poll response envelope and returns the
// server name and state byte.
func parseSatisfactoryPoll(reply []byte, cookie uint64) (string, byte, error) {
	r := newPacketReader(reply)

	if r.Uint16() != satisfactoryMagic {
		return "", 0, probe.WrapProtocol(fmt.Errorf("bad poll magic"))
	}
	if r.Byte() != satisfactoryServerState {
		return "", 0, probe.WrapProtocol(fmt.Errorf("unexpected message type"))
	}
	r.Byte() // protocol version
	if r.Uint64() != cookie {
		return "", 0, probe.WrapProtocol(fmt.Errorf("cookie mismatch"))
	}

	state := r.Byte()
	r.Int32()  // server net CL
	r.Uint64() // server flags

	subStates := int(r.Byte())
	for i := 0; i < subStates && r.Err() == nil; i++ {
		r.Byte()   // sub state id
		r.Uint16() // sub state version
	}

	nameLen := int(r.Uint16())
	if r.Err() != nil || r.Remaining() < nameLen {
		return "", 0, probe.WrapProtocol(errTruncated)
	}
	name := string(r.Bytes(nameLen))

	if err := r.Err(); err != nil {
		return "", 0, probe.WrapProtocol(err)
	}
	return name, state, nil
}

type satisfactoryGame struct {
	ActiveSessionName   string `json:"activeSessionName"`
	NumConnectedPlayers int    `json:"numConnectedPlayers"`
	PlayerLimit         int    `json:"playerLimit"`
	TechTier            int    `json:"techTier"`
	IsGamePaused        bool   `json:"isGamePaused"`
}

// satisfactoryGameState calls the dedicated server HTTPS API. The server
// presents a self-signed certificate, so the insecure client is required.
func satisfactoryGameState(ctx context.Context, ep Endpoint, token string) (*satisfactoryGame, error) {
	body, err := json.Marshal(map[string]string{"function": "QueryServerState"})
	if err != nil {
		return nil, probe.WrapProtocol(err)
	}

	var reply struct {
		Data struct {
			ServerGameState satisfactoryGame `json:"serverGameState"`
		} `json:"data"`
	}
	req := webRequest{
		method: http.MethodPost,
		url:    fmt.Sprintf("https://%s/api/v1", ep.Addr()),
		body:   body,
		headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
		},
		client: insecureWebClient,
	}
	if err := req.doJSON(ctx, &reply); err != nil {
		return nil, err
	}

	return &reply.Data.ServerGameState, nil
}
