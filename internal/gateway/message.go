// Package gateway maintains the persistent WebSocket session with the chat
// platform's gateway. The bot's only use for the session is presence: the
// package identifies, keeps the heartbeat alive and exposes an UpdatePresence
// call for the scheduler's presence task. It uses gorilla/websocket under
// the hood and reconnects with backoff when the session drops.
package gateway

import "encoding/json"

// Gateway opcodes used by this client.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opPresenceUpdate = 3
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

// payload is the envelope of every gateway frame. D stays raw on the read
// side so each opcode can decode its own shape.
type payload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// outPayload is the write-side envelope: D carries a concrete value.
type outPayload struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

// helloData is the op 10 body.
type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// identifyData is the op 2 body.
type identifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// activity is one entry of a presence update's activity list.
type activity struct {
	Name string `json:"name"`
	Type int    `json:"type"`
}

// presenceData is the op 3 body.
type presenceData struct {
	Since      *int64     `json:"since"`
	Activities []activity `json:"activities"`
	Status     string     `json:"status"`
	AFK        bool       `json:"afk"`
}
