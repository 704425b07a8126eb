package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// minecraftStrategy speaks the java-edition server list ping: a varint-framed
// TCP handshake followed by a JSON status payload.
type minecraftStrategy struct {
	noPreQuery
}

func (minecraftStrategy) Name() string { return "minecraft" }

// minecraftStatus is the JSON status reply. Description is either a plain
// string or a chat object with text/extra parts.
type minecraftStatus struct {
	Description json.RawMessage `json:"description"`
	Players     struct {
		Max    int `json:"max"`
		Online int `json:"online"`
		Sample []struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"sample"`
	} `json:"players"`
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
}

func (s minecraftStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
	conn, err := dialTCP(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ping := startPing()

	// Handshake: protocol version, host, port, next state 1 (status).
	handshake := []byte{0x00}
	handshake = appendVarInt(handshake, -1)
	handshake = appendVarInt(handshake, len(ep.Host))
	handshake = append(handshake, ep.Host...)
	handshake = append(handshake, byte(ep.Port>>8), byte(ep.Port))
	handshake = appendVarInt(handshake, 1)

	if _, err := conn.Write(appendVarInt(nil, len(handshake))); err != nil {
		return nil, probe.WrapTransport(err)
	}
	if _, err := conn.Write(handshake); err != nil {
		return nil, probe.WrapTransport(err)
	}

	// Status request: empty packet 0x00.
	if _, err := conn.Write([]byte{0x01, 0x00}); err != nil {
		return nil, probe.WrapTransport(err)
	}

	r := bufio.NewReader(conn)
	if _, err := readVarInt(r); err != nil { // frame length
		return nil, probe.WrapTransport(err)
	}
	if _, err := readVarInt(r); err != nil { // packet id
		return nil, probe.WrapTransport(err)
	}
	size, err := readVarInt(r)
	if err != nil || size < 0 {
		return nil, probe.WrapTransport(err)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, probe.WrapTransport(err)
	}

	var status minecraftStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, probe.WrapProtocol(err)
	}

	name := probe.TrimLines(probe.StripSectionColors(minecraftDescription(status.Description)))

	players := make([]probe.Player, 0, len(status.Players.Sample))
	for _, sample := range status.Players.Sample {
		players = append(players, probe.Player{
			Name: sample.Name,
			Raw:  map[string]any{"id": sample.ID},
		})
	}

	var rawStatus map[string]any
	_ = json.Unmarshal(payload, &rawStatus)
	if rawStatus == nil {
		rawStatus = map[string]any{}
	}
	rawStatus["numplayers"] = status.Players.Online

	return &probe.Probe{
		Name:       name,
		Map:        "",
		Password:   false,
		NumPlayers: status.Players.Online,
		MaxPlayers: status.Players.Max,
		Players:    players,
		Bots:       []probe.Player{},
		Connect:    ep.Addr(),
		Ping:       ping.Millis(),
		Raw:        rawStatus,
	}, nil
}

// minecraftDescription assembles the displayed MOTD from the three forms the
// description field takes: plain string, {"text": ...}, or {"extra": [...]}.
func minecraftDescription(raw json.RawMessage) string {
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var chat struct {
		Text  string `json:"text"`
		Extra []struct {
			Text string `json:"text"`
		} `json:"extra"`
	}
	if err := json.Unmarshal(raw, &chat); err != nil {
		return ""
	}

	out := chat.Text
	for _, part := range chat.Extra {
		out += part.Text
	}
	return out
}

func appendVarInt(b []byte, v int) []byte {
	u := uint32(v)
	for {
		if u&^0x7F == 0 {
			return append(b, byte(u))
		}
		b = append(b, byte(u&0x7F|0x80))
		u >>= 7
	}
}

func readVarInt(r *bufio.Reader) (int, error) {
	var value uint32
	for i := 0; i < 5; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int(int32(value)), nil
		}
	}
	return 0, fmt.Errorf("varint too long")
}
