package protocol

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// A2S wire constants shared by the source and won strategies.
var (
	a2sInfoRequest   = []byte("\xFF\xFF\xFF\xFFTSource Engine Query\x00")
	a2sPlayerRequest = []byte{0xFF, 0xFF, 0xFF, 0xFF, 'U'}
	a2sRulesRequest  = []byte{0xFF, 0xFF, 0xFF, 0xFF, 'V'}
)

const (
	a2sChallengeReply = 0x41
	a2sInfoReply      = 0x49
	a2sGoldSrcReply   = 0x6D
	a2sPlayerReply    = 0x44
	a2sRulesReply     = 0x45
)

// Keyword-derived overrides for games whose info reply misreports counts.
const (
	appIDMordhau = 629760
	appIDRust    = 252490
)

// sourceStrategy speaks the valve A2S query protocol.
type sourceStrategy struct {
	noPreQuery
}

func (sourceStrategy) Name() string { return "source" }

// a2sInfo is the parsed INFO reply.
type a2sInfo struct {
	Name       string
	Map        string
	Folder     string
	Game       string
	Players    int
	MaxPlayers int
	Bots       int
	Visibility byte
	GamePort   int
	Keywords   string
	GameID     uint64
	HasGameID  bool
}

func (s sourceStrategy) Query(ctx context.Context, ep Endpoint, _ map[string]string) (*probe.Probe, error) {
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

	// Some servers never answer the player query (csgo with
	// host_players_show != 2, conan exiles). Treat that as an empty list.
	players, playersErr := a2sQueryPlayers(session)
	if playersErr != nil {
		players = nil
	}

	probe.SortPlayersByDuration(players)
	humans, bots := probe.SplitBots(players, info.Bots)

	result := &probe.Probe{
		Name:       info.Name,
		Map:        info.Map,
		Password:   info.Visibility != 0,
		NumPlayers: info.Players,
		NumBots:    info.Bots,
		MaxPlayers: info.MaxPlayers,
		Players:    humans,
		Bots:       bots,
		Connect:    connectAddr(ep, info.GamePort),
		Ping:       ping.Millis(),
		Raw: map[string]any{
			"folder": info.Folder,
			"game":   info.Game,
		},
	}

	var tags []string
	if info.Keywords != "" {
		tags = strings.Split(info.Keywords, ",")
		result.Raw["tags"] = tags
	}

	if info.HasGameID {
		switch info.GameID {
		case appIDMordhau:
			// Mordhau reports bogus player counts; the real value rides in
			// the B: keyword tag.
			result.NumPlayers = tagInt(tags, "B:", 0)
		case appIDRust:
			// Rust reports maxplayers via the mp keyword tag.
			result.MaxPlayers = tagInt(tags, "mp", result.MaxPlayers)
		}
	}

	return result, nil
}

func tagInt(tags []string, prefix string, fallback int) int {
	for _, tag := range tags {
		if strings.HasPrefix(tag, prefix) {
			if n, err := strconv.Atoi(tag[len(prefix):]); err == nil {
				return n
			}
		}
	}
	return fallback
}

func connectAddr(ep Endpoint, gamePort int) string {
	if gamePort > 0 {
		return fmt.Sprintf("%s:%d", ep.Host, gamePort)
	}
	return ep.Addr()
}

// a2sQueryInfo performs the INFO exchange, following the challenge handshake
// introduced in 2020: a 0x41 reply carries a token to append to the retry.
func a2sQueryInfo(session *udpSession) (*a2sInfo, error) {
	reply, err := session.RoundTrip(a2sInfoRequest)
	if err != nil {
		return nil, err
	}

	if len(reply) >= 9 && reply[4] == a2sChallengeReply {
		retry := append(append([]byte{}, a2sInfoRequest...), reply[5:9]...)
		if reply, err = session.RoundTrip(retry); err != nil {
			return nil, err
		}
	}

	if len(reply) < 5 {
		return nil, probe.WrapProtocol(errTruncated)
	}

	switch reply[4] {
	case a2sInfoReply:
		return parseSourceInfo(reply[5:])
	case a2sGoldSrcReply:
		return parseGoldSrcInfo(reply[5:])
	default:
		return nil, probe.WrapProtocol(fmt.Errorf("unexpected info reply 0x%02x", reply[4]))
	}
}

func parseSourceInfo(b []byte) (*a2sInfo, error) {
	r := newPacketReader(b)
	r.Byte() // protocol version

	info := &a2sInfo{
		Name:   r.CString(),
		Map:    r.CString(),
		Folder: r.CString(),
		Game:   r.CString(),
	}
	r.Uint16() // steam app id (short form; the EDF 64-bit id supersedes it)
	info.Players = int(r.Byte())
	info.MaxPlayers = int(r.Byte())
	info.Bots = int(r.Byte())
	r.Byte() // server type
	r.Byte() // environment
	info.Visibility = r.Byte()
	r.Byte()    // vac
	r.CString() // version

	if r.Err() == nil && r.Remaining() > 0 {
		edf := r.Byte()
		if edf&0x80 != 0 {
			info.GamePort = int(r.Uint16())
		}
		if edf&0x10 != 0 {
			r.Uint64() // server steam id
		}
		if edf&0x40 != 0 {
			r.Uint16()  // spectator port
			r.CString() // spectator name
		}
		if edf&0x20 != 0 {
			info.Keywords = r.CString()
		}
		if edf&0x01 != 0 {
			info.GameID = r.Uint64()
			info.HasGameID = true
		}
	}

	if err := r.Err(); err != nil {
		return nil, probe.WrapProtocol(err)
	}
	return info, nil
}

// a2sQueryPlayers performs the PLAYER challenge exchange and parses the
// player chunk list.
func a2sQueryPlayers(session *udpSession) ([]probe.Player, error) {
	request := append(append([]byte{}, a2sPlayerRequest...), 0xFF, 0xFF, 0xFF, 0xFF)
	reply, err := session.RoundTrip(request)
	if err != nil {
		return nil, err
	}

	if len(reply) >= 9 && reply[4] == a2sChallengeReply {
		retry := append(append([]byte{}, a2sPlayerRequest...), reply[5:9]...)
		if reply, err = session.RoundTrip(retry); err != nil {
			return nil, err
		}
	}

	if len(reply) < 6 || reply[4] != a2sPlayerReply {
		return nil, probe.WrapProtocol(fmt.Errorf("unexpected player reply"))
	}

	r := newPacketReader(reply[5:])
	count := int(r.Byte())

	players := make([]probe.Player, 0, count)
	for i := 0; i < count && r.Err() == nil; i++ {
		r.Byte() // chunk index, unreliable
		name := r.CString()
		score := r.Int32()
		duration := r.Float32()
		if r.Err() != nil {
			break
		}
		players = append(players, probe.Player{
			Name: name,
			Raw:  map[string]any{"score": int(score), "time": float64(duration)},
		})
	}

	return players, nil
}

// a2sQueryRules performs the RULES challenge exchange and returns the rule
// map.
func a2sQueryRules(session *udpSession) (map[string]string, error) {
	request := append(append([]byte{}, a2sRulesRequest...), 0xFF, 0xFF, 0xFF, 0xFF)
	reply, err := session.RoundTrip(request)
	if err != nil {
		return nil, err
	}

	if len(reply) >= 9 && reply[4] == a2sChallengeReply {
		retry := append(append([]byte{}, a2sRulesRequest...), reply[5:9]...)
		if reply, err = session.RoundTrip(retry); err != nil {
			return nil, err
		}
	}

	if len(reply) < 7 || reply[4] != a2sRulesReply {
		return nil, probe.WrapProtocol(fmt.Errorf("unexpected rules reply"))
	}

	r := newPacketReader(reply[5:])
	count := int(r.Uint16())

	rules := make(map[string]string, count)
	for i := 0; i < count && r.Err() == nil; i++ {
		name := r.CString()
		value := r.CString()
		if r.Err() != nil {
			break
		}
		rules[name] = value
	}

	return rules, nil
}
