package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gswatch-io/gswatch/internal/probe"
)

func TestParseSourceInfo(t *testing.T) {
	payload := []byte{0x11}
	payload = append(payload, "Test Server\x00"...)
	payload = append(payload, "de_dust2\x00"...)
	payload = append(payload, "csgo\x00"...)
	payload = append(payload, "Counter-Strike\x00"...)
	payload = binary.LittleEndian.AppendUint16(payload, 730)
	payload = append(payload,
		12,   // players
		24,   // max players
		2,    // bots
		'd',  // server type
		'l',  // environment
		1,    // visibility
		1,    // vac
	)
	payload = append(payload, "1.38.0.1\x00"...)
	payload = append(payload, 0x80|0x20) // edf: port + keywords
	payload = binary.LittleEndian.AppendUint16(payload, 27016)
	payload = append(payload, "secure,valve\x00"...)

	info, err := parseSourceInfo(payload)
	require.NoError(t, err)

	assert.Equal(t, "Test Server", info.Name)
	assert.Equal(t, "de_dust2", info.Map)
	assert.Equal(t, "csgo", info.Folder)
	assert.Equal(t, 12, info.Players)
	assert.Equal(t, 24, info.MaxPlayers)
	assert.Equal(t, 2, info.Bots)
	assert.EqualValues(t, 1, info.Visibility)
	assert.Equal(t, 27016, info.GamePort)
	assert.Equal(t, "secure,valve", info.Keywords)
	assert.False(t, info.HasGameID)
}

func TestParseSourceInfoTruncated(t *testing.T) {
	_, err := parseSourceInfo([]byte{0x11, 'a'})
	assert.Error(t, err)
}

func TestTagInt(t *testing.T) {
	tags := []string{"mp120", "B:57", "secure"}
	assert.Equal(t, 120, tagInt(tags, "mp", 0))
	assert.Equal(t, 57, tagInt(tags, "B:", 0))
	assert.Equal(t, 99, tagInt(tags, "gm", 99))
}

func TestSplitQuakeInfoReply(t *testing.T) {
	reply := []byte("\xFF\xFF\xFF\xFFstatusResponse\n\\sv_hostname\\Arena\\mapname\\q3dm17\\sv_maxclients\\16\n5 30 \"Ranger\"\n0 10 \"Visor\"\n")

	info, lines, err := splitQuakeInfoReply(reply, []byte("\xFF\xFF\xFF\xFFstatusResponse"))
	require.NoError(t, err)

	assert.Equal(t, "Arena", info["sv_hostname"])
	assert.Equal(t, "q3dm17", info["mapname"])
	assert.Len(t, lines, 2)
}

func TestQuakePlayers(t *testing.T) {
	players, bots := quakePlayers([]string{`5 30 "Ranger"`, `0 0 "Visor"`}, quakeV3)
	require.Len(t, players, 1)
	require.Len(t, bots, 1)
	assert.Equal(t, "Ranger", players[0].Name)
	assert.Equal(t, "Visor", bots[0].Name)

	players, bots = quakePlayers([]string{`12 8 44 25 "Shambler" "base" 4 12`}, quakeV1)
	require.Len(t, players, 1)
	assert.Empty(t, bots)
	assert.Equal(t, "Shambler", players[0].Name)
	assert.Equal(t, 8, players[0].Raw["score"])
	assert.Equal(t, 44, players[0].Raw["time"])
}

func TestSplitQuakeInfoReplyBadHeader(t *testing.T) {
	_, _, err := splitQuakeInfoReply([]byte("\xFF\xFF\xFF\xFFprint\nbad"), []byte("\xFF\xFF\xFF\xFFstatusResponse"))
	assert.ErrorIs(t, err, probe.ErrProtocol)
}

func TestTokenizeQuoted(t *testing.T) {
	tokens := tokenizeQuoted(`3 25 "Player One" "skin name"`)
	assert.Equal(t, []string{"3", "25", "Player One", "skin name"}, tokens)

	assert.Equal(t, []string{"0", "0", ""}, tokenizeQuoted(`0 0 ""`))
}

func TestParseGamespy3Payload(t *testing.T) {
	payload := []byte("hostname\x00Mine Battle\x00mapname\x00world\x00numplayers\x002\x00maxplayers\x0020\x00\x00\x01player_\x00\x00Steve\x00Alex\x00\x00")

	info, players, err := parseGamespy3Payload(payload)
	require.NoError(t, err)

	assert.Equal(t, "Mine Battle", info["hostname"])
	assert.Equal(t, "world", info["mapname"])
	require.Len(t, players, 2)
	assert.Equal(t, "Steve", players[0].Name)
	assert.Equal(t, "Alex", players[1].Name)
}

func TestMinecraftDescription(t *testing.T) {
	assert.Equal(t, "plain motd", minecraftDescription([]byte(`"plain motd"`)))
	assert.Equal(t, "hello world", minecraftDescription([]byte(`{"text":"hello ","extra":[{"text":"world"}]}`)))
	assert.Equal(t, "", minecraftDescription([]byte(`42`)))
}

func TestParseFrostbiteInfo(t *testing.T) {
	words := []string{
		"BF4 Test", "30", "64", "ConquestLarge0", "MP_Prison", "1", "2",
		"2", "100", "120", // team block
		"300", "", "true", "true", "false", "3600", "900",
		"1.2.3", "true", "10.0.0.1:25200",
	}

	info, err := parseFrostbiteInfo(words)
	require.NoError(t, err)

	assert.Equal(t, "BF4 Test", info["hostname"])
	assert.Equal(t, 30, info["numplayers"])
	assert.Equal(t, 64, info["maxplayers"])
	assert.Equal(t, "MP_Prison", info["map"])
	assert.Equal(t, false, info["password"])
	assert.Equal(t, "10.0.0.1:25200", info["ip_port"])
}

func TestParseFrostbitePlayers(t *testing.T) {
	words := []string{
		"4",
		"name", "guid", "teamId", "score",
		"2",
		"Alpha", "EA_1", "1", "500",
		"Bravo", "EA_2", "2", "250",
	}

	players := parseFrostbitePlayers(words)
	require.Len(t, players, 2)
	assert.Equal(t, "Alpha", players[0].Name)
	assert.Equal(t, "250", players[1].Raw["score"])
}

func TestParseSatisfactoryPoll(t *testing.T) {
	cookie := uint64(0xDEADBEEF)

	reply := binary.LittleEndian.AppendUint16(nil, satisfactoryMagic)
	reply = append(reply, satisfactoryServerState, 1)
	reply = binary.LittleEndian.AppendUint64(reply, cookie)
	reply = append(reply, 3)                                // state: playing
	reply = binary.LittleEndian.AppendUint32(reply, 366202) // net CL
	reply = binary.LittleEndian.AppendUint64(reply, 0)      // flags
	reply = append(reply, 1, 0)                             // one substate
	reply = binary.LittleEndian.AppendUint16(reply, 1)      // substate version
	reply = binary.LittleEndian.AppendUint16(reply, uint16(len("Ficsit Inc")))
	reply = append(reply, "Ficsit Inc"...)
	reply = append(reply, satisfactoryTerminator)

	name, state, err := parseSatisfactoryPoll(reply, cookie)
	require.NoError(t, err)
	assert.Equal(t, "Ficsit Inc", name)
	assert.EqualValues(t, 3, state)

	_, _, err = parseSatisfactoryPoll(reply, cookie+1)
	assert.ErrorIs(t, err, probe.ErrProtocol)
}

func TestBeammpMapName(t *testing.T) {
	assert.Equal(t, "East Coast Usa", beammpMapName("/levels/east_coast_usa/info.json"))
	assert.Equal(t, "Gridmap", beammpMapName("levels/gridmap/info.json"))
	assert.Equal(t, "Custom Map", beammpMapName("custom_map"))
}

func TestSplitPlayerCount(t *testing.T) {
	current, max := splitPlayerCount("17/25")
	assert.Equal(t, 17, current)
	assert.Equal(t, 25, max)

	current, max = splitPlayerCount("3")
	assert.Equal(t, 3, current)
	assert.Equal(t, 0, max)
}

func TestRegistryFind(t *testing.T) {
	registry := NewRegistry(Options{})

	s, err := registry.Find("source")
	require.NoError(t, err)
	assert.Equal(t, "source", s.Name())

	_, err = registry.Find("gamedig")
	assert.ErrorIs(t, err, probe.ErrInvalidGame)
}

func TestRegistryPreQueryStrategies(t *testing.T) {
	names := func(strategies []Strategy) []string {
		out := make([]string, 0, len(strategies))
		for _, s := range strategies {
			out = append(out, s.Name())
		}
		return out
	}

	anonymous := NewRegistry(Options{})
	assert.Equal(t, []string{"asa", "front"}, names(anonymous.PreQueryStrategies()))

	authed := NewRegistry(Options{FactorioUsername: "engineer", FactorioToken: "tok"})
	assert.Equal(t, []string{"asa", "factorio", "front"}, names(authed.PreQueryStrategies()))
}

func TestRegistryNamesCoverCatalogProtocols(t *testing.T) {
	registry := NewRegistry(Options{})
	assert.Len(t, registry.Names(), 33)
	assert.Contains(t, registry.Names(), "teamspeak3")
}

func TestEndpointAddr(t *testing.T) {
	assert.Equal(t, "198.51.100.7:27015", Endpoint{Host: "198.51.100.7", Port: 27015}.Addr())
	assert.Equal(t, "[2001:db8::1]:27015", Endpoint{Host: "2001:db8::1", Port: 27015}.Addr())
}
