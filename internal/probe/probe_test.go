package probe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkOffline(t *testing.T) {
	var p Probe

	p.MarkOffline(1000)
	assert.Equal(t, 1, p.FailQueryCount())
	assert.EqualValues(t, 1000, p.OfflineSince())

	// Later failures keep the earliest timestamp of the down-run.
	p.MarkOffline(2000)
	assert.Equal(t, 2, p.FailQueryCount())
	assert.EqualValues(t, 1000, p.OfflineSince())
}

func TestCountersSurviveJSONRoundTrip(t *testing.T) {
	var p Probe
	p.MarkOffline(1000)
	p.SetSentOfflineAlert(true)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded Probe
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, 1, decoded.FailQueryCount())
	assert.EqualValues(t, 1000, decoded.OfflineSince())
	assert.True(t, decoded.SentOfflineAlert())
}

func TestRawIntToleratesStrings(t *testing.T) {
	p := Probe{Raw: map[string]any{"__fail_query_count": "7"}}
	assert.Equal(t, 7, p.FailQueryCount())
}

func TestCarryAlertFlag(t *testing.T) {
	prev := &Probe{}
	prev.SetSentOfflineAlert(true)

	var fresh Probe
	fresh.CarryAlertFlag(prev)
	assert.True(t, fresh.SentOfflineAlert())

	var fresh2 Probe
	fresh2.CarryAlertFlag(nil)
	assert.False(t, fresh2.SentOfflineAlert())
}

func TestSortPlayersByDuration(t *testing.T) {
	players := []Player{
		{Name: "new", Raw: map[string]any{"time": 10.0}},
		{Name: "old", Raw: map[string]any{"time": 3600.0}},
		{Name: "none"},
	}

	SortPlayersByDuration(players)
	assert.Equal(t, "old", players[0].Name)
	assert.Equal(t, "new", players[1].Name)
	assert.Equal(t, "none", players[2].Name)
}

func TestSplitBots(t *testing.T) {
	players := []Player{{Name: "b1"}, {Name: "b2"}, {Name: "h1"}}

	humans, bots := SplitBots(players, 2)
	require.Len(t, humans, 1)
	assert.Equal(t, "h1", humans[0].Name)
	require.Len(t, bots, 2)

	humans, bots = SplitBots(players, 0)
	assert.Len(t, humans, 3)
	assert.Empty(t, bots)

	humans, bots = SplitBots(players, 9)
	assert.Empty(t, humans)
	assert.Len(t, bots, 3)
}

func TestStripCaretColors(t *testing.T) {
	assert.Equal(t, "My Server", StripCaretColors("^1My ^4Server"))
}

func TestStripSectionColors(t *testing.T) {
	assert.Equal(t, "A Minecraft Server", StripSectionColors("§aA Minecraft §lServer"))
}

func TestStripRichTags(t *testing.T) {
	assert.Equal(t, "my factory", StripRichTags("[color=red]my factory[/color]"))
}

func TestStripHTMLColors(t *testing.T) {
	assert.Equal(t, "Eco Server", StripHTMLColors("<color=green>Eco</color> <b>Server</b>"))
	assert.Equal(t, "_fancy_", StripHTMLColors("<i>fancy</i>"))
}

func TestTrimLines(t *testing.T) {
	assert.Equal(t, "line one\nline two", TrimLines("   line one   \n  line two  "))
}
