package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	require.Greater(t, c.Len(), 40)

	game, ok := c.Find("tf2")
	require.True(t, ok)
	assert.Equal(t, "Team Fortress 2", game.Name)
	assert.Equal(t, "source", game.Protocol)
	assert.Equal(t, "27015", game.Options["port"])

	_, ok = c.Find("no-such-game")
	assert.False(t, ok)
}

func TestAllPreservesFileOrder(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	games := c.All()
	require.Len(t, games, c.Len())
	assert.Equal(t, "source", games[0].ID)

	// Every entry must name a protocol.
	for _, g := range games {
		assert.NotEmpty(t, g.Protocol, "game %s", g.ID)
	}
}

func TestDefaultPort(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	tests := []struct {
		id   string
		want int
	}{
		{"tf2", 27015},          // plain game port
		{"mordhau", 27015},      // explicit port_query wins over port
		{"rust", 15399},         // port + negative offset
		{"valheim", 2457},       // port + positive offset
		{"ut", 7778},            // non-valve offset still uses port
		{"discord", 0},          // directory protocol, no port
		{"unknown-game", 0},     // miss
		{"bf1942", 23000},       // explicit port_query
		{"hexen2", 26950},       // quake family offset
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.DefaultPort(tt.id), "game %s", tt.id)
	}
}

func TestIsPortValid(t *testing.T) {
	assert.True(t, IsPortValid("0"))
	assert.True(t, IsPortValid("27015"))
	assert.True(t, IsPortValid("65535"))
	assert.False(t, IsPortValid("65536"))
	assert.False(t, IsPortValid("-1"))
	assert.False(t, IsPortValid("query"))
	assert.False(t, IsPortValid(""))
}

func TestGamePort(t *testing.T) {
	assert.Equal(t, 27015, GamePort("192.168.1.1:27015"))
	assert.Equal(t, 0, GamePort("192.168.1.1"))
	assert.Equal(t, 0, GamePort(""))
}
