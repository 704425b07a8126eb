package messenger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gswatch-io/gswatch/internal/catalog"
	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/probe"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	games, err := catalog.Load()
	require.NoError(t, err)
	return &Renderer{Catalog: games, Version: "1.0.0"}
}

func testServer() *db.Server {
	return &db.Server{
		GameID:    "tf2",
		Address:   "play.example.com",
		QueryPort: 27015,
		Status:    true,
		StyleID:   "Medium",
		StyleData: db.JSONMap{"fullname": "Team Fortress 2", "country": "US"},
		Result: db.ProbeResult{Probe: probe.Probe{
			Name:       "My TF2 Server",
			Map:        "cp_dustbowl",
			NumPlayers: 12,
			MaxPlayers: 24,
		}},
	}
}

func TestEmbedTitle(t *testing.T) {
	assert.Equal(t, "My Server", embedTitle(false, "My Server"))
	assert.Equal(t, "🔒 My Server", embedTitle(true, "My Server"))

	long := strings.Repeat("x", 300)
	capped := embedTitle(false, long)
	assert.Len(t, []rune(capped), 256)
	assert.True(t, strings.HasSuffix(capped, "..."))
}

func TestToPlayersString(t *testing.T) {
	assert.Equal(t, "12/24 (50%)", ToPlayersString(12, 0, 24))
	assert.Equal(t, "12 (3)/24 (50%)", ToPlayersString(12, 3, 24))
	assert.Equal(t, "5", ToPlayersString(5, 0, 0))
}

func TestRenderMediumStyle(t *testing.T) {
	renderer := testRenderer(t)
	embed := renderer.Render(testServer())

	assert.Equal(t, colorOnline, embed.Color)
	assert.Equal(t, "My TF2 Server", embed.Title)
	assert.Nil(t, embed.Author)

	names := fieldNames(embed)
	assert.Equal(t, []string{"Status", "Address:Port", "Country", "Game", "Current Map", "Players"}, names)
	assert.Equal(t, "🟢 Online", embed.Fields[0].Value)
	assert.Equal(t, "`play.example.com:27015`", embed.Fields[1].Value)
	assert.Equal(t, ":flag_us: US", embed.Fields[2].Value)
	assert.Equal(t, "Team Fortress 2", embed.Fields[3].Value)
	assert.Equal(t, "12/24 (50%)", embed.Fields[5].Value)

	require.NotNil(t, embed.Footer)
	assert.Contains(t, embed.Footer.Text, "GSWatch 1.0.0")
}

func TestRenderOffline(t *testing.T) {
	server := testServer()
	server.Status = false

	embed := testRenderer(t).Render(server)
	assert.Equal(t, colorOffline, embed.Color)
	assert.Equal(t, "🔴 Offline", embed.Fields[0].Value)
}

func TestRenderExtraSmallUsesAuthor(t *testing.T) {
	server := testServer()
	server.StyleID = "ExtraSmall"

	embed := testRenderer(t).Render(server)
	require.NotNil(t, embed.Author)
	assert.Equal(t, "My TF2 Server", embed.Author.Name)
	assert.Empty(t, embed.Title)
	assert.Nil(t, embed.Footer)
	assert.Equal(t, []string{"Status", "Address:Port", "Players"}, fieldNames(embed))
}

func TestRenderMissingMapKeepsGridAligned(t *testing.T) {
	server := testServer()
	server.Result.Map = ""

	embed := testRenderer(t).Render(server)
	names := fieldNames(embed)
	assert.Equal(t, []string{"Status", "Address:Port", "Country", "Game", "Players", emptyField}, names)
	assert.Equal(t, emptyField, embed.Fields[5].Value)
}

func TestRenderLargeStylePlayerList(t *testing.T) {
	server := testServer()
	server.StyleID = "Large"
	server.Result.Players = []probe.Player{
		{Name: "charlie"}, {Name: "alice"}, {Name: "bob"}, {Name: "  "}, {Name: "dave"},
	}

	embed := testRenderer(t).Render(server)
	names := fieldNames(embed)
	require.Contains(t, names, "Player List")

	i := indexOf(names, "Player List")
	require.True(t, i+2 < len(embed.Fields))
	assert.Equal(t, "alice\ndave\n", embed.Fields[i].Value)
	assert.Equal(t, "bob\n", embed.Fields[i+1].Value)
	assert.Equal(t, "charlie\n", embed.Fields[i+2].Value)
}

func TestRenderUnknownStyleFallsBack(t *testing.T) {
	server := testServer()
	server.StyleID = "nope"

	embed := testRenderer(t).Render(server)
	assert.Equal(t, []string{"Status", "Address:Port", "Country", "Game", "Current Map", "Players"}, fieldNames(embed))
}

func TestRenderImageURLValidation(t *testing.T) {
	server := testServer()
	server.StyleData["image_url"] = "https://example.com/banner.png"
	server.StyleData["thumbnail_url"] = "javascript:alert(1)"

	embed := testRenderer(t).Render(server)
	require.NotNil(t, embed.Image)
	assert.Equal(t, "https://example.com/banner.png", embed.Image.URL)
	assert.Nil(t, embed.Thumbnail)
}

func TestRenderAlert(t *testing.T) {
	renderer := testRenderer(t)
	server := testServer()

	down := renderer.RenderAlert(server, false)
	assert.Equal(t, colorAlertOffline, down.Color)
	assert.Equal(t, "Your server seems to be down.", down.Description)
	require.NotNil(t, down.Author)
	assert.Equal(t, "My TF2 Server", down.Author.Name)
	assert.Equal(t, []string{"Game", "Address:Port"}, fieldNames(down))

	up := renderer.RenderAlert(server, true)
	assert.Equal(t, colorAlertOnline, up.Color)
	assert.Equal(t, "Your server is back online.", up.Description)
}

func TestLookupStyle(t *testing.T) {
	assert.Equal(t, "Medium", LookupStyle("").ID)
	assert.Equal(t, "Medium", LookupStyle("bogus").ID)
	assert.Equal(t, "ExtraLarge", LookupStyle("ExtraLarge").ID)
	assert.True(t, LookupStyle("ExtraLarge").Standalone)
	assert.False(t, LookupStyle("Medium").Standalone)
}

func fieldNames(embed Embed) []string {
	names := make([]string, 0, len(embed.Fields))
	for _, field := range embed.Fields {
		names = append(names, field.Name)
	}
	return names
}

func indexOf(names []string, want string) int {
	for i, name := range names {
		if name == want {
			return i
		}
	}
	return -1
}
