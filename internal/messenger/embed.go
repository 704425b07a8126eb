// Package messenger renders monitored servers into chat embeds and keeps the
// published messages current: a rate-budgeted refresher edits existing
// messages every tick, and a resend path republishes a channel from scratch.
package messenger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gswatch-io/gswatch/internal/catalog"
	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/probe"
)

// Embed colors.
const (
	colorOnline  = 0x5865F2
	colorOffline = 0x202225
)

// Embed is the chat platform's embed object, serialized as-is on the REST
// surface.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Image       *EmbedMedia  `json:"image,omitempty"`
	Thumbnail   *EmbedMedia  `json:"thumbnail,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

type EmbedAuthor struct {
	Name string `json:"name"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedMedia struct {
	URL string `json:"url"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// emptyField renders as a blank inline cell, used to keep the 3-column grid
// aligned.
const emptyField = "*​*"

// Renderer builds embeds for server rows. Version appears in the footer.
type Renderer struct {
	Catalog *catalog.Catalog
	Version string
}

// Render builds the embed for one server row in its configured style.
func (r *Renderer) Render(server *db.Server) Embed {
	style := LookupStyle(server.StyleID)
	result := &server.Result.Probe

	embed := Embed{Color: colorOffline}
	if server.Status {
		embed.Color = colorOnline
	}

	title := embedTitle(result.Password, result.Name)
	if style.fields.titleAsAuthor {
		embed.Author = &EmbedAuthor{Name: title}
	} else {
		embed.Title = title
	}

	if description := styleString(server, "description"); description != "" {
		embed.Description = description
	}

	for _, field := range style.fields.order {
		switch field {
		case fieldStatus:
			embed.Fields = append(embed.Fields, EmbedField{
				Name:   "Status",
				Value:  statusValue(server.Status),
				Inline: true,
			})
		case fieldAddress:
			embed.Fields = append(embed.Fields, r.addressField(server))
		case fieldCountry:
			embed.Fields = append(embed.Fields, countryField(server))
		case fieldGame:
			embed.Fields = append(embed.Fields, r.gameField(server))
		case fieldPlayers:
			embed.Fields = append(embed.Fields, playersField(server))
		case fieldMapAndPlayers:
			// The map cell and the players cell share a row; an absent map
			// gets a blank filler to keep the grid aligned.
			if mapName := strings.TrimSpace(result.Map); mapName != "" {
				embed.Fields = append(embed.Fields, EmbedField{Name: "Current Map", Value: mapName, Inline: true})
				embed.Fields = append(embed.Fields, playersField(server))
			} else {
				embed.Fields = append(embed.Fields, playersField(server))
				embed.Fields = append(embed.Fields, EmbedField{Name: emptyField, Value: emptyField, Inline: true})
			}
		}
	}

	if style.fields.playerList {
		name := "Player List"
		if server.GameID == "discord" {
			name = "Members"
		}
		embed.Fields = append(embed.Fields, playerListFields(name, result.Players)...)
	}
	if style.fields.botList {
		embed.Fields = append(embed.Fields, playerListFields("Bot List", result.Bots)...)
	}

	if url := styleString(server, "image_url"); isHTTPURL(url) {
		embed.Image = &EmbedMedia{URL: url}
	}
	if url := styleString(server, "thumbnail_url"); isHTTPURL(url) {
		embed.Thumbnail = &EmbedMedia{URL: url}
	}

	if style.fields.footer {
		embed.Footer = &EmbedFooter{Text: r.footerText(server)}
	}

	return embed
}

// embedTitle prefixes a lock for passworded servers and caps the platform's
// 256-character limit.
func embedTitle(password bool, name string) string {
	title := name
	if password {
		title = "🔒 " + name
	}

	if runes := []rune(title); len(runes) > 256 {
		title = string(runes[:253]) + "..."
	}
	return title
}

func statusValue(up bool) string {
	if up {
		return "🟢 Online"
	}
	return "🔴 Offline"
}

// addressField formats the displayed address. When the game port differs from
// the query port, both are shown.
func (r *Renderer) addressField(server *db.Server) EmbedField {
	if server.GameID == "discord" {
		return EmbedField{Name: "Guild ID", Value: fmt.Sprintf("`%s`", server.Address), Inline: true}
	}

	gamePort := catalog.GamePort(server.Result.Connect)
	if gamePort <= 0 || gamePort == server.QueryPort {
		return EmbedField{
			Name:   "Address:Port",
			Value:  fmt.Sprintf("`%s:%d`", server.Address, server.QueryPort),
			Inline: true,
		}
	}
	return EmbedField{
		Name:   "Address:Port (Query)",
		Value:  fmt.Sprintf("`%s:%d (%d)`", server.Address, gamePort, server.QueryPort),
		Inline: true,
	}
}

func (r *Renderer) gameField(server *db.Server) EmbedField {
	name := styleString(server, "fullname")
	if name == "" {
		name = server.GameID
	}
	return EmbedField{Name: "Game", Value: name, Inline: true}
}

func countryField(server *db.Server) EmbedField {
	value := ":united_nations: Unknown"
	if country := styleString(server, "country"); country != "" {
		value = fmt.Sprintf(":flag_%s: %s", strings.ToLower(country), country)
	}
	return EmbedField{Name: "Country", Value: value, Inline: true}
}

func playersField(server *db.Server) EmbedField {
	name := "Players"
	if server.GameID == "discord" {
		name = "Presence"
	}
	return EmbedField{Name: name, Value: PlayersString(server), Inline: true}
}

// playerListFields lays names out over three inline columns, sorted, blanks
// skipped.
func playerListFields(name string, players []probe.Player) []EmbedField {
	names := make([]string, 0, len(players))
	for _, player := range players {
		if trimmed := strings.TrimSpace(player.Name); trimmed != "" {
			names = append(names, player.Name)
		}
	}
	sort.Strings(names)

	values := [3]string{}
	for i, n := range names {
		values[i%3] += n + "\n"
	}

	fields := make([]EmbedField, 3)
	for i := range fields {
		fieldName := emptyField
		if i == 0 {
			fieldName = name
		}
		value := values[i]
		if value == "" {
			value = emptyField
		}
		fields[i] = EmbedField{Name: fieldName, Value: value, Inline: true}
	}
	return fields
}

func (r *Renderer) footerText(server *db.Server) string {
	advertisement := "📺 Game Server Monitor"
	switch now := time.Now(); {
	case now.Month() == time.December && now.Day() == 25:
		advertisement = "🎅 Merry Christmas!"
	case now.Month() == time.January && now.Day() == 1:
		advertisement = "🎉 Happy New Year!"
	}

	location := time.UTC
	if tz := styleString(server, "timezone"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			location = loc
		}
	}

	format := "2006-01-02 03:04:05PM"
	if styleString(server, "clock_format") == "24" {
		format = "2006-01-02 15:04:05"
	}
	lastUpdate := time.Now().In(location).Format(format)

	return fmt.Sprintf("GSWatch %s | %s | Last update: %s", r.Version, advertisement, lastUpdate)
}

// Alert embed colors.
const (
	colorAlertOnline  = 0x57F287
	colorAlertOffline = 0xED4245
)

// RenderAlert builds the webhook embed announcing a status transition.
func (r *Renderer) RenderAlert(server *db.Server, online bool) Embed {
	embed := Embed{
		Author: &EmbedAuthor{Name: embedTitle(server.Result.Password, server.Result.Name)},
	}

	if online {
		embed.Description = "Your server is back online."
		embed.Color = colorAlertOnline
	} else {
		embed.Description = "Your server seems to be down."
		embed.Color = colorAlertOffline
	}

	embed.Fields = append(embed.Fields, r.gameField(server))
	embed.Fields = append(embed.Fields, r.addressField(server))

	queryTime := time.Now().UTC().Format("2006-01-02 03:04:05PM")
	embed.Footer = &EmbedFooter{Text: fmt.Sprintf("GSWatch %s | Query time: %s", r.Version, queryTime)}

	return embed
}

// PlayerData returns the (players, bots, maxplayers) triple used by the
// players string and the presence task.
func PlayerData(server *db.Server) (players, bots, maxplayers int) {
	return server.Result.NumPlayers, server.Result.NumBots, server.Result.MaxPlayers
}

// PlayersString renders "players (bots)/max (pct%)", omitting the parts that
// do not apply.
func PlayersString(server *db.Server) string {
	players, bots, maxplayers := PlayerData(server)
	return ToPlayersString(players, bots, maxplayers)
}

func ToPlayersString(players, bots, maxplayers int) string {
	s := fmt.Sprintf("%d", players)
	if bots > 0 {
		s += fmt.Sprintf(" (%d)", bots)
	}
	if maxplayers > 0 {
		percentage := players * 100 / maxplayers
		s = fmt.Sprintf("%s/%d (%d%%)", s, maxplayers, percentage)
	}
	return s
}

func styleString(server *db.Server, key string) string {
	if value, ok := server.StyleData[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
