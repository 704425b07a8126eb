// Package catalog holds the immutable game table: game id → display name,
// protocol name and default-port options. The table is parsed once at
// startup from an embedded pipe-delimited text resource and never mutated
// afterwards, so lookups are safe from any goroutine.
package catalog

import (
	"bufio"
	"embed"
	"fmt"
	"strconv"
	"strings"
)

//go:embed games.txt
var gamesFS embed.FS

// Game is one entry of the catalog.
type Game struct {
	ID       string            `json:"id"`
	Name     string            `json:"fullname"`
	Protocol string            `json:"protocol"`
	Options  map[string]string `json:"options"`
}

// Catalog is the parsed game table.
type Catalog struct {
	games map[string]Game
	order []string
}

// Load parses the embedded games.txt. Each line is
// "id|name|protocol|options" with ";"-separated "k=v" options; lines
// starting with "#" are comments and the first line is a header.
func Load() (*Catalog, error) {
	f, err := gamesFS.Open("games.txt")
	if err != nil {
		return nil, fmt.Errorf("catalog: open embedded games.txt: %w", err)
	}
	defer f.Close()

	c := &Catalog{games: make(map[string]Game)}
	scanner := bufio.NewScanner(f)
	first := true

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			continue // header
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "|")
		if len(fields) < 3 {
			return nil, fmt.Errorf("catalog: malformed line %q", line)
		}

		game := Game{
			ID:       strings.TrimSpace(fields[0]),
			Name:     strings.TrimSpace(fields[1]),
			Protocol: strings.TrimSpace(fields[2]),
			Options:  map[string]string{},
		}

		if len(fields) > 3 && fields[3] != "" {
			for _, opt := range strings.Split(fields[3], ";") {
				kv := strings.SplitN(opt, "=", 2)
				if len(kv) != 2 {
					return nil, fmt.Errorf("catalog: malformed option %q in line %q", opt, line)
				}
				game.Options[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
			}
		}

		if _, dup := c.games[game.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate game id %q", game.ID)
		}

		c.games[game.ID] = game
		c.order = append(c.order, game.ID)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("catalog: read games.txt: %w", err)
	}

	return c, nil
}

// Find returns the game entry for id, or false when the id is unknown.
func (c *Catalog) Find(id string) (Game, bool) {
	game, ok := c.games[id]
	return game, ok
}

// All returns the catalog entries in file order.
func (c *Catalog) All() []Game {
	games := make([]Game, 0, len(c.order))
	for _, id := range c.order {
		games = append(games, c.games[id])
	}
	return games
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.order) }

// DefaultPort resolves the default query port for a game. Precedence:
// explicit port_query, then port + port_query_offset, then (valve family
// only) 27015 + port_query_offset, then the plain game port. Returns 0
// for directory-indexed protocols that have no port at all.
func (c *Catalog) DefaultPort(id string) int {
	game, ok := c.games[id]
	if !ok {
		return 0
	}

	if v, ok := game.Options["port_query"]; ok {
		return atoi(v)
	}

	if offset, ok := game.Options["port_query_offset"]; ok {
		if port, ok := game.Options["port"]; ok {
			return atoi(port) + atoi(offset)
		}
		if game.Protocol == "source" {
			return 27015 + atoi(offset)
		}
	}

	if v, ok := game.Options["port"]; ok {
		return atoi(v)
	}

	return 0
}

// IsPortValid reports whether s is an integer in the range 0..65535.
// Port 0 is permitted for directory-indexed protocols.
func IsPortValid(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0 && n <= 65535
}

// GamePort extracts the game port from a probe connect string of the form
// "host:port". Returns 0 when the string carries no parsable port.
func GamePort(connect string) int {
	idx := strings.LastIndex(connect, ":")
	if idx < 0 {
		return 0
	}
	return atoi(connect[idx+1:])
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
