// Package probe defines the normalized result shape every protocol strategy
// returns, together with the error taxonomy the scheduler uses to classify
// probe failures. The Probe type is stored as JSON in the servers table, so
// its field names are part of the persisted contract and must stay stable.
package probe

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Player is a single entry of a server's player (or bot) list. Raw carries
// whatever protocol-specific fields the wire format exposed (score, duration,
// ping) without forcing a common schema on them.
type Player struct {
	Name string         `json:"name"`
	Raw  map[string]any `json:"raw,omitempty"`
}

// Probe is the normalized outcome of one successful server query.
//
// Raw holds protocol-specific leftovers plus the internal bookkeeping keys
// (prefixed "__") the scheduler and alert engine maintain across ticks:
// __fail_query_count, __offline_since and __sent_offline_alert. Those keys
// survive JSON round trips through the database, which is why they live in
// the map instead of dedicated struct fields.
type Probe struct {
	Name       string         `json:"name"`
	Map        string         `json:"map"`
	Password   bool           `json:"password"`
	NumPlayers int            `json:"numplayers"`
	NumBots    int            `json:"numbots"`
	MaxPlayers int            `json:"maxplayers"`
	Players    []Player       `json:"players"`
	Bots       []Player       `json:"bots"`
	Connect    string         `json:"connect"`
	Ping       int            `json:"ping"`
	Raw        map[string]any `json:"raw"`
}

// Internal bookkeeping keys kept inside Probe.Raw.
const (
	keyFailQueryCount   = "__fail_query_count"
	keyOfflineSince     = "__offline_since"
	keySentOfflineAlert = "__sent_offline_alert"
)

// ensureRaw lazily allocates the Raw map so accessors work on
// zero-value Probes loaded from old rows.
func (p *Probe) ensureRaw() {
	if p.Raw == nil {
		p.Raw = make(map[string]any)
	}
}

// rawInt reads an integer from Raw tolerating the types JSON decoding
// produces (float64) as well as string-encoded counters written by older
// versions of the service.
func (p *Probe) rawInt(key string) int {
	switch v := p.Raw[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// FailQueryCount returns the number of consecutive failed queries recorded
// for this endpoint. Zero for endpoints that are up.
func (p *Probe) FailQueryCount() int { return p.rawInt(keyFailQueryCount) }

// SetFailQueryCount overwrites the consecutive failure counter.
func (p *Probe) SetFailQueryCount(n int) {
	p.ensureRaw()
	p.Raw[keyFailQueryCount] = n
}

// OfflineSince returns the unix timestamp of the first failure in the
// current down-run, or 0 when the endpoint has never failed.
func (p *Probe) OfflineSince() int64 { return int64(p.rawInt(keyOfflineSince)) }

// MarkOffline records a failed query at the given unix timestamp: the
// failure counter is incremented and __offline_since keeps the earliest
// timestamp of the down-run.
func (p *Probe) MarkOffline(now int64) {
	p.ensureRaw()
	p.Raw[keyFailQueryCount] = p.FailQueryCount() + 1

	if since := p.OfflineSince(); since == 0 || now < since {
		p.Raw[keyOfflineSince] = now
	}
}

// SentOfflineAlert reports whether an offline alert was already delivered
// during the current down-run.
func (p *Probe) SentOfflineAlert() bool {
	v, ok := p.Raw[keySentOfflineAlert].(bool)
	return ok && v
}

// SetSentOfflineAlert sets or clears the offline-alert hysteresis flag.
func (p *Probe) SetSentOfflineAlert(sent bool) {
	p.ensureRaw()
	p.Raw[keySentOfflineAlert] = sent
}

// CarryAlertFlag copies the hysteresis flag from a previous probe result
// onto this one. Called on every successful query so that the alert engine
// can detect the down→up edge after the result has been replaced wholesale.
func (p *Probe) CarryAlertFlag(prev *Probe) {
	p.SetSentOfflineAlert(prev != nil && prev.SentOfflineAlert())
}

// SortPlayersByDuration sorts players by their raw "time" field descending.
// Several valve-family wire formats omit a bot flag; callers sort by
// connection duration and peel the trailing entries off as bots.
func SortPlayersByDuration(players []Player) {
	sort.SliceStable(players, func(i, j int) bool {
		return playerDuration(players[i]) > playerDuration(players[j])
	})
}

// SplitBots splits a duration-sorted player list into (players, bots) by
// peeling the first numBots entries off as bots, mirroring how the valve
// info reply counts bots without flagging individual entries.
func SplitBots(players []Player, numBots int) (humans, bots []Player) {
	if numBots <= 0 || len(players) == 0 {
		return players, []Player{}
	}
	if numBots > len(players) {
		numBots = len(players)
	}
	return players[numBots:], players[:numBots]
}

func playerDuration(p Player) float64 {
	switch v := p.Raw["time"].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

var (
	caretColor  = regexp.MustCompile(`\^[0-9a-fl-pr]`)
	sectionSign = regexp.MustCompile(`§.`)
	ecoMarkup   = regexp.MustCompile(`<color=\w*>|<(color=)?#[0-9a-fA-F]{6}>|</color>`)
	ecoBold     = regexp.MustCompile(`</?b>`)
	ecoItalic   = regexp.MustCompile(`</?i>`)
	richTag     = regexp.MustCompile(`\[\w*=\w*\]|\[/\w*\]`)
)

// StripCaretColors removes quake/beammp style ^-color codes from s.
func StripCaretColors(s string) string { return caretColor.ReplaceAllString(s, "") }

// StripSectionColors removes minecraft §-formatting codes from s.
func StripSectionColors(s string) string { return sectionSign.ReplaceAllString(s, "") }

// StripRichTags removes factorio [tag=value]...[/tag] rich text markers.
func StripRichTags(s string) string { return richTag.ReplaceAllString(s, "") }

// StripHTMLColors removes eco-style <color>/<b>/<i> markup. Italic markers
// are replaced with underscores, keeping the visual emphasis readable in
// plain text.
func StripHTMLColors(s string) string {
	s = ecoMarkup.ReplaceAllString(s, "")
	s = ecoBold.ReplaceAllString(s, "")
	return ecoItalic.ReplaceAllString(s, "_")
}

// TrimLines trims every line of a multi-line server description, used by
// the minecraft strategy to tidy centered MOTD text.
func TrimLines(s string) string {
	rows := strings.Split(s, "\n")
	for i, row := range rows {
		rows[i] = strings.TrimSpace(row)
	}
	return strings.Join(rows, "\n")
}
