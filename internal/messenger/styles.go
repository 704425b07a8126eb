package messenger

// The style set is data, not a type hierarchy: every style is the same
// rendering routine parameterized by a fields config.

type embedFieldKind int

const (
	fieldStatus embedFieldKind = iota
	fieldAddress
	fieldCountry
	fieldGame
	fieldPlayers
	fieldMapAndPlayers
)

type fieldsConfig struct {
	titleAsAuthor bool
	footer        bool
	playerList    bool
	botList       bool
	order         []embedFieldKind
}

// Style describes one embed layout.
type Style struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`

	// Standalone styles occupy a whole message on their own.
	Standalone bool `json:"standalone"`

	fields fieldsConfig
}

// DefaultStyleID is used when a row carries an unknown or empty style.
const DefaultStyleID = "Medium"

var styles = []Style{
	{
		ID:          "ExtraSmall",
		DisplayName: "Extra Small",
		Description: "An extra-small-sized style that displays the minimum server information.",
		fields: fieldsConfig{
			titleAsAuthor: true,
			order:         []embedFieldKind{fieldStatus, fieldAddress, fieldPlayers},
		},
	},
	{
		ID:          "Small",
		DisplayName: "Small",
		Description: "A small-sized style that displays less server information.",
		fields: fieldsConfig{
			footer: true,
			order:  []embedFieldKind{fieldGame, fieldAddress, fieldPlayers},
		},
	},
	{
		ID:          "Medium",
		DisplayName: "Medium",
		Description: "A medium-sized style that displays server information.",
		fields: fieldsConfig{
			footer: true,
			order:  []embedFieldKind{fieldStatus, fieldAddress, fieldCountry, fieldGame, fieldMapAndPlayers},
		},
	},
	{
		ID:          "Large",
		DisplayName: "Large",
		Description: "A large-sized style that shows server info and player list.",
		fields: fieldsConfig{
			footer:     true,
			playerList: true,
			order:      []embedFieldKind{fieldStatus, fieldAddress, fieldCountry, fieldGame, fieldMapAndPlayers},
		},
	},
	{
		ID:          "ExtraLarge",
		DisplayName: "Extra Large",
		Description: "An extra-large-sized style that shows server info, player list and bot list.",
		Standalone:  true,
		fields: fieldsConfig{
			footer:     true,
			playerList: true,
			botList:    true,
			order:      []embedFieldKind{fieldStatus, fieldAddress, fieldCountry, fieldGame, fieldMapAndPlayers},
		},
	},
}

var stylesByID = func() map[string]Style {
	m := make(map[string]Style, len(styles))
	for _, s := range styles {
		m[s.ID] = s
	}
	return m
}()

// LookupStyle returns the style for id, falling back to the default.
func LookupStyle(id string) Style {
	if s, ok := stylesByID[id]; ok {
		return s
	}
	return stylesByID[DefaultStyleID]
}

// Styles returns every style in display order.
func Styles() []Style {
	out := make([]Style, len(styles))
	copy(out, styles)
	return out
}
