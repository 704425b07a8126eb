package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// JSONMap is a map column persisted as a JSON text blob. json.Marshal sorts
// map keys, so the serialized form is deterministic and can be compared with
// plain string equality in WHERE clauses.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("db: marshal json map: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	b, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// String returns the canonical serialized form, the same text the Valuer
// writes. Used to match rows on the query_extra column.
func (m JSONMap) String() string {
	v, err := m.Value()
	if err != nil {
		return "{}"
	}
	return v.(string)
}

// ProbeResult is a probe.Probe persisted as a JSON text blob in the result
// column of the servers table.
type ProbeResult struct {
	probe.Probe
}

// Value implements driver.Valuer.
func (r ProbeResult) Value() (driver.Value, error) {
	b, err := json.Marshal(r.Probe)
	if err != nil {
		return nil, fmt.Errorf("db: marshal probe result: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (r *ProbeResult) Scan(src any) error {
	b, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		r.Probe = probe.Probe{}
		return nil
	}
	return json.Unmarshal(b, &r.Probe)
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("db: cannot scan %T as json", src)
	}
}

// Server is one monitored endpoint rendered into one chat channel. The same
// physical game server may appear in several rows (different channels or
// guilds); rows sharing (game_id, address, query_port, query_extra) are
// updated together after each probe.
//
// MessageID is nullable: a row with a null message id has no embed posted
// yet, or its message was deleted and will be resent on the next refresh.
type Server struct {
	ID         uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	Position   int         `gorm:"not null" json:"position"`
	GuildID    int64       `gorm:"not null;index" json:"guild_id"`
	ChannelID  int64       `gorm:"not null;index" json:"channel_id"`
	MessageID  *int64      `json:"message_id"`
	GameID     string      `gorm:"not null" json:"game_id"`
	Address    string      `gorm:"not null" json:"address"`
	QueryPort  int         `gorm:"not null" json:"query_port"`
	QueryExtra JSONMap     `gorm:"type:text;not null" json:"query_extra"`
	Status     bool        `gorm:"not null" json:"status"`
	Result     ProbeResult `gorm:"type:text;not null" json:"result"`
	StyleID    string      `gorm:"not null" json:"style_id"`
	StyleData  JSONMap     `gorm:"type:text;not null" json:"style_data"`
}

// TableName implements the gorm naming override.
func (Server) TableName() string { return "servers" }

// EndpointKey returns the distinct-endpoint identity of the row. Rows with
// equal keys are probed once per tick and share the probe outcome.
func (s *Server) EndpointKey() string {
	return fmt.Sprintf("%s|%s|%d|%s", s.GameID, s.Address, s.QueryPort, s.QueryExtra.String())
}

// StripSecrets removes sensitive values before the row leaves the process:
// underscore-prefixed query_extra keys hold credentials and tokens, and the
// style_data description is free text that may embed them too.
func (s *Server) StripSecrets() {
	for k := range s.QueryExtra {
		if len(k) > 0 && k[0] == '_' {
			delete(s.QueryExtra, k)
		}
	}
	for k := range s.StyleData {
		if (len(k) > 0 && k[0] == '_') || k == "description" {
			delete(s.StyleData, k)
		}
	}
}

// Metric is one sample of a per-endpoint ring buffer capturing player counts
// over time. The ring is trimmed to METRICS_RECORD_LIMIT samples per endpoint
// on every insert.
type Metric struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	GameID     string    `gorm:"not null;index:idx_metrics_endpoint" json:"game_id"`
	Address    string    `gorm:"not null;index:idx_metrics_endpoint" json:"address"`
	QueryPort  int       `gorm:"not null;index:idx_metrics_endpoint" json:"query_port"`
	QueryExtra JSONMap   `gorm:"type:text;not null" json:"query_extra"`
	Status     bool      `gorm:"not null" json:"status"`
	NumPlayers int       `gorm:"not null" json:"numplayers"`
	NumBots    int       `gorm:"not null" json:"numbots"`
	MaxPlayers int       `gorm:"not null" json:"maxplayers"`
	CapturedAt time.Time `gorm:"not null;index" json:"captured_at"`
}

// TableName implements the gorm naming override.
func (Metric) TableName() string { return "metrics" }
