// Package repositories provides the durable-storage contracts for monitored
// servers and their metric samples, together with the GORM implementations.
// The interfaces are storage-agnostic: callers depend only on the contract,
// implementations may target sqlite or postgres.
package repositories

import (
	"context"

	"github.com/gswatch-io/gswatch/internal/db"
)

// -----------------------------------------------------------------------------
// Common
// -----------------------------------------------------------------------------

// ServerFilter selects which server rows AllServers returns. At most one of
// the id fields is applied, checked in declaration order. FilterSecret strips
// sensitive keys from the loaded rows before they are returned; use it for
// anything exposed outside the process.
type ServerFilter struct {
	ChannelID    int64
	GuildID      int64
	MessageID    int64
	GameID       string
	FilterSecret bool
}

// DeleteFilter selects which server rows DeleteServers removes. Exactly one
// field must be set; an empty filter deletes nothing.
type DeleteFilter struct {
	GuildID   int64
	ChannelID int64
	Servers   []db.Server
}

// ProbeTarget is one distinct endpoint row: the fan-out unit of a query
// tick. Status and Result carry the endpoint's last persisted outcome so
// the scheduler can thread fail counters across ticks.
type ProbeTarget struct {
	GameID     string         `json:"game_id"`
	Address    string         `json:"address"`
	QueryPort  int            `json:"query_port"`
	QueryExtra db.JSONMap     `json:"query_extra"`
	Status     bool           `json:"status"`
	Result     db.ProbeResult `json:"result"`
}

// Statistics is the aggregate snapshot exposed on the public API.
type Statistics struct {
	Messages      int64 `json:"messages"`
	Channels      int64 `json:"channels"`
	Guilds        int64 `json:"guilds"`
	UniqueServers int64 `json:"unique_servers"`
}

// -----------------------------------------------------------------------------
// ServerRepository
// -----------------------------------------------------------------------------

type ServerRepository interface {
	// AllServers returns server rows matching the filter, ordered by position
	// (or by id when filtered by game).
	AllServers(ctx context.Context, filter ServerFilter) ([]db.Server, error)

	// DistinctServers returns one ProbeTarget per distinct
	// (game_id, address, query_port, query_extra) tuple.
	DistinctServers(ctx context.Context) ([]ProbeTarget, error)

	CountPerGame(ctx context.Context) (map[string]int, error)
	CountPerChannel(ctx context.Context) (map[int64]int, error)
	Statistics(ctx context.Context) (Statistics, error)

	// FindServer returns the single row monitored in the channel for the given
	// address and query port, or ErrNotFound.
	FindServer(ctx context.Context, channelID int64, address string, queryPort int) (*db.Server, error)

	// AddServer inserts s at the tail of its channel: the position is assigned
	// atomically inside the insert statement. Returns the stored row.
	AddServer(ctx context.Context, s *db.Server) (*db.Server, error)

	// UpdateServers batch-updates (status, result) keyed by the distinct
	// endpoint tuple, so every duplicate monitor of the same endpoint is
	// updated in one pass.
	UpdateServers(ctx context.Context, servers []db.Server) error

	// UpdateServersMessageID batch-updates message_id keyed by row id.
	UpdateServersMessageID(ctx context.Context, servers []db.Server) error

	UpdateServersStyleData(ctx context.Context, servers []db.Server) error
	UpdateServerStyleID(ctx context.Context, s *db.Server) error

	// MoveServer swaps s with its neighbor above (up=true) or below in the
	// same channel: the pair exchange (position, message_id) atomically.
	// Returns the two updated rows, or an empty slice when the move is a
	// no-op (boundary, or either message_id is null).
	MoveServer(ctx context.Context, s *db.Server, up bool) ([]db.Server, error)

	// MoveServersToChannel reassigns each row to newChannelID with a fresh
	// position at the tail of the destination channel.
	MoveServersToChannel(ctx context.Context, servers []db.Server, newChannelID int64) error

	DeleteServers(ctx context.Context, filter DeleteFilter) error
}

// -----------------------------------------------------------------------------
// MetricRepository
// -----------------------------------------------------------------------------

type MetricRepository interface {
	// UpdateMetrics appends one sample per server to the per-endpoint ring
	// buffer and trims each ring to the configured record limit.
	UpdateMetrics(ctx context.Context, servers []db.Server, limit int) error

	// Samples returns the ring for one endpoint, oldest first. The endpoint
	// is the full distinct tuple including query_extra.
	Samples(ctx context.Context, gameID, address string, queryPort int, queryExtra db.JSONMap) ([]db.Metric, error)
}
