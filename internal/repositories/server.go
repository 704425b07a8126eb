package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/gswatch-io/gswatch/internal/db"
)

// gormServerRepository is the GORM implementation of ServerRepository.
type gormServerRepository struct {
	db *gorm.DB
}

// NewServerRepository returns a ServerRepository backed by the provided *gorm.DB.
func NewServerRepository(db *gorm.DB) ServerRepository {
	return &gormServerRepository{db: db}
}

// AllServers returns server rows matching the filter. Rows are ordered by
// position except for game filters, which order by id: game listings feed
// the public API where insertion order is the useful one.
func (r *gormServerRepository) AllServers(ctx context.Context, filter ServerFilter) ([]db.Server, error) {
	query := r.db.WithContext(ctx).Order("position")

	switch {
	case filter.ChannelID != 0:
		query = query.Where("channel_id = ?", filter.ChannelID)
	case filter.GuildID != 0:
		query = query.Where("guild_id = ?", filter.GuildID)
	case filter.MessageID != 0:
		query = query.Where("message_id = ?", filter.MessageID)
	case filter.GameID != "":
		query = r.db.WithContext(ctx).Where("game_id = ?", filter.GameID).Order("id")
	}

	var servers []db.Server
	if err := query.Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("servers: list: %w", err)
	}

	if filter.FilterSecret {
		for i := range servers {
			servers[i].StripSecrets()
		}
	}

	return servers, nil
}

// DistinctServers returns one row per distinct endpoint tuple. The status and
// result columns take part in the DISTINCT: duplicate monitors always share
// them because UpdateServers writes both by the same tuple.
func (r *gormServerRepository) DistinctServers(ctx context.Context) ([]ProbeTarget, error) {
	var targets []ProbeTarget
	err := r.db.WithContext(ctx).
		Raw("SELECT DISTINCT game_id, address, query_port, query_extra, status, result FROM servers").
		Scan(&targets).Error
	if err != nil {
		return nil, fmt.Errorf("servers: distinct: %w", err)
	}
	return targets, nil
}

// CountPerGame returns the number of monitored rows grouped by game id.
func (r *gormServerRepository) CountPerGame(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		GameID string
		Count  int
	}
	err := r.db.WithContext(ctx).
		Raw("SELECT game_id, COUNT(*) AS count FROM servers GROUP BY game_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("servers: count per game: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.GameID] = row.Count
	}
	return counts, nil
}

// CountPerChannel returns the number of monitored rows grouped by channel id.
func (r *gormServerRepository) CountPerChannel(ctx context.Context) (map[int64]int, error) {
	var rows []struct {
		ChannelID int64
		Count     int
	}
	err := r.db.WithContext(ctx).
		Raw("SELECT channel_id, COUNT(*) AS count FROM servers GROUP BY channel_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("servers: count per channel: %w", err)
	}

	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.ChannelID] = row.Count
	}
	return counts, nil
}

// Statistics runs four independent distinct-count subqueries in one round trip.
func (r *gormServerRepository) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			(SELECT COUNT(DISTINCT message_id) FROM servers) AS messages,
			(SELECT COUNT(DISTINCT channel_id) FROM servers) AS channels,
			(SELECT COUNT(DISTINCT guild_id) FROM servers) AS guilds,
			(SELECT COUNT(*) FROM (SELECT DISTINCT game_id, address, query_port, query_extra FROM servers) x) AS unique_servers`).
		Scan(&stats).Error
	if err != nil {
		return Statistics{}, fmt.Errorf("servers: statistics: %w", err)
	}
	return stats, nil
}

// FindServer retrieves the row monitored in the channel for the given address
// and query port. Returns ErrNotFound if no record exists.
func (r *gormServerRepository) FindServer(ctx context.Context, channelID int64, address string, queryPort int) (*db.Server, error) {
	var server db.Server
	err := r.db.WithContext(ctx).
		First(&server, "channel_id = ? AND address = ? AND query_port = ?", channelID, address, queryPort).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("servers: find: %w", err)
	}
	return &server, nil
}

// AddServer inserts s at the tail of its channel. The position is assigned by
// a subquery inside the INSERT so that concurrent adds to the same channel
// cannot race a separate read-then-write.
func (r *gormServerRepository) AddServer(ctx context.Context, s *db.Server) (*db.Server, error) {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO servers (position, guild_id, channel_id, game_id, address, query_port, query_extra, status, result, style_id, style_data)
		VALUES ((SELECT COALESCE(MAX(position + 1), 0) FROM servers WHERE channel_id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ChannelID, s.GuildID, s.ChannelID, s.GameID, s.Address, s.QueryPort,
		s.QueryExtra, s.Status, s.Result, s.StyleID, s.StyleData).Error
	if err != nil {
		return nil, fmt.Errorf("servers: add: %w", err)
	}

	return r.FindServer(ctx, s.ChannelID, s.Address, s.QueryPort)
}

// UpdateServers batch-updates (status, result) keyed by the distinct endpoint
// tuple. The query_extra column stores canonical JSON, so plain string
// equality matches it.
func (r *gormServerRepository) UpdateServers(ctx context.Context, servers []db.Server) error {
	if len(servers) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range servers {
			s := &servers[i]
			err := tx.Model(&db.Server{}).
				Where("game_id = ? AND address = ? AND query_port = ? AND query_extra = ?",
					s.GameID, s.Address, s.QueryPort, s.QueryExtra.String()).
				Updates(map[string]interface{}{
					"status": s.Status,
					"result": s.Result,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("servers: update batch: %w", err)
	}
	return nil
}

// UpdateServersMessageID batch-updates message_id keyed by row id. A nil
// MessageID clears the column, detaching the row from its deleted message.
func (r *gormServerRepository) UpdateServersMessageID(ctx context.Context, servers []db.Server) error {
	if len(servers) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range servers {
			s := &servers[i]
			if err := tx.Model(&db.Server{}).Where("id = ?", s.ID).
				Update("message_id", s.MessageID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("servers: update message ids: %w", err)
	}
	return nil
}

// UpdateServersStyleData batch-updates style_data keyed by row id.
func (r *gormServerRepository) UpdateServersStyleData(ctx context.Context, servers []db.Server) error {
	if len(servers) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range servers {
			s := &servers[i]
			if err := tx.Model(&db.Server{}).Where("id = ?", s.ID).
				Update("style_data", s.StyleData).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("servers: update style data: %w", err)
	}
	return nil
}

// UpdateServerStyleID updates the style_id of a single row.
func (r *gormServerRepository) UpdateServerStyleID(ctx context.Context, s *db.Server) error {
	err := r.db.WithContext(ctx).Model(&db.Server{}).Where("id = ?", s.ID).
		Update("style_id", s.StyleID).Error
	if err != nil {
		return fmt.Errorf("servers: update style id: %w", err)
	}
	return nil
}

// MoveServer swaps s with its neighbor in the channel ordering. Swapping
// (position, message_id) rather than the row contents keeps the messages in
// place: the embeds trade servers, not the other way round.
func (r *gormServerRepository) MoveServer(ctx context.Context, s *db.Server, up bool) ([]db.Server, error) {
	servers, err := r.AllServers(ctx, ServerFilter{ChannelID: s.ChannelID})
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range servers {
		if servers[i].ID == s.ID {
			idx = i
			break
		}
	}

	// No-op at the boundaries.
	if idx < 0 || (up && idx == 0) || (!up && idx == len(servers)-1) {
		return []db.Server{}, nil
	}

	first := servers[idx]
	var second db.Server
	if up {
		second = servers[idx-1]
	} else {
		second = servers[idx+1]
	}

	// A row without a message has nothing to trade.
	if first.MessageID == nil || second.MessageID == nil {
		return []db.Server{}, nil
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Server{}).Where("id = ?", first.ID).
			Updates(map[string]interface{}{
				"position":   second.Position,
				"message_id": second.MessageID,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&db.Server{}).Where("id = ?", second.ID).
			Updates(map[string]interface{}{
				"position":   first.Position,
				"message_id": first.MessageID,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("servers: move: %w", err)
	}

	first.Position, second.Position = second.Position, first.Position
	first.MessageID, second.MessageID = second.MessageID, first.MessageID

	return []db.Server{first, second}, nil
}

// MoveServersToChannel reassigns each row to newChannelID, appending at the
// destination channel's tail. The position subquery runs per row so that
// consecutive moves land in order.
func (r *gormServerRepository) MoveServersToChannel(ctx context.Context, servers []db.Server, newChannelID int64) error {
	if len(servers) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range servers {
			err := tx.Exec(`
				UPDATE servers
				SET channel_id = ?, position = (SELECT COALESCE(MAX(position + 1), 0) FROM servers WHERE channel_id = ?)
				WHERE id = ?`,
				newChannelID, newChannelID, servers[i].ID).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("servers: move to channel: %w", err)
	}
	return nil
}

// DeleteServers removes rows by guild, by channel, or by explicit set.
// An empty filter is a no-op, never a full-table delete.
func (r *gormServerRepository) DeleteServers(ctx context.Context, filter DeleteFilter) error {
	query := r.db.WithContext(ctx)

	switch {
	case filter.GuildID != 0:
		query = query.Where("guild_id = ?", filter.GuildID)
	case filter.ChannelID != 0:
		query = query.Where("channel_id = ?", filter.ChannelID)
	case len(filter.Servers) > 0:
		ids := make([]uint, len(filter.Servers))
		for i := range filter.Servers {
			ids[i] = filter.Servers[i].ID
		}
		query = query.Where("id IN ?", ids)
	default:
		return nil
	}

	if err := query.Delete(&db.Server{}).Error; err != nil {
		return fmt.Errorf("servers: delete: %w", err)
	}
	return nil
}
