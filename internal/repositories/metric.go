package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gswatch-io/gswatch/internal/db"
)

// gormMetricRepository is the GORM implementation of MetricRepository.
type gormMetricRepository struct {
	db *gorm.DB
}

// NewMetricRepository returns a MetricRepository backed by the provided *gorm.DB.
func NewMetricRepository(db *gorm.DB) MetricRepository {
	return &gormMetricRepository{db: db}
}

// UpdateMetrics appends one sample per server and trims each touched
// endpoint's ring down to limit rows, dropping the oldest ids first.
func (r *gormMetricRepository) UpdateMetrics(ctx context.Context, servers []db.Server, limit int) error {
	if len(servers) == 0 || limit <= 0 {
		return nil
	}

	now := time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range servers {
			s := &servers[i]

			sample := db.Metric{
				GameID:     s.GameID,
				Address:    s.Address,
				QueryPort:  s.QueryPort,
				QueryExtra: s.QueryExtra,
				Status:     s.Status,
				NumPlayers: s.Result.NumPlayers,
				NumBots:    s.Result.NumBots,
				MaxPlayers: s.Result.MaxPlayers,
				CapturedAt: now,
			}
			if err := tx.Create(&sample).Error; err != nil {
				return err
			}

			// Ring trim: keep the newest limit rows for this endpoint.
			// The key is the full distinct tuple, so endpoints sharing
			// host:port but differing in query_extra keep separate rings.
			extra := s.QueryExtra.String()
			err := tx.Exec(`
				DELETE FROM metrics
				WHERE game_id = ? AND address = ? AND query_port = ? AND query_extra = ?
				AND id NOT IN (
					SELECT id FROM metrics
					WHERE game_id = ? AND address = ? AND query_port = ? AND query_extra = ?
					ORDER BY id DESC LIMIT ?
				)`,
				s.GameID, s.Address, s.QueryPort, extra,
				s.GameID, s.Address, s.QueryPort, extra, limit).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("metrics: update: %w", err)
	}
	return nil
}

// Samples returns the stored ring for one endpoint, oldest first.
func (r *gormMetricRepository) Samples(ctx context.Context, gameID, address string, queryPort int, queryExtra db.JSONMap) ([]db.Metric, error) {
	var samples []db.Metric
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND address = ? AND query_port = ? AND query_extra = ?",
			gameID, address, queryPort, queryExtra.String()).
		Order("id").
		Find(&samples).Error
	if err != nil {
		return nil, fmt.Errorf("metrics: samples: %w", err)
	}
	return samples, nil
}
