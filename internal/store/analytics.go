package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyticsRepository reads and writes per-day Analytics rollups.
type AnalyticsRepository struct {
	db *gorm.DB
}

// Upsert inserts the rollup or replaces the counters of the existing row for
// the same user and date.
func (r *AnalyticsRepository) Upsert(ctx context.Context, row *Analytics) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_shipments",
			"delivered_shipments",
			"in_transit_shipments",
			"delayed_shipments",
			"total_cost",
			"avg_delivery_time",
		}),
	}).Create(row).Error
	return translate(err, "upsert analytics")
}

// ListByUser returns the newest rollups of a user first. A limit of 0 or less
// returns all of them.
func (r *AnalyticsRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]Analytics, error) {
	var rows []Analytics
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, translate(err, "list analytics")
	}
	return rows, nil
}
