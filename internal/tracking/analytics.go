package tracking

import (
	"context"
	"sort"
	"time"

	"procodus.dev/scmxpert/internal/store"
)

const monthLayout = "2006-01"

// Summary is the in-memory grouping shown on the analytics page.
type Summary struct {
	MonthlyShipments   map[string]int
	StatusDistribution map[string]int
	TotalCost          float64
	AvgCost            float64
	TotalShipments     int
}

// Months returns the keys of MonthlyShipments in chronological order.
func (s *Summary) Months() []string {
	months := make([]string, 0, len(s.MonthlyShipments))
	for m := range s.MonthlyShipments {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}

// Statuses returns the keys of StatusDistribution sorted by name.
func (s *Summary) Statuses() []string {
	statuses := make([]string, 0, len(s.StatusDistribution))
	for st := range s.StatusDistribution {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)
	return statuses
}

// Summarize groups shipments by creation month and status and totals their
// cost. A missing cost counts as zero.
func Summarize(shipments []store.Shipment) *Summary {
	summary := &Summary{
		MonthlyShipments:   make(map[string]int),
		StatusDistribution: make(map[string]int),
		TotalShipments:     len(shipments),
	}

	for _, sh := range shipments {
		summary.MonthlyShipments[sh.CreatedAt.UTC().Format(monthLayout)]++
		summary.StatusDistribution[sh.Status]++
		if sh.Cost != nil {
			summary.TotalCost += *sh.Cost
		}
	}

	if len(shipments) > 0 {
		summary.AvgCost = summary.TotalCost / float64(len(shipments))
	}
	return summary
}

// ComputeAnalytics summarizes all of the user's shipments.
func (s *Service) ComputeAnalytics(ctx context.Context, userID uint) (*Summary, error) {
	shipments, err := s.store.Shipments().ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	return Summarize(shipments), nil
}

// AnalyticsHistory returns the user's most recent daily rollups.
func (s *Service) AnalyticsHistory(ctx context.Context, userID uint, limit int) ([]store.Analytics, error) {
	return s.store.Analytics().ListByUser(ctx, userID, limit)
}

// Rollup builds the daily Analytics row for a user from their shipments.
// AvgDeliveryTime is the mean of actual minus created time in hours over
// delivered shipments that have an actual delivery time.
func Rollup(userID uint, day time.Time, shipments []store.Shipment) *store.Analytics {
	row := &store.Analytics{
		UserID:         userID,
		Date:           truncateDay(day),
		TotalShipments: len(shipments),
	}

	var (
		deliveredHours float64
		deliveredTimed int
	)
	for _, sh := range shipments {
		switch sh.Status {
		case store.StatusDelivered:
			row.DeliveredShipments++
			if sh.ActualDelivery != nil {
				deliveredHours += sh.ActualDelivery.Sub(sh.CreatedAt).Hours()
				deliveredTimed++
			}
		case store.StatusInTransit:
			row.InTransitShipments++
		case store.StatusDelayed:
			row.DelayedShipments++
		}
		if sh.Cost != nil {
			row.TotalCost += *sh.Cost
		}
	}

	if deliveredTimed > 0 {
		row.AvgDeliveryTime = deliveredHours / float64(deliveredTimed)
	}
	return row
}

// SnapshotAnalytics writes the user's rollup for day, replacing any earlier
// snapshot of the same day.
func (s *Service) SnapshotAnalytics(ctx context.Context, userID uint, day time.Time) (*store.Analytics, error) {
	shipments, err := s.store.Shipments().ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	row := Rollup(userID, day, shipments)
	if err := s.store.Analytics().Upsert(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// SnapshotAll writes the rollup for day for every user and returns how many
// rows were written.
func (s *Service) SnapshotAll(ctx context.Context, day time.Time) (int, error) {
	ids, err := s.store.Users().ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if _, err := s.SnapshotAnalytics(ctx, id, day); err != nil {
			return written, err
		}
		written++
	}

	s.logger.Info("analytics snapshot completed", "date", truncateDay(day).Format(time.DateOnly), "users", written)
	return written, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
