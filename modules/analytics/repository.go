package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides access to aggregate counters.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new analytics repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Increment adds one to counter for the day of at.
func (r *Repository) Increment(ctx context.Context, counter Counter, at time.Time) error {
	row := map[string]any{
		"day":           at.UTC().Format(time.DateOnly),
		string(counter): 1,
		"updated_at":    time.Now(),
	}

	err := r.db.WithContext(ctx).Model(&DailyStats{}).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: string(counter)}, Value: gorm.Expr(string(counter) + " + 1")},
			{Column: clause.Column{Name: "updated_at"}, Value: time.Now()},
		},
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", counter, err)
	}
	return nil
}

// Summary returns all-time totals and the last n days, newest first.
func (r *Repository) Summary(ctx context.Context, days int) (*Summary, error) {
	var totals struct {
		RoomsCreated       int64
		RoomsDestroyed     int64
		RoomsExpired       int64
		ParticipantsJoined int64
		MessagesSent       int64
	}
	err := r.db.WithContext(ctx).Model(&DailyStats{}).Select(
		"COALESCE(SUM(rooms_created), 0) AS rooms_created, " +
			"COALESCE(SUM(rooms_destroyed), 0) AS rooms_destroyed, " +
			"COALESCE(SUM(rooms_expired), 0) AS rooms_expired, " +
			"COALESCE(SUM(participants_joined), 0) AS participants_joined, " +
			"COALESCE(SUM(messages_sent), 0) AS messages_sent",
	).Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum counters: %w", err)
	}

	var rows []DailyStats
	if err := r.db.WithContext(ctx).Order("day DESC").Limit(days).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list days: %w", err)
	}

	summary := &Summary{
		RoomsCreated:       totals.RoomsCreated,
		RoomsDestroyed:     totals.RoomsDestroyed,
		RoomsExpired:       totals.RoomsExpired,
		ParticipantsJoined: totals.ParticipantsJoined,
		MessagesSent:       totals.MessagesSent,
	}
	summary.Days = lo.Map(rows, func(d DailyStats, _ int) DaySummary {
		return DaySummary{
			Day:                d.Day,
			RoomsCreated:       d.RoomsCreated,
			RoomsDestroyed:     d.RoomsDestroyed,
			RoomsExpired:       d.RoomsExpired,
			ParticipantsJoined: d.ParticipantsJoined,
			MessagesSent:       d.MessagesSent,
		}
	})
	return summary, nil
}
