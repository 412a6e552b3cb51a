package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/stats"
)

// User statistics series types.
const (
	StatJoin       = "join"
	StatWithdrawal = "withdrawal"
	StatTotal      = "total"
)

// StatisticsService turns sparse aggregates from the stores into dense,
// gap-filled series over calendar-aligned buckets.
type StatisticsService struct {
	credentials core.CredentialStore
	telemetry   core.TelemetryStore
	userStats   core.UserStatsStore
}

func NewStatisticsService(credentials core.CredentialStore, telemetry core.TelemetryStore, userStats core.UserStatsStore) *StatisticsService {
	return &StatisticsService{
		credentials: credentials,
		telemetry:   telemetry,
		userStats:   userStats,
	}
}

// GetStatistics aggregates device telemetry over the requested range and
// fills every empty bucket with a null-valued unit map.
func (s *StatisticsService) GetStatistics(ctx context.Context, q core.StatisticsQuery) ([]stats.UnitsPoint, error) {
	spec, err := stats.ParseInterval(q.Interval)
	if err != nil {
		return nil, err
	}

	ok, err := s.credentials.HasService(ctx, q.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("checking service: %w", err)
	}
	if !ok {
		return nil, ErrServiceNotFound
	}
	ok, err = s.telemetry.HasDevice(ctx, q.ServiceID, q.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("checking device: %w", err)
	}
	if !ok {
		return nil, ErrDeviceNotFound
	}

	rows, err := s.telemetry.Aggregate(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("aggregating telemetry: %w", err)
	}
	log.Ctx(ctx).Debug().
		Str("device_id", q.DeviceID).
		Str("interval", q.Interval).
		Int("sparse_buckets", len(rows)).
		Msg("telemetry aggregated")

	sparse := make([]stats.UnitsPoint, 0, len(rows))
	for _, row := range rows {
		units := make(map[string]*float64, len(row.Values))
		for unit, val := range row.Values {
			v := val
			if q.DataType != "raw" {
				v = math.Round(v*100) / 100
			}
			units[unit] = &v
		}
		sparse = append(sparse, stats.UnitsPoint{Date: row.Date, Units: units})
	}

	return stats.FillUnits(sparse, q.StartDate, q.EndDate, spec, q.UnitNumbers)
}

// GetUserStatistics returns a dense per-bucket user-count series. The
// total series is cumulative: it is seeded with the running total as of
// the range start and carried forward across empty buckets.
func (s *StatisticsService) GetUserStatistics(ctx context.Context, serviceID, statType, startDate, endDate, interval string) ([]stats.CountPoint, error) {
	spec, err := stats.ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	ok, err := s.credentials.HasService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("checking service: %w", err)
	}
	if !ok {
		return nil, ErrServiceNotFound
	}

	rows, err := s.userStats.CountsByBucket(ctx, serviceID, statType, startDate, endDate, interval)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	sparse := make([]stats.CountPoint, 0, len(rows))
	for _, row := range rows {
		sparse = append(sparse, stats.CountPoint{Date: row.Date, Cnt: row.Cnt})
	}
	series, err := stats.FillCounts(sparse, startDate, endDate, spec)
	if err != nil {
		return nil, err
	}

	if statType == StatTotal {
		seed, err := s.userStats.FirstTotalCount(ctx, serviceID, totalSeedDate(startDate, spec), interval)
		if err != nil {
			return nil, fmt.Errorf("seeding cumulative series: %w", err)
		}
		stats.CarryForward(series, seed)
	}
	return series, nil
}

// totalSeedDate decides which date the cumulative seed is measured at.
// Weekly buckets snap to week boundaries, so the seed moves into the
// following week and back to its Sunday; every other unit seeds at the
// range start as-is.
func totalSeedDate(startDate string, spec stats.IntervalSpec) string {
	if spec.Unit != stats.UnitWeek {
		return startDate
	}
	t, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return startDate
	}
	t = t.AddDate(0, 0, 7)
	t = t.AddDate(0, 0, -int(t.Weekday()))
	return t.Format("2006-01-02")
}
