package pg

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/stats"
)

var _ core.TelemetryStore = (*Store)(nil)
var _ core.UserStatsStore = (*Store)(nil)

// labelExpr returns the SQL expression that formats a shifted timestamp
// column into a bucket label matching stats.FormatLabel. Minute buckets
// are snapped down to the interval multiple so off-boundary samples land
// in the bucket that covers them.
func labelExpr(col string, spec stats.IntervalSpec) (string, error) {
	switch spec.Unit {
	case stats.UnitMinute:
		if spec.Multiplier > 1 {
			return fmt.Sprintf(
				"to_char(%[1]s - make_interval(mins => extract(minute from %[1]s)::int %% %[2]d), 'YYYY-MM-DD HH24:MI')",
				col, spec.Multiplier), nil
		}
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD HH24:MI')", col), nil
	case stats.UnitHour:
		return fmt.Sprintf(`to_char(%s, 'YYYY-MM-DD HH24":00"')`, col), nil
	case stats.UnitDay:
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD')", col), nil
	case stats.UnitWeek:
		// week ordinal within the month, counted from the weekday the
		// month starts on; must match the label generator exactly
		return fmt.Sprintf(
			"to_char(%[1]s, 'YYYY-MM') || '-' || (((extract(day from %[1]s)::int - 1 + extract(dow from date_trunc('month', %[1]s))::int) / 7) + 1)::text || 'W'",
			col), nil
	case stats.UnitMonth:
		return fmt.Sprintf("to_char(%s, 'YYYY-MM')", col), nil
	default:
		return "", fmt.Errorf("unsupported interval unit %q", spec.Unit)
	}
}

func aggExpr(dataType string) (string, error) {
	switch dataType {
	case "min":
		return "min(value)", nil
	case "max":
		return "max(value)", nil
	case "sum":
		return "sum(value)", nil
	case "count":
		return "count(value)::double precision", nil
	case "raw":
		return "(array_agg(value ORDER BY ts DESC))[1]", nil
	case "avg", "":
		return "avg(value)", nil
	default:
		return "", fmt.Errorf("unsupported data type %q", dataType)
	}
}

func (s *Store) HasDevice(ctx context.Context, serviceID, deviceID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM devices WHERE service_id = $1 AND id = $2)`,
		serviceID, deviceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking device: %w", err)
	}
	return exists, nil
}

// Aggregate groups raw telemetry into labeled buckets per unit number.
// Bucket labels are computed in SQL on the offset-shifted timestamp; the
// service layer joins them against the canonical label set afterwards.
func (s *Store) Aggregate(ctx context.Context, q core.StatisticsQuery) ([]core.AggregateRow, error) {
	spec, err := stats.ParseInterval(q.Interval)
	if err != nil {
		return nil, err
	}
	label, err := labelExpr("shifted.ts", spec)
	if err != nil {
		return nil, err
	}
	agg, err := aggExpr(q.DataType)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s AS bucket, shifted.unit_number, %s AS agg, min(shifted.ts) AS first_ts
		FROM (
			SELECT ts + make_interval(hours => $6) AS ts, unit_number, value
			FROM telemetry
			WHERE service_id = $1 AND device_id = $2 AND unit_number = ANY($3)
		) AS shifted
		WHERE shifted.ts >= $4::date
		  AND shifted.ts < $5::date + interval '1 day'
		GROUP BY bucket, shifted.unit_number
		ORDER BY first_ts`, label, agg)

	rows, err := s.db.QueryContext(ctx, query,
		q.ServiceID, q.DeviceID, pq.Array(q.UnitNumbers),
		q.StartDate, q.EndDate, q.TimeOffset)
	if err != nil {
		return nil, fmt.Errorf("aggregating telemetry: %w", err)
	}
	defer rows.Close()

	byBucket := make(map[string]int)
	var out []core.AggregateRow
	for rows.Next() {
		var (
			bucket, unit string
			value        float64
			firstTS      any
		)
		if err := rows.Scan(&bucket, &unit, &value, &firstTS); err != nil {
			return nil, fmt.Errorf("scanning aggregate row: %w", err)
		}
		idx, ok := byBucket[bucket]
		if !ok {
			idx = len(out)
			byBucket[bucket] = idx
			out = append(out, core.AggregateRow{Date: bucket, Values: make(map[string]float64)})
		}
		out[idx].Values[unit] = value
	}
	return out, rows.Err()
}

func (s *Store) CountsByBucket(ctx context.Context, serviceID, statType, startDate, endDate, interval string) ([]core.CountRow, error) {
	spec, err := stats.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	label, err := labelExpr("ts", spec)
	if err != nil {
		return nil, err
	}

	// join and withdrawal count their own events per bucket; total carries
	// the absolute running count, so its window spans all history and the
	// range filter is applied after the running sum
	var (
		query string
		args  []any
	)
	if statType == "total" {
		query = fmt.Sprintf(`
			SELECT bucket, cnt, ts FROM (
				SELECT %s AS bucket, ts,
				       sum(CASE WHEN type = 'join' THEN 1 ELSE -1 END)
				           OVER (ORDER BY ts) AS cnt,
				       row_number() OVER (PARTITION BY %s ORDER BY ts DESC) AS rn
				FROM user_events
				WHERE service_id = $1
			) windowed
			WHERE rn = 1
			  AND ts >= $2::date
			  AND ts < $3::date + interval '1 day'
			ORDER BY ts`, label, label)
		args = []any{serviceID, startDate, endDate}
	} else {
		query = fmt.Sprintf(`
			SELECT %s AS bucket, count(*) AS cnt, min(ts) AS first_ts
			FROM user_events
			WHERE service_id = $1
			  AND type = $2
			  AND ts >= $3::date
			  AND ts < $4::date + interval '1 day'
			GROUP BY bucket
			ORDER BY first_ts`, label)
		args = []any{serviceID, statType, startDate, endDate}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("counting user events: %w", err)
	}
	defer rows.Close()

	var out []core.CountRow
	for rows.Next() {
		var (
			row     core.CountRow
			firstTS any
		)
		if err := rows.Scan(&row.Date, &row.Cnt, &firstTS); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) FirstTotalCount(ctx context.Context, serviceID, startDate, _ string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(sum(CASE WHEN type = 'join' THEN 1 ELSE -1 END), 0)
		FROM user_events
		WHERE service_id = $1 AND ts < $2::date`, serviceID, startDate).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("counting users before range: %w", err)
	}
	return total, nil
}
