// Package stats turns sparse, pre-aggregated telemetry into gap-free,
// calendar-aligned series. Bucket enumeration is deterministic and
// independent of what data exists.
package stats

import (
	"fmt"
	"regexp"
	"time"
)

// Unit is a calendar granularity. The letters are case-sensitive:
// "M" is month, "m" is minute.
type Unit string

const (
	UnitMinute Unit = "m"
	UnitHour   Unit = "h"
	UnitDay    Unit = "d"
	UnitWeek   Unit = "w"
	UnitMonth  Unit = "M"
)

const dateOnly = "2006-01-02"

// IntervalSpec is a parsed interval like "15m" or "1M".
type IntervalSpec struct {
	Multiplier int
	Unit       Unit
}

var intervalPattern = regexp.MustCompile(`^([0-9]+)([A-Za-z]+)$`)

// ParseInterval splits the leading digits from the trailing unit letter.
func ParseInterval(s string) (IntervalSpec, error) {
	m := intervalPattern.FindStringSubmatch(s)
	if m == nil {
		return IntervalSpec{}, fmt.Errorf("invalid interval %q", s)
	}

	var mult int
	if _, err := fmt.Sscanf(m[1], "%d", &mult); err != nil {
		return IntervalSpec{}, fmt.Errorf("invalid interval multiplier %q", m[1])
	}
	if mult < 1 {
		return IntervalSpec{}, fmt.Errorf("interval multiplier must be >= 1, got %d", mult)
	}

	switch Unit(m[2]) {
	case UnitMinute, UnitHour, UnitDay, UnitWeek, UnitMonth:
		return IntervalSpec{Multiplier: mult, Unit: Unit(m[2])}, nil
	default:
		return IntervalSpec{}, fmt.Errorf("unknown interval unit %q", m[2])
	}
}

// Snap rounds t down to the interval boundary it falls in. Only minute
// intervals with a multiplier above one need snapping; every other unit
// truncates naturally through FormatLabel.
func (s IntervalSpec) Snap(t time.Time) time.Time {
	if s.Unit != UnitMinute || s.Multiplier <= 1 {
		return t
	}
	return t.Add(-time.Duration(t.Minute()%s.Multiplier) * time.Minute)
}

// FormatLabel renders the bucket label for an instant at the given unit.
// Formats: month "YYYY-MM", week "YYYY-MM-<n>W", day "YYYY-MM-DD",
// hour "YYYY-MM-DD HH:00", minute "YYYY-MM-DD HH:mm".
func FormatLabel(t time.Time, unit Unit) string {
	switch unit {
	case UnitMonth:
		return t.Format("2006-01")
	case UnitWeek:
		return fmt.Sprintf("%s%dW", t.Format("2006-01-"), weekOfMonth(t))
	case UnitDay:
		return t.Format(dateOnly)
	case UnitHour:
		return t.Format("2006-01-02 15:00")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// weekOfMonth computes the Sunday-based in-month week ordinal: the number
// of week boundaries (Sundays) between the first of the month and t, plus
// one. This is not ISO week numbering and is kept as-is for label
// compatibility with stored series.
func weekOfMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return (t.Day()-1+int(first.Weekday()))/7 + 1
}

// BucketLabels enumerates the ordered, de-duplicated label set covering
// [startDate 00:00, endDate 23:59] inclusive. Week and month intervals
// step the cursor in days, collecting each label once in the order first
// encountered.
func BucketLabels(startDate, endDate string, spec IntervalSpec) ([]string, error) {
	start, err := time.Parse(dateOnly, startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	endDay, err := time.Parse(dateOnly, endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	end := endDay.Add(23*time.Hour + 59*time.Minute)

	seen := make(map[string]struct{})
	var labels []string
	collect := func(label string) {
		if _, ok := seen[label]; ok {
			return
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}

	for cursor := start; !cursor.After(end); {
		collect(FormatLabel(cursor, spec.Unit))

		switch spec.Unit {
		case UnitMinute:
			cursor = cursor.Add(time.Duration(spec.Multiplier) * time.Minute)
		case UnitHour:
			cursor = cursor.Add(time.Duration(spec.Multiplier) * time.Hour)
		default:
			// day, week and month all advance in days
			cursor = cursor.AddDate(0, 0, spec.Multiplier)
		}
	}

	return labels, nil
}
