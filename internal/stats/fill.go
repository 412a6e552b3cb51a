package stats

// UnitsPoint is one bucket of a telemetry series: per-unit-number values,
// nil where no data exists.
type UnitsPoint struct {
	Date  string              `json:"date"`
	Units map[string]*float64 `json:"units"`
}

// CountPoint is one bucket of a user-count series.
type CountPoint struct {
	Date string `json:"date"`
	Cnt  int64  `json:"cnt"`
}

// FillUnits joins sparse telemetry points against the canonical bucket set
// for the range, emitting a null-valued unit map for every missing bucket.
// Output order is chronological regardless of input order.
func FillUnits(raw []UnitsPoint, startDate, endDate string, spec IntervalSpec, unitNumbers []string) ([]UnitsPoint, error) {
	labels, err := BucketLabels(startDate, endDate, spec)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]UnitsPoint, len(raw))
	for _, p := range raw {
		if _, ok := byDate[p.Date]; !ok {
			byDate[p.Date] = p
		}
	}

	filled := make([]UnitsPoint, 0, len(labels))
	for _, label := range labels {
		// every requested unit appears in every bucket, nil where the
		// store produced no value for it
		units := make(map[string]*float64, len(unitNumbers))
		have := byDate[label].Units
		for _, n := range unitNumbers {
			units[n] = have[n]
		}
		filled = append(filled, UnitsPoint{Date: label, Units: units})
	}
	return filled, nil
}

// FillCounts joins sparse count points against the canonical bucket set,
// emitting cnt=0 for every missing bucket.
func FillCounts(raw []CountPoint, startDate, endDate string, spec IntervalSpec) ([]CountPoint, error) {
	labels, err := BucketLabels(startDate, endDate, spec)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]CountPoint, len(raw))
	for _, p := range raw {
		if _, ok := byDate[p.Date]; !ok {
			byDate[p.Date] = p
		}
	}

	filled := make([]CountPoint, 0, len(labels))
	for _, label := range labels {
		if p, ok := byDate[label]; ok {
			filled = append(filled, CountPoint{Date: label, Cnt: p.Cnt})
		} else {
			filled = append(filled, CountPoint{Date: label, Cnt: 0})
		}
	}
	return filled, nil
}

// CarryForward propagates running totals through a cumulative series in
// place: every zero bucket takes the previous bucket's value, seeded by
// the true total as of just before the range start. A genuine zero count
// is indistinguishable from a gap under this rule; that ambiguity is
// inherited and kept for compatibility.
func CarryForward(series []CountPoint, seed int64) {
	carry := seed
	for i := range series {
		if series[i].Cnt == 0 {
			series[i].Cnt = carry
		}
		carry = series[i].Cnt
	}
}
