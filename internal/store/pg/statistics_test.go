package pg

import (
	"strings"
	"testing"

	"github.com/goodaegwang/cirrus/internal/stats"
)

func TestLabelExpr(t *testing.T) {
	cases := []struct {
		name string
		spec stats.IntervalSpec
		want string
	}{
		{
			name: "hour labels carry the minute suffix",
			spec: stats.IntervalSpec{Multiplier: 1, Unit: stats.UnitHour},
			want: `to_char(ts, 'YYYY-MM-DD HH24":00"')`,
		},
		{
			name: "single minute keeps the raw minute",
			spec: stats.IntervalSpec{Multiplier: 1, Unit: stats.UnitMinute},
			want: "to_char(ts, 'YYYY-MM-DD HH24:MI')",
		},
		{
			name: "multi-minute snaps to the interval boundary",
			spec: stats.IntervalSpec{Multiplier: 15, Unit: stats.UnitMinute},
			want: "to_char(ts - make_interval(mins => extract(minute from ts)::int % 15), 'YYYY-MM-DD HH24:MI')",
		},
		{
			name: "day",
			spec: stats.IntervalSpec{Multiplier: 1, Unit: stats.UnitDay},
			want: "to_char(ts, 'YYYY-MM-DD')",
		},
		{
			name: "month",
			spec: stats.IntervalSpec{Multiplier: 1, Unit: stats.UnitMonth},
			want: "to_char(ts, 'YYYY-MM')",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := labelExpr("ts", tc.spec)
			if err != nil {
				t.Fatalf("labelExpr: %v", err)
			}
			if got != tc.want {
				t.Errorf("labelExpr = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLabelExprWeekOrdinal(t *testing.T) {
	got, err := labelExpr("ts", stats.IntervalSpec{Multiplier: 1, Unit: stats.UnitWeek})
	if err != nil {
		t.Fatalf("labelExpr: %v", err)
	}
	for _, frag := range []string{"to_char(ts, 'YYYY-MM')", "extract(dow from date_trunc('month', ts))", "'W'"} {
		if !strings.Contains(got, frag) {
			t.Errorf("week expression missing %q:\n%s", frag, got)
		}
	}
}

func TestLabelExprUnknownUnit(t *testing.T) {
	if _, err := labelExpr("ts", stats.IntervalSpec{Multiplier: 1, Unit: stats.Unit("fortnight")}); err == nil {
		t.Error("expected error for unknown unit")
	}
}
