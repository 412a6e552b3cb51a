package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/stats"
)

func fptr(v float64) *float64 { return &v }

type fakeTelemetry struct {
	devices map[string]bool // key: "serviceId/deviceId"
	rows    []core.AggregateRow
	gotQ    core.StatisticsQuery
}

func (f *fakeTelemetry) HasDevice(ctx context.Context, serviceID, deviceID string) (bool, error) {
	return f.devices[serviceID+"/"+deviceID], nil
}

func (f *fakeTelemetry) Aggregate(ctx context.Context, q core.StatisticsQuery) ([]core.AggregateRow, error) {
	f.gotQ = q
	return f.rows, nil
}

type fakeUserStats struct {
	rows      []core.CountRow
	total     int64
	seenStart string
}

func (f *fakeUserStats) CountsByBucket(ctx context.Context, serviceID, statType, startDate, endDate, interval string) ([]core.CountRow, error) {
	return f.rows, nil
}

func (f *fakeUserStats) FirstTotalCount(ctx context.Context, serviceID, startDate, interval string) (int64, error) {
	f.seenStart = startDate
	return f.total, nil
}

func TestGetStatistics(t *testing.T) {
	telemetry := &fakeTelemetry{
		devices: map[string]bool{"smart/dev-1": true},
		rows: []core.AggregateRow{
			{Date: "2024-05-01", Values: map[string]float64{"1": 21.4567, "2": 3}},
			{Date: "2024-05-03", Values: map[string]float64{"1": 9.114}},
		},
	}
	svc := NewStatisticsService(newSpyStore(), telemetry, &fakeUserStats{})

	got, err := svc.GetStatistics(context.Background(), core.StatisticsQuery{
		ServiceID:   "smart",
		DeviceID:    "dev-1",
		UnitNumbers: []string{"1", "2"},
		DataType:    "avg",
		StartDate:   "2024-05-01",
		EndDate:     "2024-05-03",
		Interval:    "1d",
	})
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}

	want := []stats.UnitsPoint{
		{Date: "2024-05-01", Units: map[string]*float64{"1": fptr(21.46), "2": fptr(3)}},
		{Date: "2024-05-02", Units: map[string]*float64{"1": nil, "2": nil}},
		{Date: "2024-05-03", Units: map[string]*float64{"1": fptr(9.11), "2": nil}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestGetStatistics_RawSkipsRounding(t *testing.T) {
	telemetry := &fakeTelemetry{
		devices: map[string]bool{"smart/dev-1": true},
		rows: []core.AggregateRow{
			{Date: "2024-05-01", Values: map[string]float64{"1": 21.4567}},
		},
	}
	svc := NewStatisticsService(newSpyStore(), telemetry, &fakeUserStats{})

	got, err := svc.GetStatistics(context.Background(), core.StatisticsQuery{
		ServiceID: "smart", DeviceID: "dev-1", UnitNumbers: []string{"1"},
		DataType: "raw", StartDate: "2024-05-01", EndDate: "2024-05-01", Interval: "1d",
	})
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if v := got[0].Units["1"]; v == nil || *v != 21.4567 {
		t.Errorf("raw value = %v, want 21.4567 unrounded", v)
	}
}

func TestGetStatistics_NotFound(t *testing.T) {
	telemetry := &fakeTelemetry{devices: map[string]bool{"smart/dev-1": true}}
	svc := NewStatisticsService(newSpyStore(), telemetry, &fakeUserStats{})

	cases := []struct {
		name    string
		q       core.StatisticsQuery
		wantErr error
	}{
		{
			name:    "unknown service",
			q:       core.StatisticsQuery{ServiceID: "nope", DeviceID: "dev-1", StartDate: "2024-05-01", EndDate: "2024-05-01", Interval: "1d"},
			wantErr: ErrServiceNotFound,
		},
		{
			name:    "unknown device",
			q:       core.StatisticsQuery{ServiceID: "smart", DeviceID: "ghost", StartDate: "2024-05-01", EndDate: "2024-05-01", Interval: "1d"},
			wantErr: ErrDeviceNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.GetStatistics(context.Background(), tc.q)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestGetStatistics_BadInterval(t *testing.T) {
	svc := NewStatisticsService(newSpyStore(), &fakeTelemetry{}, &fakeUserStats{})

	_, err := svc.GetStatistics(context.Background(), core.StatisticsQuery{
		ServiceID: "smart", DeviceID: "dev-1",
		StartDate: "2024-05-01", EndDate: "2024-05-01", Interval: "1x",
	})
	if err == nil {
		t.Fatal("expected an interval parse error")
	}
}

func TestGetUserStatistics_Join(t *testing.T) {
	userStats := &fakeUserStats{
		rows: []core.CountRow{
			{Date: "2024-05-02", Cnt: 4},
		},
	}
	svc := NewStatisticsService(newSpyStore(), &fakeTelemetry{}, userStats)

	got, err := svc.GetUserStatistics(context.Background(), "smart", StatJoin, "2024-05-01", "2024-05-03", "1d")
	if err != nil {
		t.Fatalf("GetUserStatistics: %v", err)
	}

	want := []stats.CountPoint{
		{Date: "2024-05-01", Cnt: 0},
		{Date: "2024-05-02", Cnt: 4},
		{Date: "2024-05-03", Cnt: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestGetUserStatistics_TotalCarriesForward(t *testing.T) {
	userStats := &fakeUserStats{
		rows: []core.CountRow{
			{Date: "2024-05-02", Cnt: 12},
		},
		total: 10,
	}
	svc := NewStatisticsService(newSpyStore(), &fakeTelemetry{}, userStats)

	got, err := svc.GetUserStatistics(context.Background(), "smart", StatTotal, "2024-05-01", "2024-05-03", "1d")
	if err != nil {
		t.Fatalf("GetUserStatistics: %v", err)
	}

	want := []stats.CountPoint{
		{Date: "2024-05-01", Cnt: 10},
		{Date: "2024-05-02", Cnt: 12},
		{Date: "2024-05-03", Cnt: 12},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
	if userStats.seenStart != "2024-05-01" {
		t.Errorf("seed date = %q, want range start", userStats.seenStart)
	}
}

func TestGetUserStatistics_WeeklySeedDate(t *testing.T) {
	userStats := &fakeUserStats{}
	svc := NewStatisticsService(newSpyStore(), &fakeTelemetry{}, userStats)

	// 2024-05-01 is a Wednesday; a week later is Wed 2024-05-08, whose
	// Sunday is 2024-05-05
	if _, err := svc.GetUserStatistics(context.Background(), "smart", StatTotal, "2024-05-01", "2024-05-31", "1w"); err != nil {
		t.Fatalf("GetUserStatistics: %v", err)
	}
	if userStats.seenStart != "2024-05-05" {
		t.Errorf("seed date = %q, want 2024-05-05", userStats.seenStart)
	}
}

func TestGetUserStatistics_UnknownService(t *testing.T) {
	svc := NewStatisticsService(newSpyStore(), &fakeTelemetry{}, &fakeUserStats{})

	_, err := svc.GetUserStatistics(context.Background(), "nope", StatJoin, "2024-05-01", "2024-05-03", "1d")
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("err = %v, want %v", err, ErrServiceNotFound)
	}
}
