package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goodaegwang/cirrus/internal/core"
)

func seededMemory() *Memory {
	m := NewMemory()
	m.AddClient(core.Client{ID: "web-app", Secret: "s3cret", Grants: []string{"password"}})
	m.AddUser(core.User{ID: "alice", Status: "1"}, "pw")
	m.AddUser(core.User{ID: "bob", Status: "1", ServiceID: "smart"}, "pw")
	m.AddService("smart")
	m.AddDevice("smart", "dev-1")
	return m
}

func TestMemory_GetClient(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	if _, err := m.GetClient(ctx, "web-app", "s3cret"); err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if _, err := m.GetClient(ctx, "ghost", "s3cret"); !errors.Is(err, core.ErrClientNotFound) {
		t.Errorf("err = %v, want ErrClientNotFound", err)
	}
	if _, err := m.GetClient(ctx, "web-app", "wrong"); !errors.Is(err, core.ErrClientMismatch) {
		t.Errorf("err = %v, want ErrClientMismatch", err)
	}
}

func TestMemory_UserLookup(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	u, err := m.GetUser(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.ID != "alice" {
		t.Errorf("id = %q, want alice", u.ID)
	}

	if _, err := m.GetUser(ctx, "alice", "wrong"); !errors.Is(err, core.ErrUserNotFound) {
		t.Errorf("wrong password: err = %v, want ErrUserNotFound", err)
	}
	// a service user is not reachable through the platform lookup
	if _, err := m.GetUser(ctx, "bob", "pw"); !errors.Is(err, core.ErrUserNotFound) {
		t.Errorf("service user via platform lookup: err = %v, want ErrUserNotFound", err)
	}

	su, err := m.GetServiceUser(ctx, "bob", "smart", "pw")
	if err != nil {
		t.Fatalf("GetServiceUser: %v", err)
	}
	if su.ServiceID != "smart" {
		t.Errorf("serviceId = %q, want smart", su.ServiceID)
	}
}

func TestMemory_TokenSweep(t *testing.T) {
	m := seededMemory()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()

	save := func(token string, expiresAt time.Time) {
		t.Helper()
		if err := m.SaveUserToken(ctx, core.RefreshTokenRecord{
			ClientID: "web-app", UserID: "alice",
			RefreshToken: token, IssuedAt: now, ExpiresAt: expiresAt,
		}); err != nil {
			t.Fatalf("SaveUserToken: %v", err)
		}
	}
	save("live", now.Add(time.Hour))
	save("dead", now.Add(-time.Hour))

	active, err := m.ListActiveTokens(ctx)
	if err != nil {
		t.Fatalf("ListActiveTokens: %v", err)
	}
	if len(active) != 1 || active[0].RefreshToken != "live" {
		t.Errorf("active = %+v, want only the live token", active)
	}

	deleted, err := m.DeleteExpiredTokens(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredTokens: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestMemory_Aggregate(t *testing.T) {
	m := seededMemory()
	at := func(h int) time.Time {
		return time.Date(2024, 5, 1, h, 0, 0, 0, time.UTC)
	}
	m.AddSample("smart", Sample{DeviceID: "dev-1", UnitNumber: "1", Time: at(9), Value: 10})
	m.AddSample("smart", Sample{DeviceID: "dev-1", UnitNumber: "1", Time: at(9).Add(20 * time.Minute), Value: 20})
	m.AddSample("smart", Sample{DeviceID: "dev-1", UnitNumber: "1", Time: at(11), Value: 7})
	m.AddSample("smart", Sample{DeviceID: "other", UnitNumber: "1", Time: at(9), Value: 99})

	got, err := m.Aggregate(context.Background(), core.StatisticsQuery{
		ServiceID:   "smart",
		DeviceID:    "dev-1",
		UnitNumbers: []string{"1"},
		DataType:    "avg",
		StartDate:   "2024-05-01",
		EndDate:     "2024-05-01",
		Interval:    "1h",
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	want := []core.AggregateRow{
		{Date: "2024-05-01 09:00", Values: map[string]float64{"1": 15}},
		{Date: "2024-05-01 11:00", Values: map[string]float64{"1": 7}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestMemory_AggregateMinuteBoundaries(t *testing.T) {
	m := seededMemory()
	// off-boundary samples land in the interval bucket covering them
	m.AddSample("smart", Sample{DeviceID: "dev-1", UnitNumber: "1",
		Time: time.Date(2024, 5, 1, 2, 17, 0, 0, time.UTC), Value: 4})
	m.AddSample("smart", Sample{DeviceID: "dev-1", UnitNumber: "1",
		Time: time.Date(2024, 5, 1, 2, 29, 0, 0, time.UTC), Value: 6})

	got, err := m.Aggregate(context.Background(), core.StatisticsQuery{
		ServiceID:   "smart",
		DeviceID:    "dev-1",
		UnitNumbers: []string{"1"},
		DataType:    "sum",
		StartDate:   "2024-05-01",
		EndDate:     "2024-05-01",
		Interval:    "15m",
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	want := []core.AggregateRow{
		{Date: "2024-05-01 02:15", Values: map[string]float64{"1": 10}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestMemory_CountsByBucket(t *testing.T) {
	m := seededMemory()
	day := func(d int) time.Time {
		return time.Date(2024, 5, d, 10, 0, 0, 0, time.UTC)
	}
	m.AddUserEvent("smart", UserEvent{Type: "join", Time: day(1)})
	m.AddUserEvent("smart", UserEvent{Type: "join", Time: day(1)})
	m.AddUserEvent("smart", UserEvent{Type: "withdrawal", Time: day(2)})

	joins, err := m.CountsByBucket(context.Background(), "smart", "join", "2024-05-01", "2024-05-03", "1d")
	if err != nil {
		t.Fatalf("CountsByBucket: %v", err)
	}
	if diff := cmp.Diff([]core.CountRow{{Date: "2024-05-01", Cnt: 2}}, joins); diff != "" {
		t.Errorf("join rows mismatch (-want +got):\n%s", diff)
	}

	totals, err := m.CountsByBucket(context.Background(), "smart", "total", "2024-05-01", "2024-05-03", "1d")
	if err != nil {
		t.Fatalf("CountsByBucket: %v", err)
	}
	// the total series carries absolute running counts
	want := []core.CountRow{
		{Date: "2024-05-01", Cnt: 2},
		{Date: "2024-05-02", Cnt: 1},
	}
	if diff := cmp.Diff(want, totals); diff != "" {
		t.Errorf("total rows mismatch (-want +got):\n%s", diff)
	}
}

func TestMemory_FirstTotalCount(t *testing.T) {
	m := seededMemory()
	m.AddUserEvent("smart", UserEvent{Type: "join", Time: time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)})
	m.AddUserEvent("smart", UserEvent{Type: "join", Time: time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC)})
	m.AddUserEvent("smart", UserEvent{Type: "withdrawal", Time: time.Date(2024, 4, 28, 0, 0, 0, 0, time.UTC)})
	m.AddUserEvent("smart", UserEvent{Type: "join", Time: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)})

	total, err := m.FirstTotalCount(context.Background(), "smart", "2024-05-01", "1d")
	if err != nil {
		t.Fatalf("FirstTotalCount: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}
