// Package store provides the in-memory credential and telemetry store,
// used for development and tests. The PostgreSQL implementation lives in
// store/pg.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/stats"
)

// Sample is one raw telemetry reading held by the in-memory store.
type Sample struct {
	DeviceID   string
	UnitNumber string
	Time       time.Time
	Value      float64
}

// UserEvent is one join or withdrawal event for the user statistics series.
type UserEvent struct {
	Type string // "join" or "withdrawal"
	Time time.Time
}

// Memory implements every store port against process memory. Seed data is
// loaded through the Add methods before the server starts serving.
type Memory struct {
	mu         sync.RWMutex
	clients    map[string]core.Client
	users      map[string]core.User // key: id or id/serviceId
	appKeys    map[string]core.AppKeyCredential
	services   map[string]struct{}
	devices    map[string]struct{} // key: serviceId/deviceId
	samples    map[string][]Sample // key: serviceId
	userEvents map[string][]UserEvent
	tokens     []core.RefreshTokenRecord
	pushKeys   []core.PushKeyRecord
	pw         map[string]string
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		clients:    make(map[string]core.Client),
		users:      make(map[string]core.User),
		appKeys:    make(map[string]core.AppKeyCredential),
		services:   make(map[string]struct{}),
		devices:    make(map[string]struct{}),
		samples:    make(map[string][]Sample),
		userEvents: make(map[string][]UserEvent),
		pw:         make(map[string]string),
		now:        time.Now,
	}
}

// SetClock replaces the store's clock. Tests use this to make expiry
// sweeps deterministic.
func (m *Memory) SetClock(now func() time.Time) {
	m.now = now
}

func userKey(userID, serviceID string) string {
	if serviceID == "" {
		return userID
	}
	return userID + "/" + serviceID
}

func (m *Memory) AddClient(c core.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
}

func (m *Memory) AddUser(u core.User, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userKey(u.ID, u.ServiceID)] = u
	if u.ServiceID != "" {
		m.services[u.ServiceID] = struct{}{}
	}
	m.pw[userKey(u.ID, u.ServiceID)] = password
}

func (m *Memory) AddAppKey(appKey string, cred core.AppKeyCredential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appKeys[appKey] = cred
}

func (m *Memory) AddService(serviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[serviceID] = struct{}{}
}

func (m *Memory) AddDevice(serviceID, deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[serviceID+"/"+deviceID] = struct{}{}
}

func (m *Memory) AddSample(serviceID string, s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[serviceID] = append(m.samples[serviceID], s)
}

func (m *Memory) AddUserEvent(serviceID string, e UserEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userEvents[serviceID] = append(m.userEvents[serviceID], e)
}

var _ core.CredentialStore = (*Memory)(nil)
var _ core.TelemetryStore = (*Memory)(nil)
var _ core.UserStatsStore = (*Memory)(nil)

func (m *Memory) GetClient(_ context.Context, clientID, clientSecret string) (*core.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[clientID]
	if !ok {
		return nil, core.ErrClientNotFound
	}
	if c.Secret != clientSecret {
		return nil, core.ErrClientMismatch
	}
	out := c
	return &out, nil
}

func (m *Memory) GetUser(_ context.Context, userID, password string) (*core.User, error) {
	return m.lookupUser(userID, "", &password)
}

func (m *Memory) GetServiceUser(_ context.Context, userID, serviceID, password string) (*core.User, error) {
	return m.lookupUser(userID, serviceID, &password)
}

func (m *Memory) GetUserByID(_ context.Context, userID string) (*core.User, error) {
	return m.lookupUser(userID, "", nil)
}

func (m *Memory) GetServiceUserByID(_ context.Context, userID, serviceID string) (*core.User, error) {
	return m.lookupUser(userID, serviceID, nil)
}

func (m *Memory) lookupUser(userID, serviceID string, password *string) (*core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := userKey(userID, serviceID)
	u, ok := m.users[key]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	if password != nil && m.pw[key] != *password {
		return nil, core.ErrUserNotFound
	}
	out := u
	return &out, nil
}

func (m *Memory) GetAppKeyAuth(_ context.Context, appKey string) (*core.AppKeyCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.appKeys[appKey]
	if !ok {
		return nil, core.ErrAppKeyNotFound
	}
	out := cred
	return &out, nil
}

func (m *Memory) SaveUserToken(_ context.Context, rec core.RefreshTokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, rec)
	return nil
}

func (m *Memory) SaveServiceUserToken(ctx context.Context, rec core.RefreshTokenRecord) error {
	return m.SaveUserToken(ctx, rec)
}

func (m *Memory) SavePushKey(_ context.Context, rec core.PushKeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushKeys = append(m.pushKeys, rec)
	return nil
}

// PushKeys returns a copy of every registered push key.
func (m *Memory) PushKeys() []core.PushKeyRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.PushKeyRecord, len(m.pushKeys))
	copy(out, m.pushKeys)
	return out
}

func (m *Memory) HasService(_ context.Context, serviceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.services[serviceID]
	return ok, nil
}

func (m *Memory) ListActiveTokens(_ context.Context) ([]core.RefreshTokenRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := make([]core.RefreshTokenRecord, 0)
	now := m.now()
	for _, t := range m.tokens {
		if t.ExpiresAt.After(now) {
			active = append(active, t)
		}
	}
	return active, nil
}

func (m *Memory) DeleteExpiredTokens(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var active []core.RefreshTokenRecord
	var deleted int64
	for _, t := range m.tokens {
		if t.ExpiresAt.After(now) {
			active = append(active, t)
		} else {
			deleted++
		}
	}
	m.tokens = active
	return deleted, nil
}

func (m *Memory) HasDevice(_ context.Context, serviceID, deviceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.devices[serviceID+"/"+deviceID]
	return ok, nil
}

// Aggregate buckets raw samples by the interval label and reduces each
// bucket per unit number with the requested function.
func (m *Memory) Aggregate(_ context.Context, q core.StatisticsQuery) ([]core.AggregateRow, error) {
	spec, err := stats.ParseInterval(q.Interval)
	if err != nil {
		return nil, err
	}
	start, end, err := rangeBounds(q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	requested := make(map[string]struct{}, len(q.UnitNumbers))
	for _, u := range q.UnitNumbers {
		requested[u] = struct{}{}
	}

	type bucket struct {
		sum, min, max, last float64
		count               int
	}
	buckets := make(map[string]map[string]*bucket)
	var order []string

	for _, s := range m.samples[q.ServiceID] {
		if s.DeviceID != q.DeviceID {
			continue
		}
		if _, ok := requested[s.UnitNumber]; len(requested) > 0 && !ok {
			continue
		}
		local := s.Time.Add(time.Duration(q.TimeOffset) * time.Hour)
		if local.Before(start) || local.After(end) {
			continue
		}
		label := stats.FormatLabel(spec.Snap(local), spec.Unit)

		units, ok := buckets[label]
		if !ok {
			units = make(map[string]*bucket)
			buckets[label] = units
			order = append(order, label)
		}
		b, ok := units[s.UnitNumber]
		if !ok {
			b = &bucket{min: s.Value, max: s.Value}
			units[s.UnitNumber] = b
		}
		b.sum += s.Value
		b.count++
		b.last = s.Value
		if s.Value < b.min {
			b.min = s.Value
		}
		if s.Value > b.max {
			b.max = s.Value
		}
	}

	rows := make([]core.AggregateRow, 0, len(order))
	for _, label := range order {
		values := make(map[string]float64)
		for unit, b := range buckets[label] {
			switch q.DataType {
			case "min":
				values[unit] = b.min
			case "max":
				values[unit] = b.max
			case "sum":
				values[unit] = b.sum
			case "count":
				values[unit] = float64(b.count)
			case "raw":
				values[unit] = b.last
			default: // avg
				values[unit] = b.sum / float64(b.count)
			}
		}
		rows = append(rows, core.AggregateRow{Date: label, Values: values})
	}
	return rows, nil
}

func (m *Memory) CountsByBucket(_ context.Context, serviceID, statType, startDate, endDate, interval string) ([]core.CountRow, error) {
	spec, err := stats.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	start, end, err := rangeBounds(startDate, endDate)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]UserEvent, len(m.userEvents[serviceID]))
	copy(events, m.userEvents[serviceID])
	sort.Slice(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })

	counts := make(map[string]int64)
	var order []string
	var running int64
	for _, e := range events {
		if statType == "total" {
			// the total series carries the absolute running count, so
			// events before the range still move the value
			if e.Type == "withdrawal" {
				running--
			} else {
				running++
			}
		}
		if e.Time.Before(start) || e.Time.After(end) {
			continue
		}
		if statType != "total" && statType != e.Type {
			continue
		}
		label := stats.FormatLabel(spec.Snap(e.Time), spec.Unit)
		if _, ok := counts[label]; !ok {
			order = append(order, label)
		}
		if statType == "total" {
			counts[label] = running
		} else {
			counts[label]++
		}
	}

	rows := make([]core.CountRow, 0, len(order))
	for _, label := range order {
		rows = append(rows, core.CountRow{Date: label, Cnt: counts[label]})
	}
	return rows, nil
}

func (m *Memory) FirstTotalCount(_ context.Context, serviceID, startDate, _ string) (int64, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, e := range m.userEvents[serviceID] {
		if !e.Time.Before(start) {
			continue
		}
		switch e.Type {
		case "join":
			total++
		case "withdrawal":
			total--
		}
	}
	return total, nil
}

func rangeBounds(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end = end.Add(23*time.Hour + 59*time.Minute)
	return start, end, nil
}
