package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Client used as the test backend. It honors
// the same filter semantics as the Postgres client and fans change
// events out to open subscriptions.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row
	subs   []*memorySubscription
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Row)}
}

// Seed loads rows without assigning ids or emitting events.
func (m *Memory) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.tables[table] = append(m.tables[table], cloneRow(row))
	}
}

func (m *Memory) Query(ctx context.Context, table string, filter Filter, order *Order) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Row
	for _, row := range m.tables[table] {
		if matchFilter(row, filter) {
			out = append(out, cloneRow(row))
		}
	}
	if order != nil {
		col, asc := order.Column, order.Ascending
		sort.SliceStable(out, func(i, j int) bool {
			less := lessValue(out[i][col], out[j][col])
			if asc {
				return less
			}
			return !less && !equalValue(out[i][col], out[j][col])
		})
	}
	return out, nil
}

func (m *Memory) Insert(ctx context.Context, table string, row Row) (Row, error) {
	stored := cloneRow(row)
	if stored.String("id") == "" {
		stored["id"] = uuid.NewString()
	}
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = time.Now()
	}

	m.mu.Lock()
	m.tables[table] = append(m.tables[table], stored)
	subs := append([]*memorySubscription(nil), m.subs...)
	m.mu.Unlock()

	ev := Event{Table: table, Kind: EventInsert, Row: cloneRow(stored)}
	for _, sub := range subs {
		sub.deliver(ev)
	}
	return cloneRow(stored), nil
}

func (m *Memory) Update(ctx context.Context, table string, filter Filter, patch Row) error {
	m.mu.Lock()
	var updated []Row
	for _, row := range m.tables[table] {
		if matchFilter(row, filter) {
			for k, v := range patch {
				row[k] = v
			}
			updated = append(updated, cloneRow(row))
		}
	}
	subs := append([]*memorySubscription(nil), m.subs...)
	m.mu.Unlock()

	for _, row := range updated {
		ev := Event{Table: table, Kind: EventUpdate, Row: row}
		for _, sub := range subs {
			sub.deliver(ev)
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, table string, kinds ...EventKind) (Subscription, error) {
	if len(kinds) == 0 {
		kinds = []EventKind{EventInsert, EventUpdate}
	}
	sub := &memorySubscription{
		store:  m,
		table:  table,
		kinds:  kinds,
		events: make(chan Event, 64),
	}
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
	return sub, nil
}

type memorySubscription struct {
	store  *Memory
	table  string
	kinds  []EventKind
	events chan Event
	closed sync.Once
}

func (s *memorySubscription) deliver(ev Event) {
	if ev.Table != s.table {
		return
	}
	wanted := false
	for _, kind := range s.kinds {
		if kind == ev.Kind {
			wanted = true
			break
		}
	}
	if !wanted {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}

func (s *memorySubscription) Events() <-chan Event {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.closed.Do(func() {
		m := s.store
		m.mu.Lock()
		for i, sub := range m.subs {
			if sub == s {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
	})
	return nil
}

func cloneRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func matchFilter(row Row, f Filter) bool {
	for _, c := range f.All {
		if !matchCond(row, c) {
			return false
		}
	}
	if len(f.Any) == 0 {
		return true
	}
	for _, c := range f.Any {
		if matchCond(row, c) {
			return true
		}
	}
	return false
}

func matchCond(row Row, c Cond) bool {
	switch c.Op {
	case OpIn:
		values, _ := c.Value.([]string)
		got := row.String(c.Column)
		for _, v := range values {
			if got == v {
				return true
			}
		}
		return false
	case OpILike:
		pattern, _ := c.Value.(string)
		needle := strings.ToLower(strings.Trim(pattern, "%"))
		return strings.Contains(strings.ToLower(row.String(c.Column)), needle)
	default:
		return equalValue(row[c.Column], c.Value)
	}
}

func equalValue(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
	}
	return a == b
}

func lessValue(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Before(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return av < bv
		}
	}
	return false
}
