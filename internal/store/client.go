package store

import (
	"context"
	"time"
)

// Table names used by the conversation core.
const (
	TableProfiles     = "profiles"
	TableFriendships  = "friendships"
	TableGroups       = "groups"
	TableGroupMembers = "group_members"
	TableMessages     = "messages"
)

// Row is one record of a table in the remote store's row format.
type Row map[string]any

// Op is a filter operator.
type Op string

const (
	OpEq    Op = "eq"
	OpIn    Op = "in"
	OpILike Op = "ilike"
)

// Cond is a single column condition.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Cond {
	return Cond{Column: column, Op: OpEq, Value: value}
}

func In(column string, values []string) Cond {
	return Cond{Column: column, Op: OpIn, Value: values}
}

// ILike matches case-insensitively against a pattern with % wildcards.
func ILike(column, pattern string) Cond {
	return Cond{Column: column, Op: OpILike, Value: pattern}
}

// Filter is the conjunction of All plus at most one disjunctive group
// in Any, mirroring the remote store's eq chains and or() escape hatch.
type Filter struct {
	All []Cond
	Any []Cond
}

// Order names the sort column for a query.
type Order struct {
	Column    string
	Ascending bool
}

// EventKind is the kind of change carried by a subscription event.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
)

// Event is a change notification. Row carries the affected row's new
// field values.
type Event struct {
	Table string    `json:"table"`
	Kind  EventKind `json:"kind"`
	Row   Row       `json:"row"`
}

// Subscription is an open change-notification stream. The Events
// channel is closed after Close.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Client is the remote relational store: query-with-filter, insert,
// update and a change-notification subscription primitive. All store
// access goes through an injected Client so alternate backends can be
// substituted for testing.
type Client interface {
	Query(ctx context.Context, table string, filter Filter, order *Order) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table string, filter Filter, patch Row) error
	Subscribe(ctx context.Context, table string, kinds ...EventKind) (Subscription, error)
}

// String returns the named field as a string, or "" when absent.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	}
	return ""
}

// Int64 returns the named field as an int64, tolerating the numeric
// types JSON decoding and drivers produce.
func (r Row) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Time returns the named field as a time.Time, parsing RFC3339 strings
// coming off the wire.
func (r Row) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
