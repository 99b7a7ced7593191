package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docshare/pkg/logger"
)

// Feed publishes and serves change notifications for store writes.
type Feed interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, table string, kinds ...EventKind) (Subscription, error)
}

// Postgres is the production Client backed by a pgx pool. Every
// successful write is published to the change feed so subscribers see
// the new row values.
type Postgres struct {
	pool *pgxpool.Pool
	feed Feed
	log  *logger.Logger
}

func NewPostgres(ctx context.Context, dsn string, feed Feed, l *logger.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool, feed: feed, log: l}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Query(ctx context.Context, table string, filter Filter, order *Order) ([]Row, error) {
	var args []any
	sql := "SELECT * FROM " + table + buildWhere(filter, &args)
	if order != nil {
		dir := "DESC"
		if order.Ascending {
			dir = "ASC"
		}
		sql += " ORDER BY " + order.Column + " " + dir
	}

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return collectRows(rows)
}

func (p *Postgres) Insert(ctx context.Context, table string, row Row) (Row, error) {
	cols := sortedColumns(row)
	args := make([]any, 0, len(cols))
	placeholders := make([]string, 0, len(cols))
	for _, col := range cols {
		args = append(args, row[col])
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(cols, ","), strings.Join(placeholders, ","))

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	stored, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("insert %s: no row returned", table)
	}

	p.publish(ctx, Event{Table: table, Kind: EventInsert, Row: stored[0]})
	return stored[0], nil
}

func (p *Postgres) Update(ctx context.Context, table string, filter Filter, patch Row) error {
	var args []any
	sets := make([]string, 0, len(patch))
	for _, col := range sortedColumns(patch) {
		args = append(args, patch[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(sets, ", ")) +
		buildWhere(filter, &args) + " RETURNING *"

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	updated, err := collectRows(rows)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}

	for _, row := range updated {
		p.publish(ctx, Event{Table: table, Kind: EventUpdate, Row: row})
	}
	return nil
}

func (p *Postgres) Subscribe(ctx context.Context, table string, kinds ...EventKind) (Subscription, error) {
	if p.feed == nil {
		return nil, errors.New("no change feed configured")
	}
	return p.feed.Subscribe(ctx, table, kinds...)
}

// publish failures do not fail the write; the load path remains the
// source of truth.
func (p *Postgres) publish(ctx context.Context, ev Event) {
	if p.feed == nil {
		return
	}
	if err := p.feed.Publish(ctx, ev); err != nil && p.log != nil {
		p.log.Errorf("publish %s %s event: %s", ev.Table, ev.Kind, err.Error())
	}
}

func sortedColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func buildWhere(f Filter, args *[]any) string {
	var parts []string
	for _, c := range f.All {
		parts = append(parts, condSQL(c, args))
	}
	if len(f.Any) > 0 {
		anyParts := make([]string, 0, len(f.Any))
		for _, c := range f.Any {
			anyParts = append(anyParts, condSQL(c, args))
		}
		parts = append(parts, "("+strings.Join(anyParts, " OR ")+")")
	}
	if len(parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

func condSQL(c Cond, args *[]any) string {
	switch c.Op {
	case OpIn:
		values, _ := c.Value.([]string)
		if len(values) == 0 {
			return "1 = 0"
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			*args = append(*args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(*args))
		}
		return fmt.Sprintf("%s IN (%s)", c.Column, strings.Join(placeholders, ","))
	case OpILike:
		*args = append(*args, c.Value)
		return fmt.Sprintf("%s ILIKE $%d", c.Column, len(*args))
	default:
		*args = append(*args, c.Value)
		return fmt.Sprintf("%s = $%d", c.Column, len(*args))
	}
}

func collectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			if v := normalizeValue(values[i]); v != nil {
				row[fd.Name] = v
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeValue maps driver types onto the row format's wire types.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case [16]byte:
		return uuid.UUID(t).String()
	case int32:
		return int64(t)
	default:
		return v
	}
}
