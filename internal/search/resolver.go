package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"docshare/internal/domain"
	"docshare/internal/store"
	docshare_errors "docshare/pkg/errors"
)

// DefaultDebounce is the keystroke window: a new query inside it
// supersedes the pending one.
const DefaultDebounce = 250 * time.Millisecond

// Resolver resolves a free-text query to candidate profiles for
// starting a new conversation.
type Resolver struct {
	store store.Client
	delay time.Duration

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

func New(client store.Client, delay time.Duration) *Resolver {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Resolver{store: client, delay: delay}
}

// Search matches query case-insensitively as a substring of email or
// full_name, capped at limit. An empty or whitespace-only query
// returns nothing without a remote call.
func (r *Resolver) Search(ctx context.Context, query string, limit int) ([]domain.Profile, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}

	pattern := "%" + q + "%"
	rows, err := r.store.Query(ctx, store.TableProfiles, store.Filter{
		Any: []store.Cond{
			store.ILike("email", pattern),
			store.ILike("full_name", pattern),
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: search profiles: %v", docshare_errors.ErrStore, err)
	}

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	profiles := make([]domain.Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, store.DecodeProfile(row))
	}
	return profiles, nil
}

// Debounce schedules query after the debounce window. A newer call
// supersedes a pending one, and a stale in-flight result is dropped
// rather than delivered: only the most recent query's result reaches
// deliver (last-issued-query-wins, not last-to-return-wins).
func (r *Resolver) Debounce(ctx context.Context, query string, limit int, deliver func([]domain.Profile, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gen++
	gen := r.gen
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.delay, func() {
		profiles, err := r.Search(ctx, query, limit)

		r.mu.Lock()
		stale := gen != r.gen
		r.mu.Unlock()
		if stale {
			return
		}
		deliver(profiles, err)
	})
}
