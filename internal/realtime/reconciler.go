package realtime

import (
	"context"
	"fmt"
	"sync"

	"docshare/internal/domain"
	"docshare/internal/messagelog"
	"docshare/internal/store"
	"docshare/pkg/logger"
)

// ReloadFunc receives the result of a full conversation reload.
type ReloadFunc func(conv domain.Conversation, messages []domain.Message, err error)

// Reconciler watches the message log's insertion stream for the active
// conversation and answers relevant events with a full reload. The
// load is the source of truth; the subscription is only a trigger, so
// no incremental merge state exists.
//
// States: Idle (no conversation selected, no subscription) and
// Subscribed (one subscription open for the active conversation).
type Reconciler struct {
	store store.Client
	log   *messagelog.Log
	lg    *logger.Logger

	// switchMu serializes the teardown-old, setup-new sequence so
	// overlapping Watch and Stop calls cannot orphan a watcher.
	switchMu sync.Mutex

	mu      sync.Mutex
	current *watcher
}

func New(client store.Client, log *messagelog.Log, lg *logger.Logger) *Reconciler {
	return &Reconciler{store: client, log: log, lg: lg}
}

type watcher struct {
	conv   domain.Conversation
	selfID string
	sub    store.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	reload chan struct{}
	wg     sync.WaitGroup
}

// Watch selects conv: any previous subscription is torn down first,
// then the new subscription is opened, then the initial load is issued
// and delivered through onReload before Watch returns. A failed
// initial load tears the new subscription back down and is returned;
// subsequent reloads arrive asynchronously until Stop or the next
// Watch. Concurrent Watch calls are serialized.
func (r *Reconciler) Watch(ctx context.Context, conv domain.Conversation, selfID string, onReload ReloadFunc) error {
	if !conv.Valid() {
		return fmt.Errorf("invalid conversation %q/%q", conv.Kind, conv.ID)
	}

	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	r.stopCurrent()

	// The watcher outlives the selecting call; its lifetime is bound
	// to the subscription, not to the caller's context.
	wctx, cancel := context.WithCancel(context.Background())
	sub, err := r.store.Subscribe(wctx, store.TableMessages, store.EventInsert)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe messages: %w", err)
	}

	w := &watcher{
		conv:   conv,
		selfID: selfID,
		sub:    sub,
		ctx:    wctx,
		cancel: cancel,
		reload: make(chan struct{}, 1),
	}

	r.mu.Lock()
	r.current = w
	r.mu.Unlock()

	messages, err := r.log.Load(ctx, conv, selfID)
	if err != nil {
		r.mu.Lock()
		r.current = nil
		r.mu.Unlock()
		cancel()
		if cerr := sub.Close(); cerr != nil && r.lg != nil {
			r.lg.Errorf("close message subscription: %s", cerr.Error())
		}
		return fmt.Errorf("load %s %s: %w", conv.Kind, conv.ID, err)
	}
	onReload(conv, messages, nil)

	w.wg.Add(2)
	go w.consume(r.lg)
	go w.run(r.log, onReload)
	return nil
}

// Stop tears the active subscription down. It does not return until
// both watcher goroutines have exited, so no reload callback fires
// after Stop completes.
func (r *Reconciler) Stop() {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()
	r.stopCurrent()
}

func (r *Reconciler) stopCurrent() {
	r.mu.Lock()
	w := r.current
	r.current = nil
	r.mu.Unlock()
	if w == nil {
		return
	}

	w.cancel()
	if err := w.sub.Close(); err != nil && r.lg != nil {
		r.lg.Errorf("close message subscription: %s", err.Error())
	}
	w.wg.Wait()
}

// Active returns the conversation currently watched, if any.
func (r *Reconciler) Active() (domain.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return domain.Conversation{}, false
	}
	return r.current.conv, true
}

// consume filters the event stream down to inserts that concern the
// watched conversation and arms the coalesced reload trigger.
func (w *watcher) consume(lg *logger.Logger) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.sub.Events():
			if !ok {
				return
			}
			if ev.Kind != store.EventInsert {
				continue
			}
			if !w.conv.Relevant(store.DecodeMessage(ev.Row)) {
				continue
			}
			w.trigger()
		}
	}
}

// trigger is non-blocking: with a reload already pending, a trailing
// event rides on it. The guarantee is at least one refresh after the
// last event, not exactly one per event.
func (w *watcher) trigger() {
	select {
	case w.reload <- struct{}{}:
	default:
	}
}

func (w *watcher) run(log *messagelog.Log, onReload ReloadFunc) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.reload:
			messages, err := log.Load(w.ctx, w.conv, w.selfID)
			select {
			case <-w.ctx.Done():
				return
			default:
			}
			onReload(w.conv, messages, err)
		}
	}
}
