// Package entity holds the per-domain client caches. A Store keeps the last
// known snapshot of one content domain, loads it at most once per
// invalidation, and is the cell optimistic mutations publish into.
package entity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/metrics"
	"github.com/oriys/folio/internal/observability"
	"github.com/oriys/folio/internal/optimistic"
)

// Config describes a store.
type Config[T any] struct {
	Name string
	// Load fetches the authoritative snapshot.
	Load func(ctx context.Context) (T, error)
	// Clone deep-copies a snapshot as it enters or leaves the store. Nil
	// shares snapshots as is.
	Clone func(T) T
	// Initial is the snapshot before the first successful load.
	Initial T
	Now     func() time.Time
}

// Store is the cache and lifecycle for one content domain.
type Store[T any] struct {
	name  string
	load  func(ctx context.Context) (T, error)
	clone func(T) T
	now   func() time.Time

	mu          sync.Mutex
	snapshot    T
	status      Status
	fetchedOnce bool
	lastErr     error
	updatedAt   time.Time
	inflight    chan struct{}

	// publishMu orders listener notifications with the publishes that
	// caused them.
	publishMu sync.Mutex
	listeners map[int]func(T)
	nextID    int
}

// New builds a store from cfg. Name and Load are required.
func New[T any](cfg Config[T]) *Store[T] {
	if cfg.Name == "" || cfg.Load == nil {
		panic("entity: store requires a name and a loader")
	}
	if cfg.Clone == nil {
		cfg.Clone = func(v T) T { return v }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store[T]{
		name:      cfg.Name,
		load:      cfg.Load,
		clone:     cfg.Clone,
		now:       cfg.Now,
		snapshot:  cfg.Initial,
		listeners: make(map[int]func(T)),
	}
}

// Name returns the store name, which is also its metrics label.
func (s *Store[T]) Name() string { return s.name }

// Snapshot returns the current visible state.
func (s *Store[T]) Snapshot() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clone(s.snapshot)
}

// State returns a copy of the lifecycle fields.
func (s *Store[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Status:      s.status,
		FetchedOnce: s.fetchedOnce,
		Loading:     s.inflight != nil,
		LastError:   s.lastErr,
		UpdatedAt:   s.updatedAt,
	}
}

// Fetch loads the snapshot unless a load is already running or one has
// completed since the last Invalidate. Callers that arrive while a load is
// running wait for that load instead of starting another. Fetch returns
// when the load finishes or ctx is done, whichever is first; a departing
// caller never cancels the load. Failures are recorded in State, never
// returned.
func (s *Store[T]) Fetch(ctx context.Context) {
	s.mu.Lock()
	if done := s.inflight; done != nil {
		s.mu.Unlock()
		metrics.RecordFetchCoalesced(s.name)
		wait(ctx, done)
		return
	}
	if s.fetchedOnce {
		s.mu.Unlock()
		metrics.RecordFetchSkipped(s.name)
		return
	}
	done := make(chan struct{})
	s.inflight = done
	s.status = StatusLoading
	s.mu.Unlock()
	metrics.SetStoreStatus(s.name, int(StatusLoading))

	go s.run(context.WithoutCancel(ctx), done)
	wait(ctx, done)
}

func wait(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Store[T]) run(ctx context.Context, done chan struct{}) {
	ctx, span := observability.StartSpan(ctx, "store.fetch", observability.AttrStore.String(s.name))
	defer span.End()

	start := time.Now()
	v, err := s.safeLoad(ctx)
	elapsed := time.Since(start)
	metrics.RecordFetch(s.name, elapsed, err == nil)

	s.publishMu.Lock()
	s.mu.Lock()
	s.inflight = nil
	s.fetchedOnce = true
	if err != nil {
		s.status = StatusFailed
		s.lastErr = err
		s.mu.Unlock()
		s.publishMu.Unlock()
		close(done)

		observability.SetSpanError(span, err)
		metrics.SetStoreStatus(s.name, int(StatusFailed))
		observability.Logger(ctx, "entity").Warn("fetch failed", "store", s.name, "duration_ms", elapsed.Milliseconds(), "error", err)
		return
	}
	s.snapshot = v
	s.status = StatusReady
	s.lastErr = nil
	s.updatedAt = s.now()
	out, listeners := s.clone(v), s.listenersLocked()
	s.mu.Unlock()
	close(done)
	notify(listeners, out)
	s.publishMu.Unlock()

	observability.SetSpanOK(span)
	metrics.SetStoreStatus(s.name, int(StatusReady))
	logging.For("entity").Debug("fetch completed", "store", s.name, "duration_ms", elapsed.Milliseconds())
}

func (s *Store[T]) safeLoad(ctx context.Context) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("entity: %s loader panicked: %v", s.name, r)
		}
	}()
	return s.load(ctx)
}

// Invalidate allows the next Fetch to load again. The current snapshot
// stays visible until that load succeeds.
func (s *Store[T]) Invalidate() {
	s.mu.Lock()
	s.fetchedOnce = false
	s.mu.Unlock()
}

// Subscribe registers fn to receive every newly visible snapshot: load
// results, tentative states, commits and rollbacks. fn runs outside the
// store lock but must not mutate the store. The returned func removes it.
func (s *Store[T]) Subscribe(fn func(T)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store[T]) listenersLocked() []func(T) {
	if len(s.listeners) == 0 {
		return nil
	}
	out := make([]func(T), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify[T any](listeners []func(T), v T) {
	for _, fn := range listeners {
		fn(v)
	}
}

// Mutate applies an optimistic change: transform derives the tentative
// snapshot, which is visible before Mutate blocks on write. On failure the
// snapshot seen before the change is restored and a
// *optimistic.RollbackError is returned.
func (s *Store[T]) Mutate(ctx context.Context, transform optimistic.Transform[T], write optimistic.Write[T], kind, target string) (T, error) {
	m, err := s.Begin(transform, write, kind, target)
	if err != nil {
		var zero T
		return zero, err
	}
	return m.Await(ctx)
}

// Begin starts an optimistic change and returns once the tentative
// snapshot is visible. The caller settles it with Await.
func (s *Store[T]) Begin(transform optimistic.Transform[T], write optimistic.Write[T], kind, target string) (*optimistic.Mutation[T], error) {
	// transform works on its own copy so the captured previous state stays intact.
	own := func(prev T) (T, error) { return transform(s.clone(prev)) }
	return optimistic.Begin[T](cell[T]{s}, own, write, optimistic.Info{Store: s.name, Kind: kind, Target: target})
}

// cell exposes the publishing side of a store to the optimistic package
// without making it part of the Store API.
type cell[T any] struct{ s *Store[T] }

func (c cell[T]) Snapshot() T { return c.s.Snapshot() }

func (c cell[T]) Publish(v T) { c.s.publish(v, false) }

func (c cell[T]) Commit(v T) { c.s.publish(v, true) }

func (s *Store[T]) publish(v T, authoritative bool) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	v = s.clone(v)
	s.mu.Lock()
	s.snapshot = v
	if authoritative {
		s.status = StatusReady
		s.fetchedOnce = true
		s.lastErr = nil
		s.updatedAt = s.now()
	}
	out, listeners := s.clone(v), s.listenersLocked()
	s.mu.Unlock()

	if authoritative {
		metrics.SetStoreStatus(s.name, int(StatusReady))
	}
	notify(listeners, out)
}
