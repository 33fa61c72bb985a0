// Package optimistic applies a tentative state immediately, performs the
// remote write, and then either commits the authoritative result or rolls
// back to the state captured before the mutation began.
//
// Mutations are not serialized. Two mutations against the same cell run
// independently, each against the state current when it began, and
// whichever finishes last decides what stays visible.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/metrics"
	"github.com/oriys/folio/internal/observability"
)

// ErrAlreadyAwaited is returned by a second Await on the same mutation.
var ErrAlreadyAwaited = errors.New("optimistic: mutation already awaited")

// Cell is the published state a mutation operates on.
type Cell[T any] interface {
	// Snapshot returns the current visible state.
	Snapshot() T
	// Publish makes v visible without treating it as authoritative.
	Publish(v T)
	// Commit makes v visible as the authoritative state.
	Commit(v T)
}

// Transform derives the tentative state from the previous one. An error
// aborts the mutation before anything is published.
type Transform[T any] func(previous T) (T, error)

// Write performs the remote operation and returns the authoritative state.
type Write[T any] func(ctx context.Context) (T, error)

// Info labels a mutation for logs, metrics and traces.
type Info struct {
	Store  string
	Kind   string
	Target string
}

// RollbackError reports a write that failed after its tentative state was
// published. By the time it is returned the previous state is visible again.
type RollbackError struct {
	MutationID string
	Store      string
	Kind       string
	Err        error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%s %s rolled back: %v", e.Store, e.Kind, e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }

// Mutation is one in-progress optimistic change.
type Mutation[T any] struct {
	id       string
	info     Info
	cell     Cell[T]
	previous T
	write    Write[T]
	started  time.Time
	awaited  atomic.Bool
}

// Begin captures the current state of cell, derives the tentative state and
// publishes it before returning. The write does not start until Await.
func Begin[T any](cell Cell[T], transform Transform[T], write Write[T], info Info) (*Mutation[T], error) {
	previous := cell.Snapshot()
	tentative, err := transform(previous)
	if err != nil {
		return nil, err
	}
	cell.Publish(tentative)
	return &Mutation[T]{
		id:       ulid.Make().String(),
		info:     info,
		cell:     cell,
		previous: previous,
		write:    write,
		started:  time.Now(),
	}, nil
}

// ID identifies the mutation in logs and audit records.
func (m *Mutation[T]) ID() string { return m.id }

// Previous returns the state captured when the mutation began.
func (m *Mutation[T]) Previous() T { return m.previous }

// Await runs the write and settles the mutation. The write is detached from
// ctx cancellation: once started it always runs to completion and its
// outcome is always applied.
func (m *Mutation[T]) Await(ctx context.Context) (T, error) {
	var zero T
	if !m.awaited.CompareAndSwap(false, true) {
		return zero, ErrAlreadyAwaited
	}

	ctx, span := observability.StartSpan(context.WithoutCancel(ctx), "mutation."+m.info.Kind,
		observability.AttrStore.String(m.info.Store),
		observability.AttrOpKind.String(m.info.Kind),
		observability.AttrTargetID.String(m.info.Target),
		observability.AttrMutationID.String(m.id),
	)
	defer span.End()

	result, err := m.write(ctx)
	elapsed := time.Since(m.started)
	m.record(elapsed, err)

	if err != nil {
		m.cell.Publish(m.previous)
		observability.SetSpanError(span, err)
		observability.Logger(ctx, "optimistic").Warn("mutation rolled back",
			"store", m.info.Store, "kind", m.info.Kind, "target", m.info.Target,
			"mutation_id", m.id, "error", err)
		return zero, &RollbackError{MutationID: m.id, Store: m.info.Store, Kind: m.info.Kind, Err: err}
	}

	m.cell.Commit(result)
	observability.SetSpanOK(span)
	logging.For("optimistic").Info("mutation committed",
		"store", m.info.Store, "kind", m.info.Kind, "target", m.info.Target,
		"mutation_id", m.id, "duration_ms", elapsed.Milliseconds())
	return result, nil
}

func (m *Mutation[T]) record(elapsed time.Duration, err error) {
	metrics.RecordMutation(m.info.Store, m.info.Kind, elapsed, err == nil)
	entry := logging.MutationRecord{
		MutationID: m.id,
		Store:      m.info.Store,
		Kind:       m.info.Kind,
		TargetID:   m.info.Target,
		DurationMs: elapsed.Milliseconds(),
		Committed:  err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	logging.Audit().Record(entry)
}

// Apply runs a whole mutation: Begin followed by Await.
func Apply[T any](ctx context.Context, cell Cell[T], transform Transform[T], write Write[T], info Info) (T, error) {
	m, err := Begin(cell, transform, write, info)
	if err != nil {
		var zero T
		return zero, err
	}
	return m.Await(ctx)
}

// Replace returns a Transform that ignores the previous state.
func Replace[T any](tentative T) Transform[T] {
	return func(T) (T, error) { return tentative, nil }
}
