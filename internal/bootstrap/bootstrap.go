// Package bootstrap starts the initial load of every entity store when an
// admin session begins.
package bootstrap

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/oriys/folio/internal/logging"
)

// Fetcher is a store that can be loaded.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context)
}

// Orchestrator fires one parallel fetch per store, once. Each fetch runs on
// its own goroutine and a failure or panic in one never reaches another.
// There is no combined completion signal: callers watch the stores they
// depend on.
type Orchestrator struct {
	started atomic.Bool
}

// New returns an orchestrator that has not run.
func New() *Orchestrator {
	return &Orchestrator{}
}

// Bootstrap starts fetching every store and returns without waiting. It
// reports whether this call started the fetches; later calls are no-ops.
func (o *Orchestrator) Bootstrap(ctx context.Context, stores ...Fetcher) bool {
	if !o.started.CompareAndSwap(false, true) {
		return false
	}
	ctx = context.WithoutCancel(ctx)
	for _, s := range stores {
		go fetch(ctx, s)
	}
	logging.For("bootstrap").Debug("bootstrap started", "stores", len(stores))
	return true
}

// Started reports whether Bootstrap has run.
func (o *Orchestrator) Started() bool {
	return o.started.Load()
}

func fetch(ctx context.Context, s Fetcher) {
	defer func() {
		if r := recover(); r != nil {
			logging.For("bootstrap").Error("store fetch panicked", "store", s.Name(), "panic", fmt.Sprint(r))
		}
	}()
	s.Fetch(ctx)
}
