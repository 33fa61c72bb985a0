// Package circuitbreaker guards the remote content service client. Each
// content domain gets its own breaker so a failing blog endpoint does not
// stop hero or project reads.
//
// # State machine
//
//	Closed ──(error rate ≥ threshold)──► Open ──(OpenDuration elapsed)──► HalfOpen
//	  ▲                                                                        │
//	  └──────────────(all probes succeed)───────────────────────────────────────┘
//	                  (any probe fails) ──────────────────────────────────► Open
//
// The error rate is computed over the last WindowDuration of calls, kept as
// a ring of fixed-width buckets so a busy domain costs constant memory.
//
// # Concurrency
//
// All Breaker methods take the breaker mutex. The Registry uses a separate
// read-write mutex so lookups of existing breakers do not contend with
// creation.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by callers that consult Allow and are refused.
var ErrOpen = errors.New("circuit breaker open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation, requests pass through
	StateOpen                  // Requests are rejected
	StateHalfOpen              // Limited probe requests are allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the circuit breaker configuration. A zero ErrorPct,
// WindowDuration or OpenDuration disables breaking.
type Config struct {
	ErrorPct       float64       `yaml:"error_pct"`        // Error percentage threshold to trip the breaker (0-100)
	MinRequests    int           `yaml:"min_requests"`     // Calls required in the window before the rate is evaluated
	WindowDuration time.Duration `yaml:"window"`           // Sliding window for error rate calculation
	OpenDuration   time.Duration `yaml:"open_duration"`    // How long the breaker stays open before half-open
	HalfOpenProbes int           `yaml:"half_open_probes"` // Probe requests allowed in half-open state
}

// Enabled reports whether cfg describes an active breaker.
func (c Config) Enabled() bool {
	return c.ErrorPct > 0 && c.WindowDuration > 0 && c.OpenDuration > 0
}

// windowBuckets is the number of slots the sliding window is divided into.
const windowBuckets = 10

type bucket struct {
	start     time.Time
	successes int
	failures  int
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now. Tests use it to step through the open period.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// Breaker is a per-domain circuit breaker.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	now      func() time.Time
	state    State
	window   [windowBuckets]bucket
	openedAt time.Time
	probes   int // probes admitted in the current half-open period
	probesOK int
	onChange func(State)
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config, opts ...Option) *Breaker {
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	b := &Breaker{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnStateChange registers fn to be called (under the breaker lock) on every
// state transition.
func (b *Breaker) OnStateChange(fn func(State)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Allow reports whether a request may be sent. In the half-open state it
// admits at most HalfOpenProbes requests.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expireOpen(b.now())
	switch b.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenProbes {
			return false
		}
		b.probes++
		return true
	default:
		return true
	}
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateClosed:
		b.slot(now).successes++
	case StateHalfOpen:
		b.probesOK++
		if b.probesOK >= b.cfg.HalfOpenProbes {
			b.window = [windowBuckets]bucket{}
			b.setState(StateClosed)
		}
	}
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateClosed:
		b.slot(now).failures++
		if b.tripped(now) {
			b.trip(now)
		}
	case StateHalfOpen:
		b.trip(now)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expireOpen(b.now())
	return b.state
}

// expireOpen moves an open breaker whose open period has elapsed to
// half-open. Must be called under lock.
func (b *Breaker) expireOpen(now time.Time) {
	if b.state != StateOpen || now.Sub(b.openedAt) < b.cfg.OpenDuration {
		return
	}
	b.probes, b.probesOK = 0, 0
	b.setState(StateHalfOpen)
}

// trip must be called under lock.
func (b *Breaker) trip(now time.Time) {
	b.openedAt = now
	b.setState(StateOpen)
}

// setState must be called under lock.
func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	b.state = s
	if b.onChange != nil {
		b.onChange(s)
	}
}

// slot returns the bucket covering now, recycling it when it still holds
// counts from an earlier lap of the ring. Must be called under lock.
func (b *Breaker) slot(now time.Time) *bucket {
	width := b.cfg.WindowDuration / windowBuckets
	if width <= 0 {
		width = time.Millisecond
	}
	start := now.Truncate(width)
	bk := &b.window[(start.UnixNano()/int64(width))%windowBuckets]
	if !bk.start.Equal(start) {
		*bk = bucket{start: start}
	}
	return bk
}

// tripped reports whether the calls inside the window ending at now exceed
// the error threshold. Must be called under lock.
func (b *Breaker) tripped(now time.Time) bool {
	cutoff := now.Add(-b.cfg.WindowDuration)
	var ok, failed int
	for _, bk := range b.window {
		if bk.start.After(cutoff) {
			ok += bk.successes
			failed += bk.failures
		}
	}
	total := ok + failed
	if total == 0 || total < b.cfg.MinRequests {
		return false
	}
	return float64(failed)/float64(total)*100 >= b.cfg.ErrorPct
}

// Registry holds per-domain circuit breakers.
type Registry struct {
	mu       sync.RWMutex
	cfg      Config
	opts     []Option
	breakers map[string]*Breaker
	onCreate func(name string, b *Breaker)
}

// NewRegistry creates a breaker registry that builds every breaker from cfg
// and opts.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	return &Registry{
		cfg:      cfg,
		opts:     opts,
		breakers: make(map[string]*Breaker),
	}
}

// OnCreate registers a hook invoked once for each new breaker.
func (r *Registry) OnCreate(fn func(name string, b *Breaker)) {
	r.mu.Lock()
	r.onCreate = fn
	r.mu.Unlock()
}

// Get returns the breaker for name, creating it on first use.
// Returns nil when breaking is disabled.
func (r *Registry) Get(name string) *Breaker {
	if r == nil || !r.cfg.Enabled() {
		return nil
	}

	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = New(r.cfg, r.opts...)
	r.breakers[name] = b
	if r.onCreate != nil {
		r.onCreate(name, b)
	}
	return b
}

// Snapshot maps each breaker name to its state name.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State().String()
	}
	return out
}
