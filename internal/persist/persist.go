// Package persist stores small typed values as versioned records on a
// medium. Reads never fail from the caller's view: a missing record, an
// unusable medium, undecodable data and a record written under another
// schema version all read as "nothing persisted".
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/medium"
	"github.com/oriys/folio/internal/metrics"
)

var (
	// ErrNotFound means no record exists under the key.
	ErrNotFound = errors.New("persist: no record")

	// ErrStorageUnavailable means the medium refused the operation.
	ErrStorageUnavailable = errors.New("persist: storage unavailable")

	// ErrSchemaMismatch means the record was written under another schema
	// version.
	ErrSchemaMismatch = errors.New("persist: schema mismatch")

	// ErrCorrupt means the stored bytes are not a valid record.
	ErrCorrupt = errors.New("persist: corrupt record")
)

// DefaultTimeout bounds each medium call.
const DefaultTimeout = 250 * time.Millisecond

// Record is the stored envelope.
type Record struct {
	SchemaVersion int             `json:"schemaVersion"`
	Payload       json.RawMessage `json:"payload"`
	SavedAt       time.Time       `json:"savedAt"`
}

// Medium keys are ":"-joined segments. Each segment escapes ":" and "%" so
// that no scope and key pair can spell another pair's medium key.
var (
	segmentEscaper   = strings.NewReplacer("%", "%25", ":", "%3A")
	segmentUnescaper = strings.NewReplacer("%3A", ":", "%25", "%")
)

// Adapter reads and writes records under one key namespace.
type Adapter struct {
	medium    medium.Medium
	namespace string
	timeout   time.Duration
	now       func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout bounds each medium call by d.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithClock replaces the clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New returns an adapter over m rooted at namespace. A nil medium behaves
// as one that is unavailable.
func New(m medium.Medium, namespace string, opts ...Option) *Adapter {
	if m == nil {
		m = medium.Disabled{}
	}
	a := &Adapter{medium: m, namespace: segmentEscaper.Replace(namespace), timeout: DefaultTimeout, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Scope returns an adapter over the same medium whose keys live under
// ns inside this adapter's namespace.
func (a *Adapter) Scope(ns string) *Adapter {
	child := *a
	child.namespace = a.key(ns)
	return &child
}

// Namespace returns the key prefix of the adapter.
func (a *Adapter) Namespace() string { return a.namespace }

func (a *Adapter) key(k string) string {
	return a.prefix() + segmentEscaper.Replace(k)
}

func (a *Adapter) prefix() string {
	if a.namespace == "" {
		return ""
	}
	return a.namespace + ":"
}

func (a *Adapter) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

// Load returns the record stored under key.
func (a *Adapter) Load(key string) (Record, error) {
	ctx, cancel := a.ctx()
	defer cancel()

	raw, err := a.medium.Get(ctx, a.key(key))
	if errors.Is(err, medium.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.SchemaVersion == 0 || rec.Payload == nil {
		return Record{}, fmt.Errorf("%w: %s", ErrCorrupt, key)
	}
	return rec, nil
}

// Lookup decodes the value stored under key at schema version.
func Lookup[T any](a *Adapter, key string, version int) (T, error) {
	var zero T
	rec, err := a.Load(key)
	if err != nil {
		return zero, err
	}
	if rec.SchemaVersion != version {
		return zero, fmt.Errorf("%w: %s has version %d, want %d", ErrSchemaMismatch, key, rec.SchemaVersion, version)
	}
	var v T
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		return zero, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return v, nil
}

// Read returns the value stored under key at schema version, and whether
// one was found.
func Read[T any](a *Adapter, key string, version int) (T, bool) {
	v, err := Lookup[T](a, key, version)
	outcome := Outcome(err)
	metrics.RecordPersist("read", outcome)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.For("persist").Debug("persisted value discarded", "key", a.key(key), "outcome", outcome, "error", err)
		}
		return v, false
	}
	return v, true
}

// Store writes v under key at schema version.
func Store[T any](a *Adapter, key string, version int, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	raw, err := json.Marshal(Record{SchemaVersion: version, Payload: payload, SavedAt: a.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	ctx, cancel := a.ctx()
	defer cancel()
	if err := a.medium.Set(ctx, a.key(key), raw); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Write stores v under key at schema version. Failures are logged and
// otherwise ignored.
func Write[T any](a *Adapter, key string, version int, v T) {
	err := Store(a, key, version, v)
	metrics.RecordPersist("write", Outcome(err))
	if err != nil {
		logging.For("persist").Debug("persist write dropped", "key", a.key(key), "error", err)
	}
}

// Remove deletes the record under key. Failures are logged and otherwise
// ignored.
func (a *Adapter) Remove(key string) {
	ctx, cancel := a.ctx()
	defer cancel()
	err := a.medium.Delete(ctx, a.key(key))
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		logging.For("persist").Debug("persist remove dropped", "key", a.key(key), "error", err)
	}
	metrics.RecordPersist("remove", Outcome(err))
}

// Keys lists the keys written through this adapter, without the prefix.
// Records of nested scopes are not included.
func (a *Adapter) Keys() ([]string, error) {
	ctx, cancel := a.ctx()
	defer cancel()
	prefix := a.prefix()
	keys, err := a.medium.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		rest, ok := strings.CutPrefix(k, prefix)
		if !ok || strings.Contains(rest, ":") {
			continue
		}
		out = append(out, segmentUnescaper.Replace(rest))
	}
	return out, nil
}

// Clear removes every record under this adapter's namespace.
func (a *Adapter) Clear() {
	keys, err := a.Keys()
	if err != nil {
		metrics.RecordPersist("clear", Outcome(err))
		logging.For("persist").Debug("persist clear dropped", "namespace", a.namespace, "error", err)
		return
	}
	for _, k := range keys {
		a.Remove(k)
	}
}

// Outcome is the metrics label for the result of a persist operation.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "miss"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrCorrupt):
		return "corrupt"
	case errors.Is(err, medium.ErrQuotaExceeded):
		return "quota"
	default:
		return "unavailable"
	}
}
