package content

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/oriys/folio/internal/domain"
)

// MemoryService is an in-process content service. It backs `folio serve`
// when no database is configured and stands in for the remote service in
// tests, where faults and latency can be injected per domain.
type MemoryService struct {
	mu      sync.Mutex
	docs    map[domain.Domain]json.RawMessage
	faults  map[domain.Domain][]error
	latency time.Duration
	fetches map[domain.Domain]int
	writes  map[domain.Domain]int
	applier Applier
	gate    chan struct{}
}

// NewMemoryService returns an empty service.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		docs:    make(map[domain.Domain]json.RawMessage),
		faults:  make(map[domain.Domain][]error),
		fetches: make(map[domain.Domain]int),
		writes:  make(map[domain.Domain]int),
		applier: DefaultApplier(),
	}
}

// SetApplier replaces the id and clock source used for writes.
func (m *MemoryService) SetApplier(a Applier) {
	m.mu.Lock()
	m.applier = a
	m.mu.Unlock()
}

// Seed stores doc as the current document for d without validation.
func (m *MemoryService) Seed(d domain.Domain, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s seed: %w", d, err)
	}
	m.mu.Lock()
	m.docs[d] = raw
	m.mu.Unlock()
	return nil
}

// LoadSeedFile seeds the service from a YAML (or JSON) file keyed by domain
// name.
func (m *MemoryService) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seeds map[string]any
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	for name, doc := range seeds {
		d, err := domain.Parse(name)
		if err != nil {
			return fmt.Errorf("seed file: %w", err)
		}
		if err := m.Seed(d, doc); err != nil {
			return err
		}
	}
	return nil
}

// LoadSeedFiles loads every file matching pattern, a doublestar glob such
// as "content/**/*.yaml", in lexical order. A domain seeded by several files
// keeps the last one.
func (m *MemoryService) LoadSeedFiles(pattern string) error {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return fmt.Errorf("seed pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("seed pattern %q matched no files", pattern)
	}
	sort.Strings(matches)
	for _, path := range matches {
		if err := m.LoadSeedFile(path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// InjectFault makes the next call against d fail with err. Faults queue in
// the order they were injected.
func (m *MemoryService) InjectFault(d domain.Domain, err error) {
	m.mu.Lock()
	m.faults[d] = append(m.faults[d], err)
	m.mu.Unlock()
}

// SetLatency delays every call by d.
func (m *MemoryService) SetLatency(d time.Duration) {
	m.mu.Lock()
	m.latency = d
	m.mu.Unlock()
}

// Hold blocks every call until the returned release func is called.
func (m *MemoryService) Hold() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Fetches returns how many fetches reached the service for d.
func (m *MemoryService) Fetches(d domain.Domain) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[d]
}

// Writes returns how many writes reached the service for d.
func (m *MemoryService) Writes(d domain.Domain) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[d]
}

// Document returns the stored document for d.
func (m *MemoryService) Document(d domain.Domain) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[d]; ok {
		return append(json.RawMessage(nil), doc...)
	}
	return domain.EmptyDocument(d)
}

func (m *MemoryService) Fetch(ctx context.Context, d domain.Domain) (json.RawMessage, error) {
	m.mu.Lock()
	m.fetches[d]++
	m.mu.Unlock()
	if err := m.wait(ctx, d, "fetch"); err != nil {
		return nil, err
	}
	return m.Document(d), nil
}

func (m *MemoryService) Write(ctx context.Context, d domain.Domain, op Op) (json.RawMessage, error) {
	m.mu.Lock()
	m.writes[d]++
	m.mu.Unlock()
	if err := m.wait(ctx, d, "write"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.applier.Apply(d, m.docs[d], op)
	if err != nil {
		return nil, err
	}
	m.docs[d] = next
	return append(json.RawMessage(nil), next...), nil
}

// wait applies the configured latency, gate and queued fault for one call.
func (m *MemoryService) wait(ctx context.Context, d domain.Domain, op string) error {
	m.mu.Lock()
	latency, gate := m.latency, m.gate
	var fault error
	if queue := m.faults[d]; len(queue) > 0 {
		fault, m.faults[d] = queue[0], queue[1:]
	}
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return &NetworkError{Domain: d, Op: op, Err: ctx.Err()}
		}
	}
	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return &NetworkError{Domain: d, Op: op, Err: ctx.Err()}
		}
	}
	return fault
}
