package medium

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory keeps values for the life of the process. With a quota it
// rejects writes that would grow the total size of keys and values past
// it, the way a browser's session storage does.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
	size    int
	quota   int
	closed  bool
}

// NewMemory returns an empty memory medium. quota <= 0 disables the limit.
func NewMemory(quota int) *Memory {
	return &Memory{
		entries: make(map[string][]byte),
		quota:   quota,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	v, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	size := m.size + len(key) + len(value)
	if old, ok := m.entries[key]; ok {
		size -= len(key) + len(old)
	}
	if m.quota > 0 && size > m.quota {
		return ErrQuotaExceeded
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.entries[key] = cp
	m.size = size
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	if old, ok := m.entries[key]; ok {
		m.size -= len(key) + len(old)
		delete(m.entries, key)
	}
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}
	var keys []string
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Size returns the bytes counted against the quota.
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *Memory) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrUnavailable
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	m.size = 0
	return nil
}
