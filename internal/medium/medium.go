// Package medium provides the key-value media behind the persisted adapter:
// a session-lifetime in-memory map and durable SQLite or Redis storage.
// Every implementation is safe for concurrent use.
package medium

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("medium: key not found")

	// ErrQuotaExceeded is returned by Set when the value does not fit.
	ErrQuotaExceeded = errors.New("medium: quota exceeded")

	// ErrUnavailable is returned when the medium cannot be used at all.
	ErrUnavailable = errors.New("medium: unavailable")
)

// Medium is a string-keyed byte store.
type Medium interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Ping verifies the medium is usable.
	Ping(ctx context.Context) error

	// Close releases the medium's resources.
	Close() error
}

// Kind names a medium implementation in configuration.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindSQLite   Kind = "sqlite"
	KindRedis    Kind = "redis"
	KindDisabled Kind = "disabled"
)

// ParseKind converts a configuration value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMemory, KindSQLite, KindRedis, KindDisabled:
		return k, nil
	case "":
		return KindMemory, nil
	default:
		return "", fmt.Errorf("unknown storage medium %q (valid: memory, sqlite, redis, disabled)", s)
	}
}

// Options configures Open.
type Options struct {
	Kind Kind
	// Origin scopes durable media so several sites can share one database.
	Origin string
	// QuotaBytes bounds the memory medium. Zero means unlimited.
	QuotaBytes int
	SQLitePath string
	Redis      RedisConfig
}

// Open builds the medium described by opts.
func Open(ctx context.Context, opts Options) (Medium, error) {
	switch opts.Kind {
	case KindMemory, "":
		return NewMemory(opts.QuotaBytes), nil
	case KindDisabled:
		return Disabled{}, nil
	case KindSQLite:
		return OpenSQLite(opts.SQLitePath, opts.Origin)
	case KindRedis:
		cfg := opts.Redis
		if cfg.KeyPrefix == "" {
			cfg.KeyPrefix = "folio:" + opts.Origin + ":"
		}
		r := NewRedis(cfg)
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown storage medium %q", opts.Kind)
	}
}
