package medium

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// globEscaper quotes the characters SCAN MATCH treats as pattern syntax.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// Redis is a durable medium shared between processes. Keys are namespaced
// with a per-origin prefix.
type Redis struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds configuration for the Redis medium.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"` // default: "folio:"
}

// NewRedis creates a Redis-backed medium.
func NewRedis(cfg RedisConfig) *Redis {
	return NewRedisFromClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.KeyPrefix)
}

// NewRedisFromClient creates a Redis medium using an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "folio:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		if strings.HasPrefix(err.Error(), "OOM") {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	full := r.key(prefix)
	iter := r.client.Scan(ctx, 0, globEscaper.Replace(full)+"*", 100).Iterator()
	for iter.Next(ctx) {
		if k, ok := strings.CutPrefix(iter.Val(), r.prefix); ok && strings.HasPrefix(iter.Val(), full) {
			keys = append(keys, k)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable(err)
	}
	return keys, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
