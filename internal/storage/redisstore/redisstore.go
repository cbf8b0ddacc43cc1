// Package redisstore implements storage.Backend on top of a Redis server.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"kanban/internal/storage"
)

// setFieldIfExists writes a single hash field only when the hash exists, so a
// status change racing a delete cannot leave a partial record behind.
var setFieldIfExists = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
		return 1
	end
	return 0
`)

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Backend wraps a go-redis client.
type Backend struct {
	client *redis.Client
}

// Open connects to Redis and verifies the connection with a ping.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("empty redis address")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	b := New(client)
	if err := b.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("connected to redis", slog.String("addr", cfg.Addr), slog.Int("db", cfg.DB))
	return b, nil
}

// New wraps an existing client.
func New(client *redis.Client) *Backend {
	return &Backend{client: client}
}

func (b *Backend) Incr(ctx context.Context, key string) (int64, error) {
	n, err := b.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, storage.Unavailable("incr", err)
	}
	return n, nil
}

func (b *Backend) PutRecord(ctx context.Context, recordKey string, fields map[string]string, setKey, member string) error {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recordKey, values)
		pipe.SAdd(ctx, setKey, member)
		return nil
	})
	if err != nil {
		return storage.Unavailable("put record", err)
	}
	return nil
}

func (b *Backend) Record(ctx context.Context, recordKey string) (map[string]string, error) {
	rec, err := b.client.HGetAll(ctx, recordKey).Result()
	if err != nil {
		return nil, storage.Unavailable("read record", err)
	}
	return rec, nil
}

func (b *Backend) Field(ctx context.Context, recordKey, field string) (string, bool, error) {
	v, err := b.client.HGet(ctx, recordKey, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storage.Unavailable("read field", err)
	}
	return v, true, nil
}

func (b *Backend) SetFieldIfExists(ctx context.Context, recordKey, field, value string) (bool, error) {
	n, err := setFieldIfExists.Run(ctx, b.client, []string{recordKey}, field, value).Int64()
	if err != nil {
		return false, storage.Unavailable("set field", err)
	}
	return n == 1, nil
}

func (b *Backend) RemoveRecord(ctx context.Context, recordKey, setKey, member string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, recordKey)
		pipe.SRem(ctx, setKey, member)
		return nil
	})
	if err != nil {
		return storage.Unavailable("remove record", err)
	}
	return nil
}

func (b *Backend) Members(ctx context.Context, setKey string) ([]string, error) {
	members, err := b.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, storage.Unavailable("read members", err)
	}
	return members, nil
}

// Ping checks if the Redis connection is healthy.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return storage.Unavailable("ping", err)
	}
	return nil
}

// Close closes the Redis client connection.
func (b *Backend) Close() error {
	return b.client.Close()
}
