// Package redis provides the shared result tier on a single Redis key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/salestrack/internal/core/aggregation"
	"github.com/aevon-lab/salestrack/internal/core/storage"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey is where the deployment's canonical result lives.
const DefaultKey = "salestrack:result:current"

// commander is the subset of the go-redis client the store needs.
type commander interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Ping(ctx context.Context) *goredis.StatusCmd
}

// ResultStore implements storage.ResultStore with plain GET/SET.
// SET overwrites unconditionally, so concurrent clients are last-writer-wins.
type ResultStore struct {
	client commander
	key    string
}

var (
	_ storage.ResultStore   = (*ResultStore)(nil)
	_ storage.HealthChecker = (*ResultStore)(nil)
)

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	slog.Info("[Redis] Connected", "addr", addr, "db", db)
	return client, nil
}

// NewResultStore wraps a client. The caller keeps ownership of the client.
func NewResultStore(client *goredis.Client, key string) *ResultStore {
	return newResultStore(client, key)
}

func newResultStore(client commander, key string) *ResultStore {
	if key == "" {
		key = DefaultKey
	}
	return &ResultStore{client: client, key: key}
}

// Read returns the shared snapshot or storage.ErrNotFound.
func (s *ResultStore) Read(ctx context.Context) (*aggregation.CachedResult, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read shared result: %w", err)
	}

	var result aggregation.CachedResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return &result, nil
}

// Write stores the snapshot under the fixed key with no expiry.
func (s *ResultStore) Write(ctx context.Context, result aggregation.CachedResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cached result: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("write shared result: %w", err)
	}

	slog.Debug("[Redis] Wrote shared result", "key", s.key, "result_id", result.ID)
	return nil
}

// Ping verifies the Redis connection.
func (s *ResultStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
