// Package cache keeps computed queue snapshots in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/queueline/services/booking-service/internal/model"
)

const DefaultTTL = 5 * time.Minute

// versionTTL outlives any snapshot so a fill never sees a reset counter.
const versionTTL = 24 * time.Hour

// fillScript stores a snapshot only while the partition version still equals
// the one observed before the store was read.
var fillScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
  v = "0"
end
if v ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// invalidateScript bumps the partition version and drops the snapshot.
var invalidateScript = redis.NewScript(`
redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
redis.call("DEL", KEYS[2])
return 1
`)

// QueueCache keeps one snapshot per service-day queue. Readers fill it, writers
// invalidate it after commit.
type QueueCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewQueueCache(client *redis.Client, ttl time.Duration) *QueueCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QueueCache{redis: client, ttl: ttl}
}

func (c *QueueCache) key(k model.PartitionKey) string {
	return fmt.Sprintf("queueline:queue:%s", k.String())
}

func (c *QueueCache) versionKey(k model.PartitionKey) string {
	return fmt.Sprintf("queueline:queue:%s:version", k.String())
}

// Get returns the cached snapshot; ok is false on a miss.
func (c *QueueCache) Get(ctx context.Context, k model.PartitionKey) ([]model.QueueEntry, bool, error) {
	data, err := c.redis.Get(ctx, c.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get queue: %w", err)
	}
	var entries []model.QueueEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("cache: unmarshal queue: %w", err)
	}
	return entries, true, nil
}

// Version returns the partition's invalidation counter, 0 when none was written.
func (c *QueueCache) Version(ctx context.Context, k model.PartitionKey) (int64, error) {
	v, err := c.redis.Get(ctx, c.versionKey(k)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: get queue version: %w", err)
	}
	return v, nil
}

// Fill stores entries read at version. It reports false and writes nothing when
// the partition was invalidated in between.
func (c *QueueCache) Fill(ctx context.Context, k model.PartitionKey, version int64, entries []model.QueueEntry) (bool, error) {
	if entries == nil {
		entries = []model.QueueEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return false, fmt.Errorf("cache: marshal queue: %w", err)
	}
	res, err := fillScript.Run(ctx, c.redis,
		[]string{c.versionKey(k), c.key(k)},
		strconv.FormatInt(version, 10), data, c.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("cache: fill queue: %w", err)
	}
	return res == 1, nil
}

// Invalidate drops the snapshot and moves the version on, so fills computed
// from older reads are refused.
func (c *QueueCache) Invalidate(ctx context.Context, k model.PartitionKey) error {
	err := invalidateScript.Run(ctx, c.redis,
		[]string{c.versionKey(k), c.key(k)},
		versionTTL.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("cache: invalidate queue: %w", err)
	}
	return nil
}

// ReadyCheck pings Redis for /readyz.
func ReadyCheck(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis not configured")
		}
		return client.Ping(ctx).Err()
	}
}
