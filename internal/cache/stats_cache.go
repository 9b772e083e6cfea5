package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const statsCacheTTL = 10 * time.Minute

// StatsCache keeps already computed aggregation responses (max weights,
// measurement stats) in redis, so repeated dashboard loads do not hit
// postgres and recompute the same series over and over. Entries are
// keyed per user and invalidated on any mutation of that user's data.
type StatsCache struct {
	redisClient *redis.Client
}

func NewStatsCache(redisClient *redis.Client) *StatsCache {
	return &StatsCache{
		redisClient: redisClient,
	}
}

func statsKey(userID int, kind, params string) string {
	return fmt.Sprintf("stats::%d::%s::%s", userID, kind, params)
}

// Get returns the cached response bytes, or ok=false on a miss.
// Redis errors are treated as a miss, the caller recomputes.
func (c *StatsCache) Get(ctx context.Context, userID int, kind, params string) (respBytes []byte, ok bool) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "statsCache.get")
	defer span.End()

	key := statsKey(userID, kind, params)
	cmd := c.redisClient.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if err != redis.Nil {
			log.Errorf("stats cache, failed to get [%s]: %s", key, err)
		}
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, false
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	log.Tracef("stats cache hit for [%s]", key)
	return []byte(cmd.Val()), true
}

func (c *StatsCache) Set(ctx context.Context, userID int, kind, params string, respBytes []byte) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "statsCache.set")
	defer span.End()

	key := statsKey(userID, kind, params)
	if err := c.redisClient.Set(ctx, key, respBytes, statsCacheTTL).Err(); err != nil {
		log.Errorf("stats cache, failed to set [%s]: %s", key, err)
		return
	}
	log.Tracef("stats cache set for [%s]", key)
}

// InvalidateUser drops all cached aggregations for the given user.
// Called after every workout or measurement mutation.
func (c *StatsCache) InvalidateUser(ctx context.Context, userID int) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "statsCache.invalidateUser")
	defer span.End()
	span.SetAttributes(attribute.Int("user.id", userID))

	pattern := fmt.Sprintf("stats::%d::*", userID)
	iter := c.redisClient.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Errorf("stats cache, scan keys for user %d: %s", userID, err)
		return
	}

	if len(keys) == 0 {
		return
	}

	if err := c.redisClient.Del(ctx, keys...).Err(); err != nil {
		log.Errorf("stats cache, delete keys for user %d: %s", userID, err)
		return
	}
	log.Debugf("stats cache, invalidated %d entries for user %d", len(keys), userID)
}
