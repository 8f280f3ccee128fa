package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MoeeinAali/CE419-WP/internal/logger"
	"github.com/MoeeinAali/CE419-WP/models"
)

const (
	keyPrefix  = "marketplace:stats"
	versionKey = keyPrefix + ":version"
)

// StatsCache keeps contractor discovery results in Redis. Invalidate bumps a
// generation counter so stale entries are never read again and expire on
// their own TTL.
type StatsCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewStatsCache connects to addr and pings it.
func NewStatsCache(addr string, ttl time.Duration, log *logger.Logger) (*StatsCache, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("missing redis address")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStatsCacheWithClient(rdb, ttl, log), nil
}

func NewStatsCacheWithClient(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *StatsCache {
	if log == nil {
		log = logger.Nop()
	}
	return &StatsCache{rdb: rdb, ttl: ttl, log: log.With("service", "StatsCache")}
}

func (c *StatsCache) Close() error {
	return c.rdb.Close()
}

func (c *StatsCache) version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// GetStats looks up filter under the current generation. The generation is
// returned on a miss too; pass it to SetStats so a result computed before an
// Invalidate is written under the dead generation. A negative generation
// means the counter could not be read.
func (c *StatsCache) GetStats(ctx context.Context, filter models.ContractorStatsFilter) ([]models.ContractorStats, int64, bool) {
	v, err := c.version(ctx)
	if err != nil {
		c.log.Warn("stats cache version read failed", "error", err)
		return nil, -1, false
	}
	raw, err := c.rdb.Get(ctx, statsKey(v, filter)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, v, false
	}
	if err != nil {
		c.log.Warn("stats cache read failed", "error", err)
		return nil, v, false
	}
	var stats []models.ContractorStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.log.Warn("stats cache entry corrupt", "error", err)
		return nil, v, false
	}
	return stats, v, true
}

// SetStats stores stats under generation, the value GetStats returned before
// the stats were read.
func (c *StatsCache) SetStats(ctx context.Context, generation int64, filter models.ContractorStatsFilter, stats []models.ContractorStats) {
	if generation < 0 {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		c.log.Warn("stats cache encode failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, statsKey(generation, filter), raw, c.ttl).Err(); err != nil {
		c.log.Warn("stats cache write failed", "error", err)
	}
}

func (c *StatsCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		c.log.Error("stats cache invalidate failed", "error", err)
	}
}

// statsKey renders a filter into a stable cache key.
func statsKey(version int64, f models.ContractorStatsFilter) string {
	parts := []string{keyPrefix, "v" + strconv.FormatInt(version, 10)}
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = models.SortByScore
	}
	parts = append(parts, "sort="+string(sortBy))
	if f.MinScore != nil {
		parts = append(parts, "min_score="+strconv.FormatFloat(*f.MinScore, 'g', -1, 64))
	}
	if f.MinCount != nil {
		parts = append(parts, "min_count="+strconv.Itoa(*f.MinCount))
	}
	parts = append(parts, "limit="+strconv.Itoa(f.Limit), "offset="+strconv.Itoa(f.Offset))
	return strings.Join(parts, ":")
}
