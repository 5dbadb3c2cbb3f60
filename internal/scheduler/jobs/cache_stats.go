package jobs

import (
	"context"

	"github.com/wonny/stockvaluation/backend/internal/async"
	"github.com/wonny/stockvaluation/backend/internal/cache"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// CacheStatsJob logs cache counters and the persistence queue
type CacheStatsJob struct {
	cache   cache.Cache
	persist *async.Pool
	logger  *logger.Logger
}

// NewCacheStatsJob creates a new cache stats job. persist may be nil.
func NewCacheStatsJob(c cache.Cache, persist *async.Pool, log *logger.Logger) *CacheStatsJob {
	return &CacheStatsJob{
		cache:   c,
		persist: persist,
		logger:  log.WithModule("cache-stats"),
	}
}

func (j *CacheStatsJob) Name() string {
	return "cache_stats"
}

// Schedule returns the cron schedule (every minute)
func (j *CacheStatsJob) Schedule() string {
	return "0 * * * * *"
}

func (j *CacheStatsJob) Run(ctx context.Context) error {
	stats := j.cache.Stats()

	hitRate := 0.0
	if total := stats.Hits + stats.Misses; total > 0 {
		hitRate = float64(stats.Hits) / float64(total)
	}

	fields := map[string]interface{}{
		"policy":        stats.Policy,
		"entries":       stats.Entries,
		"hits":          stats.Hits,
		"misses":        stats.Misses,
		"hit_rate":      hitRate,
		"eviction_runs": stats.EvictionRuns,
		"evicted":       stats.Evicted,
	}
	if j.persist != nil {
		ps := j.persist.Stats()
		fields["persist_submitted"] = ps.Submitted
		fields["persist_dropped"] = ps.Dropped
		fields["persist_queued"] = ps.Queued
	}

	j.logger.WithFields(fields).Info("Cache statistics")
	return nil
}
