package cache

import (
	"sort"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/singleflight"

	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/pkg/config"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

const evictionKey = "evict"

// LFUOptions sizes a frequency-biased cache
type LFUOptions struct {
	// Capacity bounds the number of distinct hit-frequency buckets,
	// not the number of tickers
	Capacity int
	// RebalanceThreshold is the number of cache hits between eviction passes
	RebalanceThreshold int
	Shards             int
}

// LFU is a frequency-biased cache. Get stays O(1); the frequency index is
// rebuilt off the request path every RebalanceThreshold hits.
//
// Frequency counting is approximate: counters are bumped without
// coordinating with a running eviction pass, so a pass may work from
// slightly stale counts. That only affects which ticker goes first.
type LFU struct {
	store     *store
	capacity  int
	threshold int64
	logger    *logger.Logger

	calls  atomic.Int64
	flight singleflight.Group

	runs    atomic.Int64
	evicted atomic.Int64
}

var _ Cache = (*LFU)(nil)

// NewLFU creates a frequency-biased cache
func NewLFU(opts LFUOptions, log *logger.Logger) *LFU {
	l := log.WithModule("cache")
	return &LFU{
		store:     newStore(opts.Shards, l),
		capacity:  opts.Capacity,
		threshold: int64(opts.RebalanceThreshold),
		logger:    l,
	}
}

// Get looks up the ticker. Every threshold-th hit schedules an eviction
// pass and returns without waiting for it.
func (c *LFU) Get(ticker string) *contracts.Report {
	report, e := c.store.get(ticker)
	if e == nil {
		return nil
	}

	e.hits.Add(1)
	if c.calls.Add(1) >= c.threshold {
		c.calls.Store(0)
		c.scheduleEviction()
	}
	return report
}

func (c *LFU) PutDCF(ticker string, dcf *contracts.DiscountedCashFlow) {
	c.store.putDCF(ticker, dcf)
}

func (c *LFU) PutConsensus(ticker string, consensus *contracts.PriceTargetConsensus) {
	c.store.putConsensus(ticker, consensus)
}

func (c *LFU) PutSummary(ticker string, summary *contracts.PriceTargetSummary) {
	c.store.putSummary(ticker, summary)
}

// scheduleEviction starts a pass unless one is already running.
// DoChan runs the pass on its own goroutine, so this never blocks.
func (c *LFU) scheduleEviction() {
	c.flight.DoChan(evictionKey, func() (interface{}, error) {
		return c.RunEviction(), nil
	})
}

// RunEviction performs one eviction pass synchronously and returns the
// number of tickers removed. Tickers are removed lowest frequency first
// until the number of distinct frequencies fits the capacity. Tickers
// sharing a frequency are removed in lexical order.
func (c *LFU) RunEviction() int {
	start := time.Now()
	c.runs.Add(1)

	index := make(map[int64]mapset.Set[string])
	for ticker, freq := range c.store.frequencies() {
		bucket, ok := index[freq]
		if !ok {
			bucket = mapset.NewThreadUnsafeSet[string]()
			index[freq] = bucket
		}
		bucket.Add(ticker)
	}

	if len(index) <= c.capacity {
		c.logger.WithFields(map[string]interface{}{
			"buckets":  len(index),
			"capacity": c.capacity,
		}).Debug("No cache eviction needed at this time")
		return 0
	}

	frequencies := make([]int64, 0, len(index))
	for freq := range index {
		frequencies = append(frequencies, freq)
	}
	sort.Slice(frequencies, func(i, j int) bool { return frequencies[i] < frequencies[j] })

	removed := 0
	for len(index) > c.capacity {
		lowest := frequencies[0]
		bucket := index[lowest]

		members := bucket.ToSlice()
		sort.Strings(members)
		victim := members[0]

		if c.store.remove(victim) {
			removed++
		}
		bucket.Remove(victim)
		if bucket.Cardinality() == 0 {
			delete(index, lowest)
			frequencies = frequencies[1:]
		}
	}

	c.evicted.Add(int64(removed))
	c.logger.WithFields(map[string]interface{}{
		"removed":  removed,
		"capacity": c.capacity,
		"duration": time.Since(start).String(),
	}).Info("Cache eviction pass completed")

	return removed
}

func (c *LFU) Stats() Stats {
	return Stats{
		Policy:       config.CachePolicyLFU,
		Entries:      c.store.len(),
		Hits:         c.store.hits.Load(),
		Misses:       c.store.misses.Load(),
		EvictionRuns: c.runs.Load(),
		Evicted:      c.evicted.Load(),
	}
}
