package cache

import (
	"fmt"

	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/pkg/config"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// Cache is the in-process tier of the valuation saga.
// Put* with a nil value is a no-op. A filled slot is never overwritten.
// ⭐ SSOT: 캐시 엔트리의 슬롯 setter 는 이 패키지 밖으로 노출하지 않음
type Cache interface {
	// Get returns a snapshot of the cached report, or nil
	Get(ticker string) *contracts.Report
	PutDCF(ticker string, dcf *contracts.DiscountedCashFlow)
	PutConsensus(ticker string, consensus *contracts.PriceTargetConsensus)
	PutSummary(ticker string, summary *contracts.PriceTargetSummary)
	Stats() Stats
}

// Stats is a point-in-time view of a cache, served by /cache/stats
type Stats struct {
	Policy       string `json:"policy"`
	Entries      int    `json:"entries"`
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	EvictionRuns int64  `json:"eviction_runs"`
	Evicted      int64  `json:"evicted"`
}

// New builds the cache selected by cfg.Cache.Policy
func New(cfg *config.Config, log *logger.Logger) (Cache, error) {
	switch cfg.Cache.Policy {
	case config.CachePolicyUnbounded:
		return NewUnbounded(cfg.Cache.Shards, log), nil
	case config.CachePolicyLFU:
		return NewLFU(LFUOptions{
			Capacity:           cfg.Cache.Capacity,
			RebalanceThreshold: cfg.Cache.RebalanceThreshold,
			Shards:             cfg.Cache.Shards,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown cache policy %q", cfg.Cache.Policy)
	}
}
