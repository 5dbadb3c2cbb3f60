package cache

import (
	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/pkg/config"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// Unbounded never removes entries
type Unbounded struct {
	store *store
}

var _ Cache = (*Unbounded)(nil)

// NewUnbounded creates an unbounded cache striped over shards locks
func NewUnbounded(shards int, log *logger.Logger) *Unbounded {
	return &Unbounded{store: newStore(shards, log.WithModule("cache"))}
}

func (c *Unbounded) Get(ticker string) *contracts.Report {
	report, _ := c.store.get(ticker)
	return report
}

func (c *Unbounded) PutDCF(ticker string, dcf *contracts.DiscountedCashFlow) {
	c.store.putDCF(ticker, dcf)
}

func (c *Unbounded) PutConsensus(ticker string, consensus *contracts.PriceTargetConsensus) {
	c.store.putConsensus(ticker, consensus)
}

func (c *Unbounded) PutSummary(ticker string, summary *contracts.PriceTargetSummary) {
	c.store.putSummary(ticker, summary)
}

func (c *Unbounded) Stats() Stats {
	return Stats{
		Policy:  config.CachePolicyUnbounded,
		Entries: c.store.len(),
		Hits:    c.store.hits.Load(),
		Misses:  c.store.misses.Load(),
	}
}
