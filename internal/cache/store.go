package cache

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

const defaultShards = 16

// entry is mutable in place; each slot is written at most once
type entry struct {
	dcf       *contracts.DiscountedCashFlow
	consensus *contracts.PriceTargetConsensus
	summary   *contracts.PriceTargetSummary

	// hits is read by the eviction pass without holding the shard lock
	hits atomic.Int64
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// store is the striped entry map shared by both policies
type store struct {
	shards []*shard
	logger *logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

func newStore(n int, log *logger.Logger) *store {
	if n <= 0 {
		n = defaultShards
	}
	s := &store{
		shards: make([]*shard, n),
		logger: log,
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return s
}

func (s *store) shardFor(ticker string) *shard {
	return s.shards[xxhash.Sum64String(ticker)%uint64(len(s.shards))]
}

// get returns a snapshot and the live entry, or (nil, nil)
func (s *store) get(ticker string) (*contracts.Report, *entry) {
	sh := s.shardFor(ticker)
	sh.mu.RLock()
	e, ok := sh.entries[ticker]
	var snapshot *contracts.Report
	if ok {
		snapshot = &contracts.Report{
			Ticker:    ticker,
			DCF:       e.dcf,
			Consensus: e.consensus,
			Summary:   e.summary,
		}
	}
	sh.mu.RUnlock()

	if !ok {
		s.misses.Add(1)
		return nil, nil
	}
	s.hits.Add(1)
	return snapshot, e
}

// put fills one slot of the ticker's entry if it is still empty.
// Returns true when the slot was written.
func (s *store) put(ticker string, slot contracts.Slot, fill func(e *entry) bool) bool {
	sh := s.shardFor(ticker)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[ticker]
	if !ok {
		e = &entry{}
		sh.entries[ticker] = e
	}

	written := fill(e)
	if !written {
		s.logger.WithFields(map[string]interface{}{
			"ticker": ticker,
			"slot":   slot.String(),
		}).Debug("cache slot already filled, keeping first write")
	}
	return written
}

func (s *store) putDCF(ticker string, v *contracts.DiscountedCashFlow) {
	if v == nil {
		s.logNilPut(ticker, contracts.SlotDCF)
		return
	}
	s.put(ticker, contracts.SlotDCF, func(e *entry) bool {
		if e.dcf != nil {
			return false
		}
		e.dcf = v
		return true
	})
}

func (s *store) putConsensus(ticker string, v *contracts.PriceTargetConsensus) {
	if v == nil {
		s.logNilPut(ticker, contracts.SlotConsensus)
		return
	}
	s.put(ticker, contracts.SlotConsensus, func(e *entry) bool {
		if e.consensus != nil {
			return false
		}
		e.consensus = v
		return true
	})
}

func (s *store) putSummary(ticker string, v *contracts.PriceTargetSummary) {
	if v == nil {
		s.logNilPut(ticker, contracts.SlotSummary)
		return
	}
	s.put(ticker, contracts.SlotSummary, func(e *entry) bool {
		if e.summary != nil {
			return false
		}
		e.summary = v
		return true
	})
}

func (s *store) logNilPut(ticker string, slot contracts.Slot) {
	s.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"slot":   slot.String(),
	}).Warn("ignoring cache put without a value")
}

// remove deletes a ticker; returns false if it was already gone
func (s *store) remove(ticker string) bool {
	sh := s.shardFor(ticker)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.entries[ticker]; !ok {
		return false
	}
	delete(sh.entries, ticker)
	return true
}

// frequencies samples every entry's hit counter, one shard at a time
func (s *store) frequencies() map[string]int64 {
	out := make(map[string]int64)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for ticker, e := range sh.entries {
			out[ticker] = e.hits.Load()
		}
		sh.mu.RUnlock()
	}
	return out
}

func (s *store) len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}
