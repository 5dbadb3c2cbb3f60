package saga

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wonny/stockvaluation/backend/internal/contracts"
)

var (
	dummyDCF       = &contracts.DiscountedCashFlow{Ticker: "DUMMY", Date: "2024-09-26", FairValue: 15.5, MarketPrice: 14}
	dummyConsensus = &contracts.PriceTargetConsensus{Ticker: "DUMMY", High: 20, Low: 10, Consensus: 16, Median: 15}
	dummySummary   = &contracts.PriceTargetSummary{Ticker: "DUMMY", LastMonthCount: 2, LastMonthAvg: 16, LastQuarterCount: 5, LastQuarterAvg: 14}
)

type allowList map[string]bool

func (a allowList) TickerExists(ticker string) bool { return a[ticker] }

// fakeRepo records calls and serves canned answers
type fakeRepo struct {
	mu sync.Mutex

	all       *contracts.Report
	allErr    error
	dcf       *contracts.DiscountedCashFlow
	dcfErr    error
	consensus *contracts.PriceTargetConsensus
	summary   *contracts.PriceTargetSummary
	sumErr    error
	block     chan struct{}

	queryAllCalls  atomic.Int32
	querySlotCalls atomic.Int32

	insertedFull []*contracts.Report
	inserted     []contracts.Slot
	insertErr    error
}

func (r *fakeRepo) wait(ctx context.Context) error {
	if r.block == nil {
		return nil
	}
	select {
	case <-r.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *fakeRepo) QueryAll(ctx context.Context, ticker string) (*contracts.Report, error) {
	r.queryAllCalls.Add(1)
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.all, r.allErr
}

func (r *fakeRepo) QueryDCF(ctx context.Context, ticker string) (*contracts.DiscountedCashFlow, error) {
	r.querySlotCalls.Add(1)
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.dcf, r.dcfErr
}

func (r *fakeRepo) QueryConsensus(ctx context.Context, ticker string) (*contracts.PriceTargetConsensus, error) {
	r.querySlotCalls.Add(1)
	return r.consensus, nil
}

func (r *fakeRepo) QuerySummary(ctx context.Context, ticker string) (*contracts.PriceTargetSummary, error) {
	r.querySlotCalls.Add(1)
	return r.summary, r.sumErr
}

func (r *fakeRepo) InsertFull(ctx context.Context, report *contracts.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertedFull = append(r.insertedFull, report)
	return r.insertErr
}

func (r *fakeRepo) InsertDCF(ctx context.Context, dcf *contracts.DiscountedCashFlow) error {
	return r.recordInsert(contracts.SlotDCF)
}

func (r *fakeRepo) InsertConsensus(ctx context.Context, consensus *contracts.PriceTargetConsensus) error {
	return r.recordInsert(contracts.SlotConsensus)
}

func (r *fakeRepo) InsertSummary(ctx context.Context, summary *contracts.PriceTargetSummary) error {
	return r.recordInsert(contracts.SlotSummary)
}

func (r *fakeRepo) recordInsert(slot contracts.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, slot)
	return r.insertErr
}

func (r *fakeRepo) snapshot() ([]*contracts.Report, []contracts.Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*contracts.Report(nil), r.insertedFull...), append([]contracts.Slot(nil), r.inserted...)
}

// fakeAPI answers each slot through an optional function
type fakeAPI struct {
	dcf       func(ctx context.Context) (*contracts.DiscountedCashFlow, error)
	consensus func(ctx context.Context) (*contracts.PriceTargetConsensus, error)
	summary   func(ctx context.Context) (*contracts.PriceTargetSummary, error)

	calls atomic.Int32
}

func (a *fakeAPI) FetchDCF(ctx context.Context, ticker string) (*contracts.DiscountedCashFlow, error) {
	a.calls.Add(1)
	if a.dcf == nil {
		return nil, nil
	}
	return a.dcf(ctx)
}

func (a *fakeAPI) FetchConsensus(ctx context.Context, ticker string) (*contracts.PriceTargetConsensus, error) {
	a.calls.Add(1)
	if a.consensus == nil {
		return nil, nil
	}
	return a.consensus(ctx)
}

func (a *fakeAPI) FetchSummary(ctx context.Context, ticker string) (*contracts.PriceTargetSummary, error) {
	a.calls.Add(1)
	if a.summary == nil {
		return nil, nil
	}
	return a.summary(ctx)
}

func returns[T any](v *T, err error) func(ctx context.Context) (*T, error) {
	return func(ctx context.Context) (*T, error) { return v, err }
}
