package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/wonny/stockvaluation/backend/internal/async"
	"github.com/wonny/stockvaluation/backend/internal/cache"
	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// Broker moves data between the three tiers. It makes no policy decisions.
// ⭐ SSOT: 계층 간 데이터 이동과 병합은 여기서만
type Broker struct {
	cache  cache.Cache
	repo   contracts.ValuationRepository
	api    contracts.ValuationAPI
	logger *logger.Logger
}

// NewBroker creates a new broker
func NewBroker(c cache.Cache, repo contracts.ValuationRepository, api contracts.ValuationAPI, log *logger.Logger) *Broker {
	return &Broker{
		cache:  c,
		repo:   repo,
		api:    api,
		logger: log.WithModule("saga-broker"),
	}
}

// FetchFromCache returns the cached report, or nil
func (b *Broker) FetchFromCache(ticker string) *contracts.Report {
	return b.cache.Get(ticker)
}

// FetchFromDB completes cacheRes from the database.
// Without a cache result it issues one query for all slots; with a partial
// one it issues one query per missing slot. A failing slot query is logged
// and skipped. A structural anomaly is returned as an error and is fatal.
func (b *Broker) FetchFromDB(ctx context.Context, cacheRes *contracts.Report, ticker string) (*contracts.Report, error) {
	if cacheRes == nil {
		report, err := b.repo.QueryAll(ctx, ticker)
		if err != nil {
			return nil, err
		}
		return report, nil
	}

	if !cacheRes.IsIncomplete() {
		return cacheRes, nil
	}

	found := &contracts.Report{Ticker: ticker}
	for _, slot := range cacheRes.Missing() {
		err := b.querySlot(ctx, ticker, slot, found)
		if err == nil {
			continue
		}
		if errors.Is(err, contracts.ErrDBStructuralAnomaly) {
			return nil, err
		}
		b.logger.WithTicker(ticker).WithError(err).WithField("slot", slot.String()).
			Warn("slot query failed, continuing without it")
	}

	return cacheRes.Merge(found), nil
}

func (b *Broker) querySlot(ctx context.Context, ticker string, slot contracts.Slot, into *contracts.Report) error {
	var err error
	switch slot {
	case contracts.SlotDCF:
		into.DCF, err = b.repo.QueryDCF(ctx, ticker)
	case contracts.SlotConsensus:
		into.Consensus, err = b.repo.QueryConsensus(ctx, ticker)
	case contracts.SlotSummary:
		into.Summary, err = b.repo.QuerySummary(ctx, ticker)
	}
	return err
}

// FetchFromAPI starts one call per slot still missing from dbRes and waits
// for all of them against a single deadline of now+timeout. A call that
// misses the deadline leaves its slot empty. A failed call sets Cause on
// the returned report; calls are collected in dcf, consensus, summary
// order and the last failure observed wins. Never returns nil.
func (b *Broker) FetchFromAPI(ctx context.Context, dbRes *contracts.Report, ticker string, timeout time.Duration) *contracts.Report {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	deadline := time.Now().Add(timeout)

	var (
		dcfF       *async.Future[*contracts.DiscountedCashFlow]
		consensusF *async.Future[*contracts.PriceTargetConsensus]
		summaryF   *async.Future[*contracts.PriceTargetSummary]
	)
	if !dbRes.Has(contracts.SlotDCF) {
		dcfF = async.Go(callCtx, func(ctx context.Context) (*contracts.DiscountedCashFlow, error) {
			return b.api.FetchDCF(ctx, ticker)
		})
	}
	if !dbRes.Has(contracts.SlotConsensus) {
		consensusF = async.Go(callCtx, func(ctx context.Context) (*contracts.PriceTargetConsensus, error) {
			return b.api.FetchConsensus(ctx, ticker)
		})
	}
	if !dbRes.Has(contracts.SlotSummary) {
		summaryF = async.Go(callCtx, func(ctx context.Context) (*contracts.PriceTargetSummary, error) {
			return b.api.FetchSummary(ctx, ticker)
		})
	}

	log := b.logger.WithTicker(ticker)
	found := &contracts.Report{Ticker: ticker}
	found.DCF = awaitSlot(ctx, dcfF, deadline, contracts.SlotDCF, ticker, log, &found.Cause)
	found.Consensus = awaitSlot(ctx, consensusF, deadline, contracts.SlotConsensus, ticker, log, &found.Cause)
	found.Summary = awaitSlot(ctx, summaryF, deadline, contracts.SlotSummary, ticker, log, &found.Cause)

	merged := found.Merge(dbRes)
	merged.Ticker = ticker
	merged.Cause = found.Cause
	return merged
}

// awaitSlot collects one API call. Timeouts, including a call that gave up
// on its own deadline, yield nil without touching cause; failures overwrite cause.
func awaitSlot[T any](ctx context.Context, f *async.Future[*T], deadline time.Time, slot contracts.Slot,
	ticker string, log *logger.Logger, cause *error) *T {
	if f == nil {
		return nil
	}

	out := f.AwaitUntil(ctx, deadline)
	switch {
	case out.Pending, errors.Is(out.Err, context.DeadlineExceeded):
		entry := log.WithField("slot", slot.String())
		if out.Err != nil {
			entry = entry.WithError(out.Err)
		}
		entry.Warn("API call did not finish in time, slot left empty")
		return nil
	case out.Err != nil:
		log.WithField("slot", slot.String()).WithError(out.Err).Error("API call failed")
		*cause = classify(out.Err, slot, ticker)
		return nil
	}
	return out.Value
}

// classify keeps typed API failures and hides anything else behind ErrAPIUnknown
func classify(err error, slot contracts.Slot, ticker string) error {
	var apiErr *contracts.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return contracts.NewAPIError(contracts.ErrAPIUnknown, 0,
		fmt.Sprintf("Failed to retrieve %s data for ticker %s!", slot, ticker))
}

// Persist writes back what this request learned. Slots the API supplied
// that the database lacked go to the database; slots known from the
// database or the API that the cache lacked go to the cache. Failures are
// aggregated and returned for logging only.
func (b *Broker) Persist(ctx context.Context, ticker string, cacheRes, dbRes, apiRes *contracts.Report) error {
	var result *multierror.Error

	if apiRes.PresentCount() > dbRes.PresentCount() {
		if err := b.persistToDB(ctx, ticker, dbRes, apiRes); err != nil {
			result = multierror.Append(result, err)
		}
	}

	b.persistToCache(ticker, cacheRes, dbRes.Merge(apiRes))

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w for %s: %w", contracts.ErrPersist, ticker, err)
	}
	return nil
}

func (b *Broker) persistToDB(ctx context.Context, ticker string, dbRes, apiRes *contracts.Report) error {
	log := b.logger.WithTicker(ticker)

	if dbRes == nil {
		log.Info("Writing full report to the database")
		return b.repo.InsertFull(ctx, apiRes)
	}

	var result *multierror.Error
	if apiRes.DCF != nil && dbRes.DCF == nil {
		log.Info("Writing discounted cash flow to the database")
		if err := b.repo.InsertDCF(ctx, apiRes.DCF); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if apiRes.Consensus != nil && dbRes.Consensus == nil {
		log.Info("Writing price target consensus to the database")
		if err := b.repo.InsertConsensus(ctx, apiRes.Consensus); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if apiRes.Summary != nil && dbRes.Summary == nil {
		log.Info("Writing price target summary to the database")
		if err := b.repo.InsertSummary(ctx, apiRes.Summary); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (b *Broker) persistToCache(ticker string, cacheRes, known *contracts.Report) {
	if known == nil {
		return
	}
	if known.DCF != nil && !cacheRes.Has(contracts.SlotDCF) {
		b.cache.PutDCF(ticker, known.DCF)
	}
	if known.Consensus != nil && !cacheRes.Has(contracts.SlotConsensus) {
		b.cache.PutConsensus(ticker, known.Consensus)
	}
	if known.Summary != nil && !cacheRes.Has(contracts.SlotSummary) {
		b.cache.PutSummary(ticker, known.Summary)
	}
}
