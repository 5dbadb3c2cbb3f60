package saga

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/stockvaluation/backend/internal/async"
	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

const (
	invalidTickerMessage = "The server only responds to valuation report requests for real tickers! " +
		"The ticker %s is not a valid ticker! Please try again with a valid ticker!"
	internalErrorMessage = "The server encountered an unexpected internal error when trying to generate report for ticker %s!"
)

// Orchestrator runs the cache → database → API saga for one ticker
// ⭐ SSOT: 티커 요청당 상태 코드 결정은 여기서만
type Orchestrator struct {
	validator      contracts.TickerValidator
	broker         *Broker
	policy         TimeoutPolicy
	persist        *async.Pool
	persistTimeout time.Duration
	logger         *logger.Logger
}

// NewOrchestrator creates a new orchestrator.
// persist runs the write-back step; persistTimeout bounds each write-back.
func NewOrchestrator(
	validator contracts.TickerValidator,
	broker *Broker,
	policy TimeoutPolicy,
	persist *async.Pool,
	persistTimeout time.Duration,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		validator:      validator,
		broker:         broker,
		policy:         policy,
		persist:        persist,
		persistTimeout: persistTimeout,
		logger:         log.WithModule("saga"),
	}
}

// Generate answers a valuation request. The whole saga is bounded by the
// overall timeout; exceeding it, a panic or cancellation of ctx all yield
// a generic 500. Never returns nil.
func (o *Orchestrator) Generate(ctx context.Context, ticker string) *Response {
	ticker = contracts.NormalizeTicker(ticker)
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, o.policy.OverallTimeout())
	defer cancel()

	out := async.Go(runCtx, func(ctx context.Context) (*Response, error) {
		return o.run(ctx, ticker), nil
	}).Await(runCtx, o.policy.OverallTimeout())

	log := o.logger.WithTicker(ticker)
	var resp *Response
	switch {
	case out.Pending:
		log.WithError(out.Err).Error("saga did not complete within the overall timeout")
		resp = failure(http.StatusInternalServerError, fmt.Sprintf(internalErrorMessage, ticker))
	case out.Err != nil:
		log.WithError(out.Err).Error("saga failed unexpectedly")
		resp = failure(http.StatusInternalServerError, fmt.Sprintf(internalErrorMessage, ticker))
	default:
		resp = out.Value
	}

	log.WithFields(map[string]interface{}{
		"status":   resp.StatusCode,
		"slots":    resp.Report.PresentCount(),
		"duration": time.Since(start).String(),
	}).Info("valuation report generated")

	return resp
}

func (o *Orchestrator) run(ctx context.Context, ticker string) *Response {
	log := o.logger.WithTicker(ticker)

	// 1. whitelist
	if !o.validator.TickerExists(ticker) {
		log.Warn("request for a ticker outside the whitelist")
		return failure(http.StatusForbidden, fmt.Sprintf(invalidTickerMessage, ticker))
	}

	// 2. cache
	cacheRes := o.broker.FetchFromCache(ticker)
	if cacheRes != nil && !cacheRes.IsIncomplete() {
		return ok(cacheRes, "")
	}

	// 3. database
	dbRes, err := o.fetchFromDB(ctx, cacheRes, ticker)
	if err != nil {
		log.WithError(err).Error("database returned inconsistent data, refusing to serve it")
		return failure(http.StatusInternalServerError, fmt.Sprintf(internalErrorMessage, ticker))
	}

	// 4. API
	var apiRes *contracts.Report
	resp := ok(dbRes, "")
	if dbRes.IsIncomplete() {
		apiRes = o.broker.FetchFromAPI(ctx, dbRes, ticker, o.policy.APICallTimeout())
		resp = o.classify(ticker, apiRes)
	}

	// 5. write-back, never awaited
	o.schedulePersist(ticker, cacheRes, dbRes, apiRes)

	return resp
}

// fetchFromDB runs the database step under its own deadline. Only a
// structural anomaly is returned; timeouts and ordinary failures fall
// back to what the cache already had.
func (o *Orchestrator) fetchFromDB(ctx context.Context, cacheRes *contracts.Report, ticker string) (*contracts.Report, error) {
	dbCtx, cancel := context.WithTimeout(ctx, o.policy.DBQueryTimeout())
	defer cancel()

	out := async.Go(dbCtx, func(ctx context.Context) (*contracts.Report, error) {
		return o.broker.FetchFromDB(ctx, cacheRes, ticker)
	}).Await(dbCtx, o.policy.DBQueryTimeout())

	log := o.logger.WithTicker(ticker)
	switch {
	case out.Pending:
		log.WithError(out.Err).Warn("database step timed out, continuing with cached data")
		return cacheRes, nil
	case errors.Is(out.Err, contracts.ErrDBStructuralAnomaly):
		return nil, out.Err
	case out.Err != nil:
		log.WithError(out.Err).Warn("database step failed, continuing with cached data")
		return cacheRes, nil
	}

	if out.Value == nil {
		return cacheRes, nil
	}
	return out.Value, nil
}

// classify maps the API result to a response. Data always wins over the
// error: any slot present gives 200 with the message attached.
func (o *Orchestrator) classify(ticker string, apiRes *contracts.Report) *Response {
	cause := apiRes.Cause
	if cause == nil {
		return ok(apiRes, "")
	}

	message := contracts.ErrorMessage(cause)
	if apiRes.PresentCount() > 0 {
		return ok(apiRes, message)
	}

	switch {
	case errors.Is(cause, contracts.ErrAPICredential):
		return failure(http.StatusUnauthorized, message)
	case errors.Is(cause, contracts.ErrAPIRateLimited):
		return failure(http.StatusTooManyRequests, message)
	default:
		o.logger.WithTicker(ticker).WithError(cause).Error("API failed and no data is available")
		return failure(http.StatusInternalServerError, fmt.Sprintf(internalErrorMessage, ticker))
	}
}

func (o *Orchestrator) schedulePersist(ticker string, cacheRes, dbRes, apiRes *contracts.Report) {
	accepted := o.persist.Submit(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, o.persistTimeout)
		defer cancel()

		if err := o.broker.Persist(ctx, ticker, cacheRes, dbRes, apiRes); err != nil {
			o.logger.WithTicker(ticker).WithError(err).Error("background persistence failed")
		}
	})
	if !accepted {
		o.logger.WithTicker(ticker).Warn("persistence skipped, background queue unavailable")
	}
}
