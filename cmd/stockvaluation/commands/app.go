package commands

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/wonny/stockvaluation/backend/internal/async"
	"github.com/wonny/stockvaluation/backend/internal/cache"
	"github.com/wonny/stockvaluation/backend/internal/external/fmp"
	"github.com/wonny/stockvaluation/backend/internal/repository"
	"github.com/wonny/stockvaluation/backend/internal/saga"
	"github.com/wonny/stockvaluation/backend/internal/ticker"
	"github.com/wonny/stockvaluation/backend/pkg/config"
	"github.com/wonny/stockvaluation/backend/pkg/database"
	"github.com/wonny/stockvaluation/backend/pkg/httputil"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
	"github.com/wonny/stockvaluation/backend/pkg/redis"
)

// app holds the wired valuation service shared by the api and fetch commands
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	db           *database.DB
	redis        *redis.Client
	cache        cache.Cache
	persist      *async.Pool
	orchestrator *saga.Orchestrator
	formatter    saga.Formatter
}

// newApp wires every tier of the saga. The caller must call close.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.close(ctx)
		}
	}()

	// 1. Ticker whitelist (fatal on failure)
	whitelist, err := ticker.Load(cfg.TickerFile, log)
	if err != nil {
		return nil, err
	}

	// 2. Response formatter
	if a.formatter, err = saga.NewFormatter(cfg.ResponseFormat); err != nil {
		return nil, err
	}

	// 3. Database
	if a.db, err = database.New(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("Connected to database")

	// 4. Redis (optional shared quota)
	if a.redis, err = redis.New(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 5. FMP client behind the rate limiters
	limiter := httputil.Chain{httputil.NewLocalLimiter(cfg.FMP.RatePerSec, cfg.FMP.RateBurst)}
	if a.redis.Enabled() {
		limiter = append(limiter, httputil.NewSharedLimiter(redis.NewRateLimiter(a.redis, "ratelimit"), redis.FMPRateLimit(cfg)))
		log.WithField("daily_limit", cfg.FMP.DailyLimit).Info("Shared FMP quota enabled")
	}
	httpClient := httputil.New(log, cfg.FMP.HTTPTimeout).WithLimiter(limiter)
	fmpClient := fmp.NewClient(httpClient, cfg.FMP.APIKey, cfg.FMP.BaseURL, log)
	if cfg.FMP.APIKey == "" {
		log.Warn("FMP_API_KEY is not set, API lookups will answer 401")
	}

	// 6. Cache
	if a.cache, err = cache.New(cfg, log); err != nil {
		return nil, err
	}

	// 7. Saga
	policy, err := saga.PolicyFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.persist = async.NewPool(cfg.Saga.PersistWorkers, cfg.Saga.PersistQueueSize, log)

	repo := repository.NewValuationRepository(a.db.Pool, log)
	broker := saga.NewBroker(a.cache, repo, fmpClient, log)
	a.orchestrator = saga.NewOrchestrator(whitelist, broker, policy, a.persist, cfg.Saga.PersistTimeout, log)

	ok = true
	return a, nil
}

// close drains pending write-backs before releasing connections
func (a *app) close(ctx context.Context) error {
	var result *multierror.Error

	if a.persist != nil {
		closeCtx, cancel := context.WithTimeout(ctx, a.cfg.Saga.PersistTimeout)
		defer cancel()
		if err := a.persist.Close(closeCtx); err != nil {
			result = multierror.Append(result, fmt.Errorf("drain persistence queue: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}

	return result.ErrorOrNil()
}
