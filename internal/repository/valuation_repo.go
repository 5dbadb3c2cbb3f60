package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// SQLSTATEs worth a second attempt
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

const (
	tableDCF       = "discounted_cash_flow"
	tableConsensus = "price_target_consensus"
	tableSummary   = "price_target_summary"
)

// ValuationRepository implements contracts.ValuationRepository on PostgreSQL
// ⭐ SSOT: 밸류에이션 데이터 저장/조회는 여기서만
type ValuationRepository struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewValuationRepository creates a new valuation repository
func NewValuationRepository(pool *pgxpool.Pool, log *logger.Logger) *ValuationRepository {
	return &ValuationRepository{
		pool:   pool,
		logger: log.WithModule("repository"),
	}
}

// QueryAll reads the three slots of a ticker in one round trip.
// Returns (nil, nil) when no table has a row for the ticker.
func (r *ValuationRepository) QueryAll(ctx context.Context, ticker string) (*contracts.Report, error) {
	query := `
		SELECT
			d.date, d.dcf, d.stock_price,
			c.target_high, c.target_low, c.target_consensus, c.target_median,
			s.last_month, s.last_month_avg_price_target, s.last_quarter, s.last_quarter_avg_price_target
		FROM (SELECT $1::text AS ticker) t
		LEFT JOIN discounted_cash_flow d ON d.ticker = t.ticker
		LEFT JOIN price_target_consensus c ON c.ticker = t.ticker
		LEFT JOIN price_target_summary s ON s.ticker = t.ticker
	`

	rows, err := r.pool.Query(ctx, query, ticker)
	if err != nil {
		return nil, transient("query all", ticker, err)
	}
	defer rows.Close()

	var report *contracts.Report
	count := 0
	for rows.Next() {
		count++
		if count > 1 {
			return nil, anomaly("joined valuation tables", ticker)
		}

		var (
			date                         *string
			fairValue, marketPrice       *float64
			high, low, consensus, median *float64
			lastMonth, lastQuarter       *int
			lastMonthAvg, lastQuarterAvg *float64
		)
		if err := rows.Scan(
			&date, &fairValue, &marketPrice,
			&high, &low, &consensus, &median,
			&lastMonth, &lastMonthAvg, &lastQuarter, &lastQuarterAvg,
		); err != nil {
			return nil, transient("scan joined row", ticker, err)
		}

		report = &contracts.Report{Ticker: ticker}
		if date != nil {
			report.DCF = &contracts.DiscountedCashFlow{
				Ticker: ticker, Date: *date, FairValue: *fairValue, MarketPrice: *marketPrice,
			}
		}
		if high != nil {
			report.Consensus = &contracts.PriceTargetConsensus{
				Ticker: ticker, High: *high, Low: *low, Consensus: *consensus, Median: *median,
			}
		}
		if lastMonth != nil {
			report.Summary = &contracts.PriceTargetSummary{
				Ticker:           ticker,
				LastMonthCount:   *lastMonth,
				LastMonthAvg:     *lastMonthAvg,
				LastQuarterCount: *lastQuarter,
				LastQuarterAvg:   *lastQuarterAvg,
			}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, transient("iterate joined rows", ticker, err)
	}

	if report.PresentCount() == 0 {
		return nil, nil
	}
	return report, nil
}

// QueryDCF reads the discounted cash flow row of a ticker
func (r *ValuationRepository) QueryDCF(ctx context.Context, ticker string) (*contracts.DiscountedCashFlow, error) {
	query := `SELECT date, dcf, stock_price FROM discounted_cash_flow WHERE ticker = $1`

	return queryOne(ctx, r.pool, tableDCF, query, ticker, func(row pgx.Rows) (*contracts.DiscountedCashFlow, error) {
		dcf := &contracts.DiscountedCashFlow{Ticker: ticker}
		err := row.Scan(&dcf.Date, &dcf.FairValue, &dcf.MarketPrice)
		return dcf, err
	})
}

// QueryConsensus reads the price target consensus row of a ticker
func (r *ValuationRepository) QueryConsensus(ctx context.Context, ticker string) (*contracts.PriceTargetConsensus, error) {
	query := `
		SELECT target_high, target_low, target_consensus, target_median
		FROM price_target_consensus
		WHERE ticker = $1
	`

	return queryOne(ctx, r.pool, tableConsensus, query, ticker, func(row pgx.Rows) (*contracts.PriceTargetConsensus, error) {
		c := &contracts.PriceTargetConsensus{Ticker: ticker}
		err := row.Scan(&c.High, &c.Low, &c.Consensus, &c.Median)
		return c, err
	})
}

// QuerySummary reads the price target summary row of a ticker
func (r *ValuationRepository) QuerySummary(ctx context.Context, ticker string) (*contracts.PriceTargetSummary, error) {
	query := `
		SELECT last_month, last_month_avg_price_target, last_quarter, last_quarter_avg_price_target
		FROM price_target_summary
		WHERE ticker = $1
	`

	return queryOne(ctx, r.pool, tableSummary, query, ticker, func(row pgx.Rows) (*contracts.PriceTargetSummary, error) {
		s := &contracts.PriceTargetSummary{Ticker: ticker}
		err := row.Scan(&s.LastMonthCount, &s.LastMonthAvg, &s.LastQuarterCount, &s.LastQuarterAvg)
		return s, err
	})
}

// queryOne runs a single-table lookup. No row is (nil, nil); more than one
// row means the table lost its key constraint.
func queryOne[T any](
	ctx context.Context,
	pool *pgxpool.Pool,
	table, query, ticker string,
	scan func(pgx.Rows) (*T, error),
) (*T, error) {
	rows, err := pool.Query(ctx, query, ticker)
	if err != nil {
		return nil, transient("query "+table, ticker, err)
	}
	defer rows.Close()

	var found *T
	for rows.Next() {
		if found != nil {
			return nil, anomaly(table, ticker)
		}
		found, err = scan(rows)
		if err != nil {
			return nil, transient("scan "+table, ticker, err)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, transient("iterate "+table, ticker, err)
	}
	return found, nil
}

// InsertFull writes every present slot of the report in parallel
func (r *ValuationRepository) InsertFull(ctx context.Context, report *contracts.Report) error {
	if report.PresentCount() == 0 {
		return fmt.Errorf("nothing to insert for %s", report.Ticker)
	}

	var g multierror.Group
	if report.DCF != nil {
		g.Go(func() error { return r.InsertDCF(ctx, report.DCF) })
	}
	if report.Consensus != nil {
		g.Go(func() error { return r.InsertConsensus(ctx, report.Consensus) })
	}
	if report.Summary != nil {
		g.Go(func() error { return r.InsertSummary(ctx, report.Summary) })
	}

	return g.Wait().ErrorOrNil()
}

// InsertDCF stores a discounted cash flow row; an existing row is kept
func (r *ValuationRepository) InsertDCF(ctx context.Context, dcf *contracts.DiscountedCashFlow) error {
	if dcf == nil {
		return fmt.Errorf("nil %s row", tableDCF)
	}

	query := `
		INSERT INTO discounted_cash_flow (ticker, date, dcf, stock_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticker) DO NOTHING
	`
	return r.exec(ctx, tableDCF, dcf.Ticker, query, dcf.Ticker, dcf.Date, dcf.FairValue, dcf.MarketPrice)
}

// InsertConsensus stores a price target consensus row; an existing row is kept
func (r *ValuationRepository) InsertConsensus(ctx context.Context, c *contracts.PriceTargetConsensus) error {
	if c == nil {
		return fmt.Errorf("nil %s row", tableConsensus)
	}

	query := `
		INSERT INTO price_target_consensus (ticker, target_high, target_low, target_consensus, target_median)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ticker) DO NOTHING
	`
	return r.exec(ctx, tableConsensus, c.Ticker, query, c.Ticker, c.High, c.Low, c.Consensus, c.Median)
}

// InsertSummary stores a price target summary row; an existing row is kept
func (r *ValuationRepository) InsertSummary(ctx context.Context, s *contracts.PriceTargetSummary) error {
	if s == nil {
		return fmt.Errorf("nil %s row", tableSummary)
	}

	query := `
		INSERT INTO price_target_summary (
			ticker, last_month, last_month_avg_price_target, last_quarter, last_quarter_avg_price_target
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ticker) DO NOTHING
	`
	return r.exec(ctx, tableSummary, s.Ticker, query,
		s.Ticker, s.LastMonthCount, s.LastMonthAvg, s.LastQuarterCount, s.LastQuarterAvg)
}

// exec runs a write, retrying once on a retryable SQLSTATE
func (r *ValuationRepository) exec(ctx context.Context, table, ticker, query string, args ...interface{}) error {
	_, err := r.pool.Exec(ctx, query, args...)
	if isRetryable(err) {
		r.logger.WithTicker(ticker).WithError(err).WithField("table", table).Warn("retrying insert")
		_, err = r.pool.Exec(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("failed to insert into %s for %s: %w", table, ticker, err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return true
	}
	return false
}

func transient(op, ticker string, err error) error {
	return fmt.Errorf("%w: %s for %s: %w", contracts.ErrDBTransient, op, ticker, err)
}

func anomaly(table, ticker string) error {
	return fmt.Errorf("%w: more than one row in %s for %s", contracts.ErrDBStructuralAnomaly, table, ticker)
}
