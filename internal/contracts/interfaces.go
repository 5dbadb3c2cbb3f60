package contracts

import "context"

// TickerValidator answers whether a ticker is on the static whitelist
type TickerValidator interface {
	TickerExists(ticker string) bool
}

// ValuationRepository is the relational store of sub-reports.
// Queries return (nil, nil) when nothing is found, an error wrapping
// ErrDBTransient on ordinary failure and ErrDBStructuralAnomaly when the
// one-row-per-ticker invariant is broken.
// ⭐ SSOT: 가치평가 테이블 접근 계약
type ValuationRepository interface {
	QueryAll(ctx context.Context, ticker string) (*Report, error)
	QueryDCF(ctx context.Context, ticker string) (*DiscountedCashFlow, error)
	QueryConsensus(ctx context.Context, ticker string) (*PriceTargetConsensus, error)
	QuerySummary(ctx context.Context, ticker string) (*PriceTargetSummary, error)

	InsertFull(ctx context.Context, report *Report) error
	InsertDCF(ctx context.Context, dcf *DiscountedCashFlow) error
	InsertConsensus(ctx context.Context, consensus *PriceTargetConsensus) error
	InsertSummary(ctx context.Context, summary *PriceTargetSummary) error
}

// ValuationAPI fetches one sub-report per call from the external API.
// (nil, nil) means the API had nothing or retries were exhausted.
// Typed failures wrap ErrAPICredential, ErrAPIRateLimited or ErrAPIUnknown.
type ValuationAPI interface {
	FetchDCF(ctx context.Context, ticker string) (*DiscountedCashFlow, error)
	FetchConsensus(ctx context.Context, ticker string) (*PriceTargetConsensus, error)
	FetchSummary(ctx context.Context, ticker string) (*PriceTargetSummary, error)
}
